/*
 * Copyright 2026 The Anagni Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anagni-team/anagni/internal/version"
)

const (
	namespace        = "anagni"
	databaseLabel    = "database"
	resultLabel      = "result"
	obscuredLabel    = "obscured"
	taskTypeLabel    = "task_type"
	socketStateLabel = "state"
)

// Metrics manages the metric information that Anagni is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec
	serverMetrics *grpcprometheus.ServerMetrics

	joinTotal               *prometheus.CounterVec
	connectedSocketsTotal   *prometheus.GaugeVec
	appendedStatementsTotal *prometheus.CounterVec
	appendResponseSeconds   prometheus.Histogram
	sentStatementsTotal     *prometheus.CounterVec

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	serverMetrics := grpcprometheus.NewServerMetrics()
	if err := reg.Register(serverMetrics); err != nil {
		return nil, fmt.Errorf("register grpc server metrics: %w", err)
	}

	metrics := &Metrics{
		registry:      reg,
		serverMetrics: serverMetrics,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		joinTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "join_total",
			Help:      "The total number of join requests by result.",
		}, []string{databaseLabel, resultLabel}),
		connectedSocketsTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "sockets_total",
			Help:      "The number of sockets attached to a database by state.",
		}, []string{databaseLabel, socketStateLabel}),
		appendedStatementsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "appended_statements_total",
			Help:      "The total number of statements appended to database logs.",
		}, []string{databaseLabel}),
		appendResponseSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "append_seconds",
			Help:      "The time to append a statement to the log.",
		}),
		sentStatementsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "sent_statements_total",
			Help:      "The total number of statements streamed to replicas.",
		}, []string{databaseLabel, obscuredLabel}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by a particular background task.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// ServerMetrics returns the gRPC server metrics which are exported through
// the registry of this metrics.
func (m *Metrics) ServerMetrics() *grpcprometheus.ServerMetrics {
	return m.serverMetrics
}

// AddJoin adds a join request with its result, "okay" or a failure code.
func (m *Metrics) AddJoin(database, result string) {
	m.joinTotal.With(prometheus.Labels{
		databaseLabel: database,
		resultLabel:   result,
	}).Inc()
}

// AddSocket adds a socket in the given state.
func (m *Metrics) AddSocket(database, state string) {
	m.connectedSocketsTotal.With(prometheus.Labels{
		databaseLabel:    database,
		socketStateLabel: state,
	}).Inc()
}

// RemoveSocket removes a socket in the given state.
func (m *Metrics) RemoveSocket(database, state string) {
	m.connectedSocketsTotal.With(prometheus.Labels{
		databaseLabel:    database,
		socketStateLabel: state,
	}).Dec()
}

// AddAppendedStatements adds the number of statements appended to a log.
func (m *Metrics) AddAppendedStatements(database string, count int) {
	m.appendedStatementsTotal.With(prometheus.Labels{
		databaseLabel: database,
	}).Add(float64(count))
}

// ObserveAppendSeconds adds an observation for the append time.
func (m *Metrics) ObserveAppendSeconds(seconds float64) {
	m.appendResponseSeconds.Observe(seconds)
}

// AddSentStatement adds a statement streamed to a replica.
func (m *Metrics) AddSentStatement(database string, obscured bool) {
	m.sentStatementsTotal.With(prometheus.Labels{
		databaseLabel: database,
		obscuredLabel: fmt.Sprintf("%t", obscured),
	}).Inc()
}

// AddBackgroundGoroutines adds the number of goroutines attached by a particular background task.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by a particular background task.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
