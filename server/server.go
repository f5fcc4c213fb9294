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

// Package server provides the Anagni server which is the main entry point of
// the Anagni system. The server is responsible for starting the RPC server
// and the profiling server.
package server

import (
	"net"
	gosync "sync"

	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/profiling"
	"github.com/anagni-team/anagni/server/profiling/prometheus"
	"github.com/anagni-team/anagni/server/replication"
	"github.com/anagni-team/anagni/server/rpc"
)

// Anagni is a server of Anagni.
// The server receives statements from the replicas, appends them to the log
// of their database, and streams the log back to every joined replica.
type Anagni struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	engine          *replication.Engine
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Anagni.
func New(conf *Config, opts ...replication.Option) (*Anagni, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(conf.Backend, conf.Mongo, metrics)
	if err != nil {
		return nil, err
	}

	engine := replication.NewEngine(be, opts...)

	rpcServer, err := rpc.NewServer(conf.RPC, be, engine)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Anagni{
		conf:            conf,
		backend:         be,
		engine:          engine,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (r *Anagni) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Serve serves the RPC on the given listener. It is used for testing.
func (r *Anagni) Serve(lis net.Listener) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.rpcServer.Serve(lis)
}

// Shutdown shuts down this Anagni server.
func (r *Anagni) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Anagni) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *Anagni) RPCAddr() string {
	return r.conf.RPCAddr()
}

// Engine returns the replication engine. It is used for testing.
func (r *Anagni) Engine() *replication.Engine {
	return r.engine
}
