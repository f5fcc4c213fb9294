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

// Package replication implements the server side of the replication protocol:
// the live databases, the connection state machine and the drain loops that
// stream each log to its replicas.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	gotime "time"

	"github.com/rs/xid"
	"golang.org/x/sync/semaphore"

	"github.com/anagni-team/anagni/api/converter"
	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/pkg/cmap"
	"github.com/anagni-team/anagni/pkg/errors"
	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/backend/background"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/server/profiling/prometheus"
)

var (
	// ErrAlreadyJoined is returned for a join on a joined connection.
	ErrAlreadyJoined = errors.FailedPrecond("already joined").WithCode(string(types.AlreadyJoined))

	// ErrWrongSession is returned when the secret does not match the replica.
	ErrWrongSession = errors.Unauthenticated("wrong session").WithCode(string(types.WrongSession))

	// ErrOtherConnection is returned to a connection replaced by a newer
	// connection of the same replica.
	ErrOtherConnection = errors.Aborted("other connection").WithCode(string(types.OtherConnection))

	// ErrMustJoin is returned for a push on a connection that did not join.
	ErrMustJoin = errors.FailedPrecond("must join").WithCode(string(types.MustJoin))

	// ErrInvalidRequest is returned for a malformed request.
	ErrInvalidRequest = errors.InvalidArgument("invalid request").WithCode(string(types.InvalidRequest))

	// ErrUnknownConnection is returned for a connection id the engine does
	// not know.
	ErrUnknownConnection = errors.Internal("unknown connection").WithCode("ErrUnknownConnection")
)

const drainTaskType = "drain"

// DefaultDismissTimeout is how long an evicted connection is given to take
// the OtherConnection notice before its transport is closed.
const DefaultDismissTimeout = 2 * gotime.Second

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock that timestamps appended statements.
func WithClock(now func() gotime.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDismissTimeout sets how long an evicted connection is given to take
// the OtherConnection notice.
func WithDismissTimeout(timeout gotime.Duration) Option {
	return func(e *Engine) {
		e.dismissTimeout = timeout
	}
}

// Engine serves the connections of every database.
type Engine struct {
	registry   *Registry
	conns      *cmap.Map[ConnID, *socketInfo]
	background *background.Background
	metrics    *prometheus.Metrics

	now            func() gotime.Time
	drainBatchSize int
	drains         *semaphore.Weighted
	dismissTimeout gotime.Duration
}

// NewEngine creates an engine over the resources of the backend.
func NewEngine(be *backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		conns:          cmap.New[ConnID, *socketInfo](),
		background:     be.Background,
		metrics:        be.Metrics,
		now:            gotime.Now,
		drainBatchSize: be.Config.DrainBatchSize,
		drains:         semaphore.NewWeighted(be.Config.MaxConcurrentDrains),
		dismissTimeout: DefaultDismissTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = NewRegistry(be.DB, be.Config.SecretHashCost, e.now)

	return e
}

// Registry returns the registry of the live databases.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Connect registers a new connection over the socket.
func (e *Engine) Connect(socket Socket) ConnID {
	id := ConnID(xid.New().String())
	e.conns.Set(id, &socketInfo{
		id:     id,
		socket: socket,
		logger: logging.New("conn", logging.ConnField(string(id))),
		state:  stateNone,
	})
	return id
}

// Handle serves one message of the connection. Refused requests are answered
// with an err message; the returned error is fatal for the connection.
func (e *Engine) Handle(ctx context.Context, conn ConnID, env *types.Envelope) error {
	var err error
	if verr := env.Validate(); verr != nil {
		err = fmt.Errorf("%s: %w", verr, ErrInvalidRequest)
	} else {
		switch env.Type {
		case types.JoinMessage:
			err = e.Join(ctx, conn, env.Join)
		case types.PushMessage:
			_, err = e.Append(ctx, conn, env.Push)
		default:
			err = fmt.Errorf("%s from client: %w", env.Type, ErrInvalidRequest)
		}
	}
	if err == nil {
		return nil
	}

	info, ok := e.conns.Get(conn)
	if !ok {
		return fmt.Errorf("%s: %w", conn, ErrUnknownConnection)
	}

	failure := ToFailure(err)
	if failure.Code == types.InternalFailure {
		info.logger.Errorf("serve %s: %v", env.Type, err)
		if serr := info.socket.Send(types.NewErr(failure)); serr != nil {
			info.logger.Debugf("send internal failure: %v", serr)
		}
		return err
	}

	info.logger.Debugf("refused %s: %v", env.Type, err)
	return info.socket.Send(types.NewErr(failure))
}

// Join attaches the connection to a replica of a database and starts
// streaming the log from the received count of the request.
func (e *Engine) Join(ctx context.Context, conn ConnID, req *types.JoinRequest) error {
	info, ok := e.conns.Get(conn)
	if !ok {
		return fmt.Errorf("%s: %w", conn, ErrUnknownConnection)
	}
	if info.db != nil {
		return ErrAlreadyJoined
	}
	if req == nil {
		return fmt.Errorf("empty join: %w", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidRequest)
	}

	db, err := e.registry.GetOrCreate(ctx, req.Database)
	if err != nil {
		return err
	}

	db.mu.Lock()
	replica, err := e.registry.RegisterReplica(ctx, db, req.ReplicaID, req.Secret)
	if err != nil {
		db.mu.Unlock()
		e.addJoin(db, err)
		return err
	}
	if req.ReceivedCount > db.length {
		db.mu.Unlock()
		err := fmt.Errorf(
			"received count %d beyond length %d: %w",
			req.ReceivedCount, db.length, ErrInvalidRequest,
		)
		e.addJoin(db, err)
		return err
	}

	stale := replica.conn
	if stale != nil && !e.evict(stale) {
		stale = nil
	}

	info.db = db
	info.replica = replica
	info.sentCount = req.ReceivedCount
	info.state = stateStreaming
	info.draining = true
	info.logger = info.logger.With(logging.DatabaseField(db.ID), logging.ReplicaField(replica.ID))
	replica.conn = info
	db.conns[info.id] = info
	okay := types.NewOkay(db.length, replica.receivedCount)
	db.mu.Unlock()

	if e.metrics != nil {
		e.metrics.AddSocket(string(db.ID), "joined")
	}
	e.addJoin(db, nil)

	if stale != nil {
		stale.logger.Infof("replaced by %s", info.id)
		go e.dismiss(stale)
	}

	if err := info.socket.Send(okay); err != nil {
		e.abort(info, nil)
		return fmt.Errorf("send okay: %w", err)
	}
	info.logger.Infof("joined from %d of %d", req.ReceivedCount, okay.Okay.TotalCount)

	db.mu.Lock()
	e.spawnDrain(info)
	db.mu.Unlock()
	return nil
}

// Append appends the statement pushed by the connection and wakes up the idle
// connections of the database, the sender included.
func (e *Engine) Append(ctx context.Context, conn ConnID, push *types.RawStatement) (*types.RawStatement, error) {
	info, ok := e.conns.Get(conn)
	if !ok || info.db == nil {
		return nil, ErrMustJoin
	}
	if push == nil {
		return nil, fmt.Errorf("empty push: %w", ErrInvalidRequest)
	}
	if err := push.AccessControl.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidRequest)
	}
	if len(push.Payload) > 0 && !json.Valid(push.Payload) {
		return nil, fmt.Errorf("payload is not JSON: %w", ErrInvalidRequest)
	}
	payload, err := converter.CompactPayload(push.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, ErrInvalidRequest)
	}

	start := gotime.Now()
	db := info.db

	db.mu.Lock()
	defer db.mu.Unlock()

	if info.state == stateDelete {
		return nil, ErrOtherConnection
	}

	stmt, err := e.registry.Append(ctx, db, info.replica, payload, push.AccessControl)
	if err != nil {
		return nil, err
	}

	for _, other := range db.conns {
		if other.state != stateIdle {
			continue
		}
		other.state = stateStreaming
		other.draining = true
		e.spawnDrain(other)
	}

	if e.metrics != nil {
		e.metrics.AddAppendedStatements(string(db.ID), 1)
		e.metrics.ObserveAppendSeconds(gotime.Since(start).Seconds())
	}
	return stmt, nil
}

// Disconnect releases the connection. A streaming connection is released by
// its drain loop.
func (e *Engine) Disconnect(conn ConnID) {
	info, ok := e.conns.Get(conn)
	if !ok {
		return
	}

	db := info.db
	if db == nil {
		e.conns.Delete(conn)
		return
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	switch info.state {
	case stateIdle:
		e.free(info)
	case stateStreaming:
		info.state = stateDelete
	case stateDelete:
		if !info.draining {
			e.free(info)
		}
	}
}

// spawnDrain starts the drain loop of a connection marked draining. The lock
// of the database is held.
func (e *Engine) spawnDrain(info *socketInfo) {
	if e.background.AttachGoroutine(func(ctx context.Context) {
		e.drain(ctx, info)
	}, drainTaskType) {
		return
	}

	// The background is closed: the server is shutting down. The connection
	// stays idle so that Disconnect frees it.
	info.draining = false
	if info.state == stateDelete {
		e.free(info)
		return
	}
	info.state = stateIdle
}

// drain pushes the backlog of the connection in batches until it caught up
// with the log. The lock is not held while reading the store or sending.
func (e *Engine) drain(ctx context.Context, info *socketInfo) {
	db := info.db

	for {
		db.mu.Lock()
		if info.state == stateDelete {
			info.draining = false
			e.free(info)
			db.mu.Unlock()
			return
		}
		if info.sentCount >= db.length {
			info.state = stateIdle
			info.draining = false
			db.mu.Unlock()
			return
		}
		from, receiver := info.sentCount, info.replica.ID
		db.mu.Unlock()

		stmts, err := e.readBatch(ctx, db, from)
		if err == nil && len(stmts) == 0 {
			err = errors.Internal(fmt.Sprintf("no statement at %d of %s", from, db.ID))
		}
		if err != nil {
			e.abort(info, err)
			return
		}

		for _, stmt := range stmts {
			filtered := Filter(stmt, receiver)
			if err := info.socket.Send(types.NewPush(filtered)); err != nil {
				info.logger.Debugf("push %d: %v", stmt.Index, err)
				e.abort(info, nil)
				return
			}
			if e.metrics != nil {
				e.metrics.AddSentStatement(string(db.ID), filtered.Obscured)
			}
		}

		db.mu.Lock()
		info.sentCount = from + int64(len(stmts))
		db.mu.Unlock()
	}
}

func (e *Engine) readBatch(ctx context.Context, db *Database, from int64) ([]*types.RawStatement, error) {
	if err := e.drains.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.drains.Release(1)

	return e.registry.Statements(ctx, db, from, e.drainBatchSize)
}

// abort frees a connection whose drain loop failed. A non-nil cause is
// reported to the peer before the transport is closed.
func (e *Engine) abort(info *socketInfo, cause error) {
	db := info.db
	db.mu.Lock()
	info.state = stateDelete
	info.draining = false
	e.free(info)
	db.mu.Unlock()

	if cause != nil {
		info.logger.Errorf("drain: %v", cause)
		if err := info.socket.Send(types.NewErr(ToFailure(cause))); err != nil {
			info.logger.Debugf("send drain failure: %v", err)
		}
	}
	info.socket.Close()
}

// dismiss notifies an evicted connection and closes its transport. The
// transport is closed after the dismiss timeout even if the notice is stuck
// behind a slow send.
func (e *Engine) dismiss(stale *socketInfo) {
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		if err := stale.socket.Send(types.NewErr(ToFailure(ErrOtherConnection))); err != nil {
			stale.logger.Debugf("send other connection: %v", err)
		}
	}()

	timer := gotime.NewTimer(e.dismissTimeout)
	defer timer.Stop()
	select {
	case <-sent:
	case <-timer.C:
		stale.logger.Debugf("other connection notice timed out")
	}
	stale.socket.Close()
}

// evict detaches a connection replaced by a newer one of the same replica.
// It returns false if the connection was being freed already. The lock of
// the database is held.
func (e *Engine) evict(info *socketInfo) bool {
	if info.state != stateIdle && info.state != stateStreaming {
		return false
	}

	info.state = stateDelete
	e.detach(info)
	return true
}

// detach removes the connection from its database and replica. The lock of
// the database is held.
func (e *Engine) detach(info *socketInfo) {
	db := info.db
	if _, ok := db.conns[info.id]; !ok {
		return
	}

	delete(db.conns, info.id)
	if info.replica.conn == info {
		info.replica.conn = nil
	}
	if e.metrics != nil {
		e.metrics.RemoveSocket(string(db.ID), "joined")
	}
}

// free releases the connection record. The lock of the database is held.
func (e *Engine) free(info *socketInfo) {
	e.detach(info)
	e.conns.Delete(info.id)
}

func (e *Engine) addJoin(db *Database, err error) {
	if e.metrics == nil {
		return
	}

	result := "okay"
	if err != nil {
		result = string(ToFailure(err).Code)
	}
	e.metrics.AddJoin(string(db.ID), result)
}

// ToFailure converts an error into the body of an err message. Errors
// without a failure code are internal failures.
func ToFailure(err error) *types.Failure {
	switch code := types.FailureCode(errors.CodeOf(err)); code {
	case types.AlreadyJoined,
		types.WrongSession,
		types.OtherConnection,
		types.MustJoin,
		types.InvalidRequest:
		return &types.Failure{Code: code, Message: err.Error()}
	}

	return &types.Failure{Code: types.InternalFailure, Message: err.Error()}
}
