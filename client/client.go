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

// Package client provides the client of the replication service. A Client
// joins a database as one replica, uploads the statements of its Replica one
// at a time and feeds every statement of the log back into the Replica.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anagni-team/anagni/api/converter"
	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/pkg/machine"
)

var (
	// ErrProtocol is returned when the server breaks the replication protocol
	// or the local state diverged from the log. The session cannot continue
	// and the Client cannot connect again: resyncing takes a new Client over
	// a fresh Replica.
	ErrProtocol = errors.New("protocol error")

	// ErrNoAnswer is returned when the input function answers a request
	// with no statement.
	ErrNoAnswer = errors.New("input request without answer")

	// ErrEchoTimeout is returned when an uploaded statement is not echoed
	// back within the echo timeout.
	ErrEchoTimeout = errors.New("echo timeout")

	// ErrJoinTimeout is returned when the server does not answer the join
	// within the join timeout.
	ErrJoinTimeout = errors.New("join timeout")

	// ErrAlreadyConnected is returned when connecting a connected client.
	ErrAlreadyConnected = errors.New("client is already connected")

	// ErrNotConnected is returned when waiting on a client that never connected.
	ErrNotConnected = errors.New("client is not connected")
)

// State is the state of the connection of a client.
type State int

const (
	// Down means there is no connection.
	Down State = iota

	// Joining means the join was sent and the okay is awaited.
	Joining

	// Joined means the log is streamed.
	Joined
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats is a snapshot of the replication progress of a client.
type Stats struct {
	State State

	// TotalCount is the length of the log when the last join was answered.
	TotalCount int64

	// Queued is the number of statements produced by the replica.
	Queued int64

	// SentPointer is the number of queued statements echoed by the server.
	SentPointer int64

	// ReceivedPointer is the number of statements consumed from the log.
	ReceivedPointer int64

	// ServerCount is the number of our statements the server had at join.
	ServerCount int64

	// InFlight is whether an uploaded statement awaits its echo.
	InFlight bool
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Client is a replica of one database. The statements produced by the
// Replica survive reconnections of the same Client.
type Client[T, U any] struct {
	auth    Auth
	replica Replica[T, U]
	input   InputFunc[T, U]
	options Options
	logger  *zap.Logger

	// Owned by the worker of the current session.
	queue           []*types.RawStatement
	sentPointer     int64
	receivedPointer int64
	serverCount     int64
	sentOne         bool
	initialized     bool

	mu     sync.Mutex
	stats  Stats
	sess   *session
	broken error
}

// New creates an instance of Client. The input function may be nil, in
// which case requests for external input are dropped.
func New[T, U any](auth Auth, replica Replica[T, U], input InputFunc[T, U], opts ...Option) *Client[T, U] {
	options := Options{
		SealCipher:  codec.ChaCha20Poly1305,
		JoinTimeout: DefaultJoinTimeout,
		Dialer:      Dial,
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger := zap.NewNop()
	if options.Logger != nil {
		logger = options.Logger
	}

	return &Client[T, U]{
		auth:    auth,
		replica: replica,
		input:   input,
		options: options,
		logger: logger.With(
			zap.String("replica", string(auth.ReplicaID)),
			zap.String("db", string(auth.Database)),
		),
	}
}

// Auth returns the session material of the client.
func (c *Client[T, U]) Auth() Auth {
	return c.auth
}

// Stats returns a snapshot of the replication progress.
func (c *Client[T, U]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Connect dials the server and joins the database from the number of
// statements received so far. It returns once the server answered the join;
// the log is then streamed in the background until Disconnect or a failure.
// After a session ended with ErrProtocol, Connect fails with it.
func (c *Client[T, U]) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.broken != nil {
		c.mu.Unlock()
		return fmt.Errorf("client is broken: %w", c.broken)
	}
	if c.sess != nil {
		select {
		case <-c.sess.done:
		default:
			c.mu.Unlock()
			return ErrAlreadyConnected
		}
	}
	c.stats.State = Joining
	c.mu.Unlock()

	conn, err := c.options.Dialer(ctx, c.auth.ServerAddr, &c.options)
	if err != nil {
		c.setState(Down)
		return err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	joined := make(chan struct{})
	envs := make(chan *types.Envelope)
	g, gctx := errgroup.WithContext(sessCtx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		return c.receive(gctx, conn, envs)
	})
	g.Go(func() error {
		return c.work(gctx, conn, envs, joined)
	})
	go func() {
		err := g.Wait()
		cancel()
		if err != nil {
			c.logger.Warn("session ended", zap.Error(err))
		}

		c.mu.Lock()
		sess.err = err
		if errors.Is(err, ErrProtocol) {
			c.broken = err
		}
		c.stats.State = Down
		c.mu.Unlock()
		close(sess.done)
	}()

	timer := time.NewTimer(c.options.JoinTimeout)
	defer timer.Stop()

	select {
	case <-joined:
		return nil
	case <-sess.done:
		if sess.err == nil {
			return fmt.Errorf("join: %w", ErrNotConnected)
		}
		return sess.err
	case <-timer.C:
		cancel()
		<-sess.done
		return ErrJoinTimeout
	case <-ctx.Done():
		cancel()
		<-sess.done
		return ctx.Err()
	}
}

// Disconnect ends the session. Messages arriving afterwards are ignored.
func (c *Client[T, U]) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	sess.cancel()
	<-sess.done
}

// Wait blocks until the session ends and returns the error it ended with.
// A session ended by Disconnect returns nil.
func (c *Client[T, U]) Wait(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}

	select {
	case <-sess.done:
		return sess.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client[T, U]) receive(ctx context.Context, conn Conn, envs chan<- *types.Envelope) error {
	for {
		env, err := conn.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		select {
		case envs <- env:
		case <-ctx.Done():
			return nil
		}
	}
}

// work processes the messages of the server one after the other.
func (c *Client[T, U]) work(
	ctx context.Context,
	conn Conn,
	envs <-chan *types.Envelope,
	joined chan<- struct{},
) error {
	if err := conn.Send(types.NewJoin(c.auth.joinRequest(c.receivedPointer))); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	state := Joining
	var echoTimer *time.Timer
	var echoC <-chan time.Time
	armedFor := int64(-1)
	defer func() {
		if echoTimer != nil {
			echoTimer.Stop()
		}
	}()

	for {
		var env *types.Envelope
		select {
		case <-ctx.Done():
			return nil
		case <-echoC:
			return fmt.Errorf("statement %d: %w", c.sentPointer, ErrEchoTimeout)
		case env = <-envs:
		}
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case env.Type == types.ErrMessage && env.Err != nil:
			return env.Err
		case state == Joining && env.Type == types.OkayMessage && env.Okay != nil:
			if err := c.onOkay(ctx, conn, env.Okay); err != nil {
				return err
			}
			state = Joined
			c.publish()
			c.setState(Joined)
			close(joined)
		case state == Joined && env.Type == types.PushMessage && env.Push != nil:
			if err := c.onPush(ctx, conn, env.Push); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unexpected %s while %s", ErrProtocol, env.Type, state)
		}
		c.publish()

		if c.options.EchoTimeout > 0 {
			switch {
			case c.sentOne && armedFor != c.sentPointer:
				if echoTimer != nil {
					echoTimer.Stop()
				}
				echoTimer = time.NewTimer(c.options.EchoTimeout)
				echoC = echoTimer.C
				armedFor = c.sentPointer
			case !c.sentOne && echoTimer != nil:
				echoTimer.Stop()
				echoTimer, echoC = nil, nil
				armedFor = -1
			}
		}
	}
}

func (c *Client[T, U]) onOkay(ctx context.Context, conn Conn, okay *types.OkayResponse) error {
	queued := int64(len(c.queue))
	active := queued > 0 || c.sentPointer > 0 || c.receivedPointer > 0
	if active && okay.YourCount > queued {
		return fmt.Errorf(
			"%w: wrong replay from future: server has %d of our statements, %d queued",
			ErrProtocol, okay.YourCount, queued,
		)
	}
	if okay.YourCount < c.sentPointer {
		return fmt.Errorf(
			"%w: server has %d of our statements, %d were echoed",
			ErrProtocol, okay.YourCount, c.sentPointer,
		)
	}

	c.serverCount = okay.YourCount
	c.sentOne = false
	c.mu.Lock()
	c.stats.TotalCount = okay.TotalCount
	c.mu.Unlock()
	c.logger.Debug(
		"joined",
		zap.Int64("total", okay.TotalCount),
		zap.Int64("yours", okay.YourCount),
		zap.Int64("from", c.receivedPointer),
	)

	if !c.initialized {
		c.initialized = true
		if err := c.absorb(ctx, c.replica.Init(ctx, c.auth.ReplicaID)); err != nil {
			return err
		}
	}

	return c.checkSend(conn)
}

func (c *Client[T, U]) onPush(ctx context.Context, conn Conn, stmt *types.RawStatement) error {
	if stmt.Index != c.receivedPointer {
		return fmt.Errorf("%w: expected statement %d, received %d", ErrProtocol, c.receivedPointer, stmt.Index)
	}
	c.receivedPointer++

	if stmt.Replica == c.auth.ReplicaID {
		if err := c.onEcho(stmt); err != nil {
			return err
		}
	}

	typed, err := converter.FromRawStatement[T](stmt)
	if err != nil {
		return fmt.Errorf("statement %d: %w", stmt.Index, err)
	}
	if err := c.absorb(ctx, c.replica.Dispatch(ctx, typed)); err != nil {
		return err
	}

	return c.checkSend(conn)
}

// onEcho matches our own statement coming back from the log with the queue.
// The empty slot of a suppressed input request takes the echo.
func (c *Client[T, U]) onEcho(stmt *types.RawStatement) error {
	if c.sentPointer >= int64(len(c.queue)) {
		return fmt.Errorf("%w: received statement %d that was never sent", ErrProtocol, stmt.Index)
	}

	queued := c.queue[c.sentPointer]
	switch {
	case queued == nil:
		c.queue[c.sentPointer] = &types.RawStatement{
			AccessControl: stmt.AccessControl,
			Payload:       stmt.Payload,
		}
	case !sameStatement(queued, stmt):
		return fmt.Errorf("%w: received different than sent at %d", ErrProtocol, stmt.Index)
	}

	c.sentPointer++
	c.sentOne = false
	return nil
}

// checkSend uploads the next queued statement unless one is in flight or
// the server has it already.
func (c *Client[T, U]) checkSend(conn Conn) error {
	if c.sentOne || c.sentPointer < c.serverCount || c.sentPointer >= int64(len(c.queue)) {
		return nil
	}

	if err := conn.Send(types.NewPush(c.queue[c.sentPointer])); err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	c.sentOne = true
	return nil
}

// absorb queues the statements of the replica and answers its requests for
// external input. While replaying, a request takes an empty slot of the
// queue instead of being answered again.
func (c *Client[T, U]) absorb(ctx context.Context, out machine.Stream[Output[T, U]]) error {
	for o, err := range out {
		if err != nil {
			return fmt.Errorf("replica: %w", err)
		}

		if stmt, ok := o.Left(); ok {
			if err := c.enqueue(stmt); err != nil {
				return err
			}
			continue
		}

		req, _ := o.Right()
		if c.input == nil {
			continue
		}
		if c.replaying() {
			// The answer is in the log already: its slot is filled by the echo.
			c.logger.Debug("input request suppressed while replaying")
			c.queue = append(c.queue, nil)
			continue
		}

		stmt, err := c.input(ctx, req)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		if stmt == nil {
			return fmt.Errorf("input: %w", ErrNoAnswer)
		}
		if err := c.enqueue(stmt); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client[T, U]) enqueue(stmt *types.Statement[T]) error {
	if err := stmt.AccessControl.Validate(); err != nil {
		return fmt.Errorf("replica: %w", err)
	}

	raw, err := converter.ToRawStatement(stmt)
	if err != nil {
		return fmt.Errorf("replica: %w", err)
	}
	c.queue = append(c.queue, &types.RawStatement{
		AccessControl: raw.AccessControl,
		Payload:       raw.Payload,
	})
	return nil
}

// replaying is whether the server holds more of our statements than the
// replica produced so far.
func (c *Client[T, U]) replaying() bool {
	return c.serverCount > int64(len(c.queue))
}

func (c *Client[T, U]) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Queued = int64(len(c.queue))
	c.stats.SentPointer = c.sentPointer
	c.stats.ReceivedPointer = c.receivedPointer
	c.stats.ServerCount = c.serverCount
	c.stats.InFlight = c.sentOne
}

func (c *Client[T, U]) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.State = state
}

func sameStatement(sent, echoed *types.RawStatement) bool {
	if !sent.AccessControl.Equal(echoed.AccessControl) {
		return false
	}

	a, err := converter.CompactPayload(sent.Payload)
	if err != nil {
		return false
	}
	b, err := converter.CompactPayload(echoed.Payload)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
