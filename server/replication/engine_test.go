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

package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/backend/background"
)

var errSocketClosed = errors.New("socket closed")

type mockSocket struct {
	mu     sync.Mutex
	envs   []*types.Envelope
	closed bool
}

func (s *mockSocket) Send(env *types.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSocketClosed
	}
	s.envs = append(s.envs, env)
	return nil
}

func (s *mockSocket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *mockSocket) received() []*types.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Envelope(nil), s.envs...)
}

func (s *mockSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// waitFor waits until the socket received n messages and returns them.
func (s *mockSocket) waitFor(t *testing.T, n int) []*types.Envelope {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.received()) >= n
	}, 5*gotime.Second, 5*gotime.Millisecond, "expected %d messages", n)
	envs := s.received()
	assert.Len(t, envs, n)
	return envs
}

// stuckSocket is a socket whose sends hang once stalled, like a stream to a
// half-dead peer. Sends are serialized and Close does not wait for them.
type stuckSocket struct {
	mockSocket

	sendMu    sync.Mutex
	stalled   atomic.Bool
	stuck     chan struct{}
	stuckOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

func newStuckSocket() *stuckSocket {
	return &stuckSocket{stuck: make(chan struct{}), done: make(chan struct{})}
}

func (s *stuckSocket) Send(env *types.Envelope) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.stalled.Load() {
		s.stuckOnce.Do(func() { close(s.stuck) })
		<-s.done
		return errSocketClosed
	}
	return s.mockSocket.Send(env)
}

func (s *stuckSocket) Close() {
	s.doneOnce.Do(func() { close(s.done) })
	s.mockSocket.Close()
}

func waitIdle(t *testing.T, e *Engine, conn ConnID) {
	t.Helper()
	assert.Eventually(t, func() bool {
		info, _ := e.conns.Get(conn)
		info.db.mu.Lock()
		defer info.db.mu.Unlock()
		return info.state == stateIdle
	}, 5*gotime.Second, 5*gotime.Millisecond)
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	be, err := backend.New(&backend.Config{
		DrainBatchSize:      3,
		MaxConcurrentDrains: 4,
		SecretHashCost:      4,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})

	return NewEngine(be, opts...)
}

func joinEnvelope(replica, db string, received int64) *types.Envelope {
	return types.NewJoin(&types.JoinRequest{
		ReplicaID:     types.ReplicaID(replica),
		Database:      types.DatabaseID(db),
		Secret:        "secret-of-" + replica,
		ReceivedCount: received,
	})
}

func pushEnvelope(payload string, ac types.AccessControl) *types.Envelope {
	return types.NewPush(&types.RawStatement{
		AccessControl: ac,
		Payload:       json.RawMessage(payload),
	})
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("join once test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		envs := socket.waitFor(t, 1)
		assert.Equal(t, types.NewOkay(0, 0), envs[0])
	})

	t.Run("join twice test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))

		envs := socket.waitFor(t, 2)
		assert.Equal(t, types.OkayMessage, envs[0].Type)
		assert.Equal(t, types.ErrMessage, envs[1].Type)
		assert.Equal(t, types.AlreadyJoined, envs[1].Err.Code)
	})

	t.Run("push before join test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(`"hi"`, types.All())))
		envs := socket.waitFor(t, 1)
		assert.Equal(t, types.MustJoin, envs[0].Err.Code)
	})

	t.Run("push one test", func(t *testing.T) {
		now := gotime.UnixMilli(1700000000123)
		e := newTestEngine(t, WithClock(func() gotime.Time { return now }))
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(`{ "text" : "hi" }`, types.All())))

		envs := socket.waitFor(t, 2)
		assert.Equal(t, types.OkayMessage, envs[0].Type)
		assert.Equal(t, &types.RawStatement{
			Index:         0,
			Replica:       "alice",
			Time:          now.UnixMilli(),
			AccessControl: types.All(),
			Payload:       json.RawMessage(`{"text":"hi"}`),
		}, envs[1].Push)
	})

	t.Run("push n test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		const n = 10
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		for i := 0; i < n; i++ {
			assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(fmt.Sprintf("%d", i), types.All())))
		}

		envs := socket.waitFor(t, n+1)
		for i, env := range envs[1:] {
			assert.Equal(t, int64(i), env.Push.Index)
			assert.Equal(t, fmt.Sprintf("%d", i), string(env.Push.Payload))
		}
	})

	t.Run("receive n from another replica test", func(t *testing.T) {
		e := newTestEngine(t)
		alice, bob := &mockSocket{}, &mockSocket{}
		aliceConn, bobConn := e.Connect(alice), e.Connect(bob)

		assert.NoError(t, e.Handle(ctx, bobConn, joinEnvelope("bob", "db", 0)))
		assert.NoError(t, e.Handle(ctx, aliceConn, joinEnvelope("alice", "db", 0)))

		const n = 7
		for i := 0; i < n; i++ {
			assert.NoError(t, e.Handle(ctx, aliceConn, pushEnvelope(fmt.Sprintf("%d", i), types.All())))
		}

		envs := bob.waitFor(t, n+1)
		assert.Equal(t, types.NewOkay(0, 0), envs[0])
		for i, env := range envs[1:] {
			assert.Equal(t, int64(i), env.Push.Index)
			assert.Equal(t, types.ReplicaID("alice"), env.Push.Replica)
		}
		alice.waitFor(t, n+1)
	})

	t.Run("access control obscures payload test", func(t *testing.T) {
		e := newTestEngine(t)
		alice, bob, carol := &mockSocket{}, &mockSocket{}, &mockSocket{}
		aliceConn, bobConn, carolConn := e.Connect(alice), e.Connect(bob), e.Connect(carol)
		assert.NoError(t, e.Handle(ctx, aliceConn, joinEnvelope("alice", "db", 0)))
		assert.NoError(t, e.Handle(ctx, bobConn, joinEnvelope("bob", "db", 0)))
		assert.NoError(t, e.Handle(ctx, carolConn, joinEnvelope("carol", "db", 0)))

		assert.NoError(t, e.Handle(ctx, aliceConn, pushEnvelope(`"for bob"`, types.Only("bob"))))
		assert.NoError(t, e.Handle(ctx, aliceConn, pushEnvelope(`"not for bob"`, types.Except("bob"))))

		aliceEnvs, bobEnvs, carolEnvs := alice.waitFor(t, 3), bob.waitFor(t, 3), carol.waitFor(t, 3)

		assert.False(t, aliceEnvs[1].Push.Obscured)
		assert.False(t, aliceEnvs[2].Push.Obscured)
		assert.Equal(t, `"for bob"`, string(aliceEnvs[1].Push.Payload))

		assert.Equal(t, `"for bob"`, string(bobEnvs[1].Push.Payload))
		assert.True(t, bobEnvs[2].Push.Obscured)
		assert.Equal(t, "null", string(bobEnvs[2].Push.Payload))
		assert.Equal(t, int64(1), bobEnvs[2].Push.Index)

		assert.True(t, carolEnvs[1].Push.Obscured)
		assert.Equal(t, `"not for bob"`, string(carolEnvs[2].Push.Payload))
	})

	t.Run("resume from k test", func(t *testing.T) {
		e := newTestEngine(t)
		first := &mockSocket{}
		conn := e.Connect(first)

		const n, k = 8, 5
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		for i := 0; i < n; i++ {
			assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(fmt.Sprintf("%d", i), types.All())))
		}
		first.waitFor(t, n+1)
		e.Disconnect(conn)

		second := &mockSocket{}
		conn = e.Connect(second)
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", k)))

		envs := second.waitFor(t, n-k+1)
		assert.Equal(t, types.NewOkay(n, n), envs[0])
		for i, env := range envs[1:] {
			assert.Equal(t, int64(k+i), env.Push.Index)
		}
	})

	t.Run("received count beyond log test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 3)))
		envs := socket.waitFor(t, 1)
		assert.Equal(t, types.InvalidRequest, envs[0].Err.Code)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		envs = socket.waitFor(t, 2)
		assert.Equal(t, types.OkayMessage, envs[1].Type)
	})

	t.Run("wrong session test", func(t *testing.T) {
		e := newTestEngine(t)
		first, second := &mockSocket{}, &mockSocket{}
		firstConn, secondConn := e.Connect(first), e.Connect(second)

		assert.NoError(t, e.Handle(ctx, firstConn, joinEnvelope("alice", "db", 0)))

		env := joinEnvelope("alice", "db", 0)
		env.Join.Secret = "guess"
		assert.NoError(t, e.Handle(ctx, secondConn, env))

		envs := second.waitFor(t, 1)
		assert.Equal(t, types.WrongSession, envs[0].Err.Code)
		assert.False(t, first.isClosed())
	})

	t.Run("invalid request test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)

		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("", "db", 0)))
		assert.NoError(t, e.Handle(ctx, conn, &types.Envelope{Type: types.OkayMessage, Okay: &types.OkayResponse{}}))
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(`{`, types.All())))
		assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(`1`, types.AccessControl{Mode: "some"})))

		envs := socket.waitFor(t, 5)
		assert.Equal(t, types.InvalidRequest, envs[0].Err.Code)
		assert.Equal(t, types.InvalidRequest, envs[1].Err.Code)
		assert.Equal(t, types.OkayMessage, envs[2].Type)
		assert.Equal(t, types.InvalidRequest, envs[3].Err.Code)
		assert.Equal(t, types.InvalidRequest, envs[4].Err.Code)
		assert.Equal(t, 1, e.conns.Len())
	})

	t.Run("other connection test", func(t *testing.T) {
		e := newTestEngine(t)
		first, second := &mockSocket{}, &mockSocket{}
		firstConn := e.Connect(first)

		assert.NoError(t, e.Handle(ctx, firstConn, joinEnvelope("alice", "db", 0)))
		assert.NoError(t, e.Handle(ctx, firstConn, pushEnvelope(`1`, types.All())))
		first.waitFor(t, 2)

		secondConn := e.Connect(second)
		assert.NoError(t, e.Handle(ctx, secondConn, joinEnvelope("alice", "db", 1)))

		envs := first.waitFor(t, 3)
		assert.Equal(t, types.OtherConnection, envs[2].Err.Code)
		assert.Eventually(t, first.isClosed, 5*gotime.Second, 5*gotime.Millisecond)

		envs = second.waitFor(t, 1)
		assert.Equal(t, types.NewOkay(1, 1), envs[0])

		// The evicted connection may not append anymore.
		_, err := e.Append(ctx, firstConn, &types.RawStatement{Payload: json.RawMessage(`2`)})
		assert.ErrorIs(t, err, ErrOtherConnection)

		e.Disconnect(firstConn)
		assert.Eventually(t, func() bool {
			_, ok := e.conns.Get(firstConn)
			return !ok
		}, 5*gotime.Second, 5*gotime.Millisecond)
	})

	t.Run("other connection with a stuck stream test", func(t *testing.T) {
		e := newTestEngine(t, WithDismissTimeout(50*gotime.Millisecond))
		first := newStuckSocket()
		firstConn := e.Connect(first)
		assert.NoError(t, e.Handle(ctx, firstConn, joinEnvelope("alice", "db", 0)))
		first.waitFor(t, 1)
		waitIdle(t, e, firstConn)

		// The next push to the first connection hangs.
		first.stalled.Store(true)
		writer := &mockSocket{}
		writerConn := e.Connect(writer)
		assert.NoError(t, e.Handle(ctx, writerConn, joinEnvelope("bob", "db", 0)))
		assert.NoError(t, e.Handle(ctx, writerConn, pushEnvelope(`1`, types.All())))
		select {
		case <-first.stuck:
		case <-gotime.After(5 * gotime.Second):
			require.FailNow(t, "the first connection never got stuck")
		}

		second := &mockSocket{}
		secondConn := e.Connect(second)
		joined := make(chan error, 1)
		go func() {
			joined <- e.Handle(ctx, secondConn, joinEnvelope("alice", "db", 0))
		}()
		select {
		case err := <-joined:
			assert.NoError(t, err)
		case <-gotime.After(gotime.Second):
			require.FailNow(t, "join blocked by the stuck connection")
		}

		envs := second.waitFor(t, 2)
		assert.Equal(t, types.NewOkay(1, 0), envs[0])
		assert.Equal(t, int64(0), envs[1].Push.Index)

		assert.Eventually(t, first.isClosed, 5*gotime.Second, 5*gotime.Millisecond)
		assert.Eventually(t, func() bool {
			_, ok := e.conns.Get(firstConn)
			return !ok
		}, 5*gotime.Second, 5*gotime.Millisecond)
	})

	t.Run("join while shutting down test", func(t *testing.T) {
		e := newTestEngine(t)
		closed := background.New(nil)
		closed.Close()
		e.background = closed

		socket := &mockSocket{}
		conn := e.Connect(socket)
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		socket.waitFor(t, 1)

		info, ok := e.conns.Get(conn)
		require.True(t, ok)
		info.db.mu.Lock()
		assert.Equal(t, stateIdle, info.state)
		assert.False(t, info.draining)
		info.db.mu.Unlock()

		e.Disconnect(conn)
		assert.Equal(t, 0, e.conns.Len())
	})

	t.Run("disconnect during streaming test", func(t *testing.T) {
		e := newTestEngine(t)
		writer := &mockSocket{}
		writerConn := e.Connect(writer)
		assert.NoError(t, e.Handle(ctx, writerConn, joinEnvelope("alice", "db", 0)))
		for i := 0; i < 50; i++ {
			assert.NoError(t, e.Handle(ctx, writerConn, pushEnvelope(fmt.Sprintf("%d", i), types.All())))
		}

		reader := &mockSocket{}
		readerConn := e.Connect(reader)
		assert.NoError(t, e.Handle(ctx, readerConn, joinEnvelope("bob", "db", 0)))
		e.Disconnect(readerConn)
		reader.Close()

		assert.Eventually(t, func() bool {
			_, ok := e.conns.Get(readerConn)
			return !ok
		}, 5*gotime.Second, 5*gotime.Millisecond)

		db, err := e.Registry().GetOrCreate(ctx, "db")
		assert.NoError(t, err)
		db.mu.Lock()
		_, attached := db.conns[readerConn]
		bob := db.replicas["bob"]
		db.mu.Unlock()
		assert.False(t, attached)
		assert.Nil(t, bob.conn)
	})

	t.Run("disconnect idle test", func(t *testing.T) {
		e := newTestEngine(t)
		socket := &mockSocket{}
		conn := e.Connect(socket)
		assert.NoError(t, e.Handle(ctx, conn, joinEnvelope("alice", "db", 0)))
		socket.waitFor(t, 1)

		assert.Eventually(t, func() bool {
			info, _ := e.conns.Get(conn)
			info.db.mu.Lock()
			defer info.db.mu.Unlock()
			return info.state == stateIdle
		}, 5*gotime.Second, 5*gotime.Millisecond)

		e.Disconnect(conn)
		assert.Equal(t, 0, e.conns.Len())

		// Disconnecting twice is a no-op.
		e.Disconnect(conn)
	})

	t.Run("index density test", func(t *testing.T) {
		e := newTestEngine(t)
		const writers, perWriter = 4, 25

		sockets := make([]*mockSocket, writers)
		conns := make([]ConnID, writers)
		for i := range sockets {
			sockets[i] = &mockSocket{}
			conns[i] = e.Connect(sockets[i])
			assert.NoError(t, e.Handle(ctx, conns[i], joinEnvelope(fmt.Sprintf("r%d", i), "db", 0)))
		}

		var wg sync.WaitGroup
		for i := range conns {
			wg.Add(1)
			go func(conn ConnID) {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					assert.NoError(t, e.Handle(ctx, conn, pushEnvelope(fmt.Sprintf("%d", j), types.All())))
				}
			}(conns[i])
		}
		wg.Wait()

		for _, socket := range sockets {
			envs := socket.waitFor(t, writers*perWriter+1)
			for i, env := range envs[1:] {
				assert.Equal(t, int64(i), env.Push.Index)
			}
		}
	})
}

func TestToFailure(t *testing.T) {
	t.Run("failure codes test", func(t *testing.T) {
		assert.Equal(t, types.MustJoin, ToFailure(ErrMustJoin).Code)
		assert.Equal(t, types.WrongSession, ToFailure(fmt.Errorf("a/b: %w", ErrWrongSession)).Code)
		assert.Equal(t, types.InternalFailure, ToFailure(errors.New("disk full")).Code)
		assert.Equal(t, types.InternalFailure, ToFailure(ErrUnknownConnection).Code)
	})
}
