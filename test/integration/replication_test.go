//go:build integration

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

package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/client"
	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/test/helper"
)

func dbName(t *testing.T) types.DatabaseID {
	name := strings.ReplaceAll(t.Name(), " ", "-")
	return types.DatabaseID(fmt.Sprintf("%s-%d", name, time.Now().UnixNano()))
}

func newClient(auth client.Auth, rec *helper.Recorder, opts ...client.Option) *client.Client[string, struct{}] {
	return client.New[string, struct{}](auth, rec, nil, opts...)
}

func TestReplication(t *testing.T) {
	ctx := context.Background()
	addr := defaultServer.RPCAddr()

	t.Run("late joiner receives the whole log test", func(t *testing.T) {
		db := dbName(t)
		payloads := make([]string, 10)
		for i := range payloads {
			payloads[i] = fmt.Sprintf("statement-%d", i)
		}

		writer := helper.NewRecorder(payloads...)
		a := helper.NewClient(addr, db, writer)
		require.NoError(t, a.Connect(ctx))
		defer a.Disconnect()
		writer.WaitFor(t, len(payloads))

		reader := helper.NewRecorder()
		b := helper.NewClient(addr, db, reader)
		require.NoError(t, b.Connect(ctx))
		defer b.Disconnect()
		assert.Equal(t, int64(10), b.Stats().TotalCount)

		seen := reader.WaitFor(t, len(payloads))
		for i, stmt := range seen {
			assert.Equal(t, int64(i), stmt.Index)
			assert.Equal(t, payloads[i], stmt.Payload)
			assert.Equal(t, a.Auth().ReplicaID, stmt.Replica)
		}
		assert.Equal(t, int64(10), a.Stats().SentPointer)
	})

	t.Run("access control test", func(t *testing.T) {
		db := dbName(t)
		carolAuth := client.NewAuth(db, addr)

		writer := helper.NewRecorderWithAccess(types.Only(carolAuth.ReplicaID), "for carol")
		a := helper.NewClient(addr, db, writer)
		require.NoError(t, a.Connect(ctx))
		defer a.Disconnect()
		writer.WaitFor(t, 1)

		carolRec := helper.NewRecorder()
		carol := newClient(carolAuth, carolRec)
		require.NoError(t, carol.Connect(ctx))
		defer carol.Disconnect()

		bobRec := helper.NewRecorder()
		bob := helper.NewClient(addr, db, bobRec)
		require.NoError(t, bob.Connect(ctx))
		defer bob.Disconnect()

		assert.Equal(t, "for carol", carolRec.WaitFor(t, 1)[0].Payload)

		obscured := bobRec.WaitFor(t, 1)[0]
		assert.True(t, obscured.Obscured)
		assert.Equal(t, "", obscured.Payload)
		assert.Equal(t, int64(0), obscured.Index)
		assert.Equal(t, a.Auth().ReplicaID, obscured.Replica)
		assert.True(t, types.Only(carolAuth.ReplicaID).Equal(obscured.AccessControl))
	})

	t.Run("ping pong converges test", func(t *testing.T) {
		db := dbName(t)
		pingAuth, pongAuth := client.NewAuth(db, addr), client.NewAuth(db, addr)
		pingSeen, pongSeen := make(chan int, 32), make(chan int, 32)

		pong := client.New(pongAuth, helper.PingPong(pingAuth.ReplicaID, 9, pongSeen), nil)
		require.NoError(t, pong.Connect(ctx))
		defer pong.Disconnect()

		ping := client.New(pingAuth, helper.PingPong(pingAuth.ReplicaID, 9, pingSeen), nil)
		require.NoError(t, ping.Connect(ctx))
		defer ping.Disconnect()

		for i := 0; i <= 9; i++ {
			assert.Equal(t, i, <-pingSeen)
			assert.Equal(t, i, <-pongSeen)
		}
	})

	t.Run("other connection test", func(t *testing.T) {
		db := dbName(t)
		auth := client.NewAuth(db, addr)

		first := newClient(auth, helper.NewRecorder())
		require.NoError(t, first.Connect(ctx))

		second := newClient(auth, helper.NewRecorder())
		require.NoError(t, second.Connect(ctx))
		defer second.Disconnect()

		waitCtx, cancel := context.WithTimeout(ctx, helper.WaitTimeout)
		defer cancel()
		assert.ErrorIs(t, first.Wait(waitCtx), &types.Failure{Code: types.OtherConnection})
	})

	t.Run("wrong session test", func(t *testing.T) {
		db := dbName(t)
		auth := client.NewAuth(db, addr)

		owner := newClient(auth, helper.NewRecorder())
		require.NoError(t, owner.Connect(ctx))
		owner.Disconnect()

		impostor := auth
		impostor.Secret = "not-the-secret"
		assert.ErrorIs(t, newClient(impostor, helper.NewRecorder()).Connect(ctx), &types.Failure{Code: types.WrongSession})
	})

	t.Run("resume after reconnect test", func(t *testing.T) {
		db := dbName(t)
		rec := helper.NewRecorder("one", "two")
		c := helper.NewClient(addr, db, rec)
		require.NoError(t, c.Connect(ctx))
		rec.WaitFor(t, 2)
		c.Disconnect()

		require.NoError(t, c.Connect(ctx))
		defer c.Disconnect()
		stats := c.Stats()
		assert.Equal(t, int64(2), stats.ServerCount)
		assert.Equal(t, int64(2), stats.ReceivedPointer)
		assert.Len(t, rec.Observed(), 2)
	})
}

func TestSealedReplication(t *testing.T) {
	ctx := context.Background()
	conf := helper.TestConfig()
	conf.RPC.SealSecret = helper.SealSecret
	conf.Profiling = nil
	s := helper.TestServer(t, conf)

	db := dbName(t)
	seal := client.WithSeal(helper.SealSecret, codec.ChaCha20Poly1305)

	writer := helper.NewRecorder("sealed")
	a := helper.NewClient(s.RPCAddr(), db, writer, seal)
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect()

	reader := helper.NewRecorder()
	b := helper.NewClient(s.RPCAddr(), db, reader, seal)
	require.NoError(t, b.Connect(ctx))
	defer b.Disconnect()

	assert.Equal(t, "sealed", reader.WaitFor(t, 1)[0].Payload)
}
