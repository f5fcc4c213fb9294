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

// Package helper provides helper functions for testing.
package helper

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/crypto/bcrypt"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/client"
	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/pkg/machine"
	"github.com/anagni-team/anagni/server"
	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/backend/database/mongo"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/server/profiling"
	"github.com/anagni-team/anagni/server/rpc"
)

var testStartedAt int64

// Below are the values of the Anagni config used in the test.
var (
	RPCPort = 21101

	ProfilingPort = 21102

	DrainBatchSize      = 4
	MaxConcurrentDrains = int64(8)

	SealSecret = "anagni-test-seal-secret"

	MongoConnectionURI     = "mongodb://localhost:27017"
	MongoConnectionTimeout = "5s"
	MongoPingTimeout       = "5s"

	WaitTimeout = 5 * gotime.Second
)

var (
	portOffset = 0
	portMu     sync.Mutex
)

func init() {
	testStartedAt = gotime.Now().Unix()
}

// TestDBName returns the name of test database with timestamp.
// timestamp is set only once on first call.
func TestDBName() string {
	return fmt.Sprintf("test-%s-%d", server.DefaultMongoAnagniDatabase, testStartedAt)
}

// TestConfig returns a config of a server on fresh ports backed by the
// memory store.
func TestConfig() *server.Config {
	portMu.Lock()
	portOffset += 100
	offset := portOffset
	portMu.Unlock()

	return &server.Config{
		RPC: &rpc.Config{
			Port:                  RPCPort + offset,
			MaxRequestBytes:       server.DefaultRPCMaxRequestBytes,
			MaxConnectionAge:      server.DefaultRPCMaxConnectionAge.String(),
			MaxConnectionAgeGrace: server.DefaultRPCMaxConnectionAgeGrace.String(),
			SealCipher:            codec.ChaCha20Poly1305,
		},
		Profiling: &profiling.Config{
			Port: ProfilingPort + offset,
		},
		Backend: &backend.Config{
			DrainBatchSize:      DrainBatchSize,
			MaxConcurrentDrains: MaxConcurrentDrains,
			SecretHashCost:      bcrypt.MinCost,
		},
	}
}

// TestMongoConfig returns the config of the MongoDB test database.
func TestMongoConfig() *mongo.Config {
	return &mongo.Config{
		ConnectionURI:     MongoConnectionURI,
		ConnectionTimeout: MongoConnectionTimeout,
		PingTimeout:       MongoPingTimeout,
		AnagniDatabase:    TestDBName(),
	}
}

// TestServer starts a server with the given config and stops it when the
// test ends.
func TestServer(t testing.TB, conf *server.Config) *server.Anagni {
	a, err := server.New(conf)
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, WaitForServerToStart(a.RPCAddr()))

	t.Cleanup(func() {
		if err := a.Shutdown(true); err != nil {
			log.Println(err)
		}
	})
	return a
}

// NewClient creates a client joining the database as a new replica of the
// server at the address, driven by the recorder.
func NewClient(
	addr string,
	database types.DatabaseID,
	rec *Recorder,
	opts ...client.Option,
) *client.Client[string, struct{}] {
	return client.New[string, struct{}](client.NewAuth(database, addr), rec, nil, opts...)
}

// WaitForServerToStart waits for the server to start.
func WaitForServerToStart(addr string) error {
	maxRetries := 10
	initialDelay := 100 * gotime.Millisecond
	maxDelay := 5 * gotime.Second

	for attempt := range maxRetries {
		delay := initialDelay * gotime.Duration(1<<uint(attempt))
		delay = min(delay, maxDelay)

		conn, err := net.DialTimeout("tcp", addr, 1*gotime.Second)
		if err != nil {
			gotime.Sleep(delay)
			continue
		}

		if err := conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}

		return nil
	}

	return fmt.Errorf("timeout for server to start: %s", addr)
}

// setupRawMongoClient returns the raw mongo client.
func setupRawMongoClient(conf *mongo.Config) (*gomongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	cli, err := gomongo.Connect(ctx, options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := cli.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.AnagniDatabase)
	return cli, nil
}

// CleanUpAllCollections removes all data in every collection.
func CleanUpAllCollections(conf *mongo.Config) error {
	cli, err := setupRawMongoClient(conf)
	if err != nil {
		return err
	}
	defer func() {
		_ = cli.Disconnect(context.Background())
	}()

	for _, col := range mongo.Collections {
		_, err := cli.Database(conf.AnagniDatabase).Collection(col).DeleteMany(context.Background(), bson.D{})
		if err != nil {
			return err
		}
	}
	return nil
}

// Recorder is a replica appending fixed payloads on init and recording every
// statement of the log.
type Recorder struct {
	mu      sync.Mutex
	initial []string
	ac      types.AccessControl
	seen    []*types.Statement[string]
}

// NewRecorder creates a Recorder appending the payloads visible to all.
func NewRecorder(payloads ...string) *Recorder {
	return NewRecorderWithAccess(types.All(), payloads...)
}

// NewRecorderWithAccess creates a Recorder appending the payloads with the
// given access control.
func NewRecorderWithAccess(ac types.AccessControl, payloads ...string) *Recorder {
	return &Recorder{initial: payloads, ac: ac}
}

// Init emits the initial payloads.
func (r *Recorder) Init(context.Context, types.ReplicaID) machine.Stream[client.Output[string, struct{}]] {
	outs := make([]client.Output[string, struct{}], 0, len(r.initial))
	for _, p := range r.initial {
		outs = append(outs, client.Emit[string, struct{}](p, r.ac))
	}
	return machine.Of(outs...)
}

// Dispatch records the statement.
func (r *Recorder) Dispatch(
	_ context.Context,
	stmt *types.Statement[string],
) machine.Stream[client.Output[string, struct{}]] {
	r.mu.Lock()
	r.seen = append(r.seen, stmt)
	r.mu.Unlock()
	return machine.Of[client.Output[string, struct{}]]()
}

// Observed returns the statements recorded so far.
func (r *Recorder) Observed() []*types.Statement[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Statement[string](nil), r.seen...)
}

// WaitFor waits until n statements were recorded.
func (r *Recorder) WaitFor(t testing.TB, n int) []*types.Statement[string] {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.Observed()) >= n
	}, WaitTimeout, 10*gotime.Millisecond)
	return r.Observed()
}

// PingPong returns a replica answering every number appended by another
// replica with the next number, up to last. The replica named first opens
// with 0.
func PingPong(first types.ReplicaID, last int, seen chan<- int) client.Replica[int, struct{}] {
	var self types.ReplicaID
	return client.FromMachines[int, struct{}](
		func(_ context.Context, id types.ReplicaID) machine.Stream[client.Output[int, struct{}]] {
			self = id
			if id != first {
				return machine.Of[client.Output[int, struct{}]]()
			}
			return machine.Of(client.Emit[int, struct{}](0, types.All()))
		},
		func(_ context.Context, stmt *types.Statement[int]) machine.Stream[client.Output[int, struct{}]] {
			seen <- stmt.Payload
			if stmt.Replica == self || stmt.Payload >= last {
				return machine.Of[client.Output[int, struct{}]]()
			}
			return machine.Of(client.Emit[int, struct{}](stmt.Payload+1, types.All()))
		},
	)
}
