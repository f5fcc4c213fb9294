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
	"fmt"
	"sync"
	gotime "time"

	"golang.org/x/crypto/bcrypt"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/pkg/cmap"
	"github.com/anagni-team/anagni/server/backend/database"
)

// Database is the live state of one database log. Its mutex serializes
// appends, registry edits and the state transitions of its connections.
type Database struct {
	ID types.DatabaseID

	mu       sync.Mutex
	length   int64
	replicas map[types.ReplicaID]*Replica
	conns    map[ConnID]*socketInfo
}

// Length returns the number of statements of the log.
func (d *Database) Length() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

// Replica is a participant of a database as seen by the server.
type Replica struct {
	ID types.ReplicaID

	secretHash    []byte
	receivedCount int64

	// conn is the attached connection, if any.
	conn *socketInfo
}

// ReceivedCount returns the number of statements the replica appended.
func (r *Replica) ReceivedCount() int64 {
	return r.receivedCount
}

// Registry keeps the live databases and persists them through the store.
type Registry struct {
	store    database.Database
	hashCost int
	now      func() gotime.Time

	databases *cmap.Map[types.DatabaseID, *Database]
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store database.Database, hashCost int, now func() gotime.Time) *Registry {
	if now == nil {
		now = gotime.Now
	}

	return &Registry{
		store:     store,
		hashCost:  hashCost,
		now:       now,
		databases: cmap.New[types.DatabaseID, *Database](),
	}
}

// GetOrCreate returns the live database, loading it from the store or
// creating it there on first use.
func (r *Registry) GetOrCreate(ctx context.Context, id types.DatabaseID) (*Database, error) {
	if db, ok := r.databases.Get(id); ok {
		return db, nil
	}

	info, err := r.store.EnsureDatabaseInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	replicaInfos, err := r.store.ListReplicaInfos(ctx, id)
	if err != nil {
		return nil, err
	}

	loaded := &Database{
		ID:       id,
		length:   info.Length,
		replicas: make(map[types.ReplicaID]*Replica, len(replicaInfos)),
		conns:    make(map[ConnID]*socketInfo),
	}
	for _, replicaInfo := range replicaInfos {
		loaded.replicas[replicaInfo.ReplicaID] = &Replica{
			ID:            replicaInfo.ReplicaID,
			secretHash:    replicaInfo.SecretHash,
			receivedCount: replicaInfo.ReceivedCount,
		}
	}

	// The first loaded value wins, so appends never run against two copies.
	db, _ := r.databases.GetOrInsert(id, func() *Database { return loaded })
	return db, nil
}

// LookupReplica returns the replica of the database. The caller holds the
// lock of the database.
func (r *Registry) LookupReplica(db *Database, id types.ReplicaID) (*Replica, error) {
	replica, ok := db.replicas[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", db.ID, id, database.ErrReplicaNotFound)
	}
	return replica, nil
}

// RegisterReplica returns the replica after checking its secret, creating
// it on first use. The caller holds the lock of the database.
func (r *Registry) RegisterReplica(
	ctx context.Context,
	db *Database,
	id types.ReplicaID,
	secret string,
) (*Replica, error) {
	if replica, ok := db.replicas[id]; ok {
		if err := bcrypt.CompareHashAndPassword(replica.secretHash, []byte(secret)); err != nil {
			return nil, fmt.Errorf("%s/%s: %w", db.ID, id, ErrWrongSession)
		}
		return replica, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret of %s/%s: %w", db.ID, id, err)
	}

	info, err := r.store.CreateReplicaInfo(ctx, db.ID, id, hash)
	if err != nil {
		return nil, err
	}

	replica := &Replica{
		ID:            id,
		secretHash:    info.SecretHash,
		receivedCount: info.ReceivedCount,
	}
	db.replicas[id] = replica
	return replica, nil
}

// Append appends the statement of the replica at the end of the log. The
// caller holds the lock of the database.
func (r *Registry) Append(
	ctx context.Context,
	db *Database,
	replica *Replica,
	payload json.RawMessage,
	accessControl types.AccessControl,
) (*types.RawStatement, error) {
	stmt := &types.RawStatement{
		Index:         db.length,
		Replica:       replica.ID,
		Time:          r.now().UnixMilli(),
		AccessControl: accessControl.Normalize(),
		Payload:       payload,
	}

	if err := r.store.AppendStatementInfo(ctx, database.NewStatementInfo(db.ID, stmt)); err != nil {
		return nil, err
	}

	db.length++
	replica.receivedCount++
	return stmt, nil
}

// Statements returns at most limit statements of the log starting at from.
// It does not need the lock of the database.
func (r *Registry) Statements(
	ctx context.Context,
	db *Database,
	from int64,
	limit int,
) ([]*types.RawStatement, error) {
	infos, err := r.store.FindStatementInfos(ctx, db.ID, from, limit)
	if err != nil {
		return nil, err
	}

	stmts := make([]*types.RawStatement, len(infos))
	for i, info := range infos {
		stmts[i] = info.ToStatement()
	}
	return stmts, nil
}
