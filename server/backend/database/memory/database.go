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

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"
	"sort"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// EnsureDatabaseInfo returns the database of the given id, creating it when
// it does not exist.
func (d *DB) EnsureDatabaseInfo(_ context.Context, id types.DatabaseID) (*database.DatabaseInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDatabases, "id", string(id))
	if err != nil {
		return nil, fmt.Errorf("find database %s: %w", id, err)
	}
	if raw != nil {
		return raw.(*database.DatabaseInfo).DeepCopy(), nil
	}

	info := &database.DatabaseInfo{
		ID:        id,
		CreatedAt: gotime.Now(),
	}
	if err := txn.Insert(tblDatabases, info); err != nil {
		return nil, fmt.Errorf("create database %s: %w", id, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindDatabaseInfo returns the database of the given id.
func (d *DB) FindDatabaseInfo(_ context.Context, id types.DatabaseID) (*database.DatabaseInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDatabases, "id", string(id))
	if err != nil {
		return nil, fmt.Errorf("find database %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrDatabaseNotFound)
	}

	return raw.(*database.DatabaseInfo).DeepCopy(), nil
}

// CreateReplicaInfo registers a replica with the hash of its secret.
func (d *DB) CreateReplicaInfo(
	_ context.Context,
	dbID types.DatabaseID,
	replicaID types.ReplicaID,
	secretHash []byte,
) (*database.ReplicaInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDatabases, "id", string(dbID))
	if err != nil {
		return nil, fmt.Errorf("find database %s: %w", dbID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", dbID, database.ErrDatabaseNotFound)
	}

	raw, err = txn.First(tblReplicas, "id", string(dbID), string(replicaID))
	if err != nil {
		return nil, fmt.Errorf("find replica %s/%s: %w", dbID, replicaID, err)
	}
	if raw != nil {
		return nil, fmt.Errorf("%s/%s: %w", dbID, replicaID, database.ErrReplicaAlreadyExists)
	}

	info := &database.ReplicaInfo{
		DatabaseID: dbID,
		ReplicaID:  replicaID,
		SecretHash: append([]byte(nil), secretHash...),
		CreatedAt:  gotime.Now(),
	}
	if err := txn.Insert(tblReplicas, info); err != nil {
		return nil, fmt.Errorf("create replica %s/%s: %w", dbID, replicaID, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindReplicaInfo returns the replica registered in the database.
func (d *DB) FindReplicaInfo(
	_ context.Context,
	dbID types.DatabaseID,
	replicaID types.ReplicaID,
) (*database.ReplicaInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblReplicas, "id", string(dbID), string(replicaID))
	if err != nil {
		return nil, fmt.Errorf("find replica %s/%s: %w", dbID, replicaID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s/%s: %w", dbID, replicaID, database.ErrReplicaNotFound)
	}

	return raw.(*database.ReplicaInfo).DeepCopy(), nil
}

// ListReplicaInfos returns the replicas registered in the database ordered
// by replica id.
func (d *DB) ListReplicaInfos(_ context.Context, dbID types.DatabaseID) ([]*database.ReplicaInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.Get(tblReplicas, "db_id", string(dbID))
	if err != nil {
		return nil, fmt.Errorf("list replicas of %s: %w", dbID, err)
	}

	var infos []*database.ReplicaInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		infos = append(infos, raw.(*database.ReplicaInfo).DeepCopy())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ReplicaID < infos[j].ReplicaID
	})

	return infos, nil
}

// AppendStatementInfo appends the statement to the log of its database.
func (d *DB) AppendStatementInfo(_ context.Context, info *database.StatementInfo) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDatabases, "id", string(info.DatabaseID))
	if err != nil {
		return fmt.Errorf("find database %s: %w", info.DatabaseID, err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", info.DatabaseID, database.ErrDatabaseNotFound)
	}
	dbInfo := raw.(*database.DatabaseInfo).DeepCopy()
	if info.Index != dbInfo.Length {
		return fmt.Errorf(
			"append %d to %s of length %d: %w",
			info.Index, info.DatabaseID, dbInfo.Length, database.ErrIndexConflict,
		)
	}

	raw, err = txn.First(tblReplicas, "id", string(info.DatabaseID), string(info.Replica))
	if err != nil {
		return fmt.Errorf("find replica %s/%s: %w", info.DatabaseID, info.Replica, err)
	}
	if raw == nil {
		return fmt.Errorf("%s/%s: %w", info.DatabaseID, info.Replica, database.ErrReplicaNotFound)
	}
	replicaInfo := raw.(*database.ReplicaInfo).DeepCopy()

	if err := txn.Insert(tblStatements, info.DeepCopy()); err != nil {
		return fmt.Errorf("append statement to %s: %w", info.DatabaseID, err)
	}

	dbInfo.Length++
	if err := txn.Insert(tblDatabases, dbInfo); err != nil {
		return fmt.Errorf("update database %s: %w", info.DatabaseID, err)
	}

	replicaInfo.ReceivedCount++
	if err := txn.Insert(tblReplicas, replicaInfo); err != nil {
		return fmt.Errorf("update replica %s/%s: %w", info.DatabaseID, info.Replica, err)
	}

	txn.Commit()
	return nil
}

// FindStatementInfos returns at most limit statements starting at from.
func (d *DB) FindStatementInfos(
	_ context.Context,
	dbID types.DatabaseID,
	from int64,
	limit int,
) ([]*database.StatementInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDatabases, "id", string(dbID))
	if err != nil {
		return nil, fmt.Errorf("find database %s: %w", dbID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", dbID, database.ErrDatabaseNotFound)
	}
	length := raw.(*database.DatabaseInfo).Length

	var infos []*database.StatementInfo
	for index := max(from, 0); index < length && len(infos) < limit; index++ {
		raw, err := txn.First(tblStatements, "id", string(dbID), index)
		if err != nil {
			return nil, fmt.Errorf("find statement %d of %s: %w", index, dbID, err)
		}
		if raw == nil {
			return nil, fmt.Errorf("statement %d of %s is missing", index, dbID)
		}
		infos = append(infos, raw.(*database.StatementInfo).DeepCopy())
	}

	return infos, nil
}
