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

// Package database provides the store interface of the replication
// backend: databases, their replicas and their statement logs.
package database

import (
	"context"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/pkg/errors"
)

var (
	// ErrDatabaseNotFound is returned when the database does not exist.
	ErrDatabaseNotFound = errors.NotFound("database not found").WithCode("ErrDatabaseNotFound")

	// ErrReplicaNotFound is returned when the replica is not registered.
	ErrReplicaNotFound = errors.NotFound("replica not found").WithCode("ErrReplicaNotFound")

	// ErrReplicaAlreadyExists is returned when the replica is registered
	// already.
	ErrReplicaAlreadyExists = errors.AlreadyExists("replica already exists").WithCode("ErrReplicaAlreadyExists")

	// ErrIndexConflict is returned when a statement does not extend the log
	// by exactly one entry.
	ErrIndexConflict = errors.FailedPrecond("statement index conflict").WithCode("ErrIndexConflict")
)

// Database stores the logs. Appends to one database are serialized by the
// caller.
type Database interface {
	// Close all resources of this database.
	Close() error

	// EnsureDatabaseInfo returns the database of the given id, creating it
	// when it does not exist.
	EnsureDatabaseInfo(ctx context.Context, id types.DatabaseID) (*DatabaseInfo, error)

	// FindDatabaseInfo returns the database of the given id.
	FindDatabaseInfo(ctx context.Context, id types.DatabaseID) (*DatabaseInfo, error)

	// CreateReplicaInfo registers a replica with the hash of its secret.
	CreateReplicaInfo(
		ctx context.Context,
		dbID types.DatabaseID,
		replicaID types.ReplicaID,
		secretHash []byte,
	) (*ReplicaInfo, error)

	// FindReplicaInfo returns the replica registered in the database.
	FindReplicaInfo(ctx context.Context, dbID types.DatabaseID, replicaID types.ReplicaID) (*ReplicaInfo, error)

	// ListReplicaInfos returns the replicas registered in the database.
	ListReplicaInfos(ctx context.Context, dbID types.DatabaseID) ([]*ReplicaInfo, error)

	// AppendStatementInfo appends the statement to the log of its database.
	// Its index must equal the length of the log. The database length and
	// the received count of the author grow by one.
	AppendStatementInfo(ctx context.Context, info *StatementInfo) error

	// FindStatementInfos returns at most limit statements of the database
	// starting at the given index, in index order.
	FindStatementInfos(ctx context.Context, dbID types.DatabaseID, from int64, limit int) ([]*StatementInfo, error)
}
