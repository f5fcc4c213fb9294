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

// Package testcases contains testcases for database. It is used by database
// implementations to test their own implementations with the same testcases.
package testcases

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/server/backend/database"
)

const dummySecretHash = "$2a$10$dummydummydummydummydu"

func newStatement(dbID types.DatabaseID, index int64, replica types.ReplicaID, payload string) *database.StatementInfo {
	return database.NewStatementInfo(dbID, &types.RawStatement{
		Index:         index,
		Replica:       replica,
		Time:          1700000000000 + index,
		AccessControl: types.All(),
		Payload:       json.RawMessage(payload),
	})
}

// RunEnsureDatabaseInfoTest runs the EnsureDatabaseInfo test for the given db.
func RunEnsureDatabaseInfoTest(t *testing.T, db database.Database) {
	t.Run("ensure database test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.FindDatabaseInfo(ctx, dbID)
		assert.ErrorIs(t, err, database.ErrDatabaseNotFound)

		info, err := db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		assert.Equal(t, dbID, info.ID)
		assert.Equal(t, int64(0), info.Length)

		again, err := db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		assert.Equal(t, info.ID, again.ID)
		assert.Equal(t, info.CreatedAt.Unix(), again.CreatedAt.Unix())

		found, err := db.FindDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		assert.Equal(t, dbID, found.ID)
	})
}

// RunReplicaInfoTest runs the replica registration test for the given db.
func RunReplicaInfoTest(t *testing.T, db database.Database) {
	t.Run("create and find replica test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.CreateReplicaInfo(ctx, dbID, "alice", []byte(dummySecretHash))
		assert.ErrorIs(t, err, database.ErrDatabaseNotFound)

		_, err = db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)

		_, err = db.FindReplicaInfo(ctx, dbID, "alice")
		assert.ErrorIs(t, err, database.ErrReplicaNotFound)

		info, err := db.CreateReplicaInfo(ctx, dbID, "alice", []byte(dummySecretHash))
		assert.NoError(t, err)
		assert.Equal(t, types.ReplicaID("alice"), info.ReplicaID)
		assert.Equal(t, int64(0), info.ReceivedCount)

		_, err = db.CreateReplicaInfo(ctx, dbID, "alice", []byte("other"))
		assert.ErrorIs(t, err, database.ErrReplicaAlreadyExists)

		found, err := db.FindReplicaInfo(ctx, dbID, "alice")
		assert.NoError(t, err)
		assert.Equal(t, []byte(dummySecretHash), found.SecretHash)
	})

	t.Run("list replicas test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())
		otherID := types.DatabaseID(t.Name() + "-other")

		for _, id := range []types.DatabaseID{dbID, otherID} {
			_, err := db.EnsureDatabaseInfo(ctx, id)
			assert.NoError(t, err)
		}
		for _, replica := range []types.ReplicaID{"carol", "alice", "bob"} {
			_, err := db.CreateReplicaInfo(ctx, dbID, replica, []byte(dummySecretHash))
			assert.NoError(t, err)
		}
		_, err := db.CreateReplicaInfo(ctx, otherID, "dave", []byte(dummySecretHash))
		assert.NoError(t, err)

		infos, err := db.ListReplicaInfos(ctx, dbID)
		assert.NoError(t, err)
		assert.Len(t, infos, 3)
		assert.Equal(t, types.ReplicaID("alice"), infos[0].ReplicaID)
		assert.Equal(t, types.ReplicaID("bob"), infos[1].ReplicaID)
		assert.Equal(t, types.ReplicaID("carol"), infos[2].ReplicaID)
	})
}

// RunAppendStatementInfoTest runs the AppendStatementInfo test for the given db.
func RunAppendStatementInfoTest(t *testing.T, db database.Database) {
	t.Run("append statements test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		for _, replica := range []types.ReplicaID{"alice", "bob"} {
			_, err = db.CreateReplicaInfo(ctx, dbID, replica, []byte(dummySecretHash))
			assert.NoError(t, err)
		}

		authors := []types.ReplicaID{"alice", "bob", "alice", "alice", "bob"}
		for i, author := range authors {
			payload := fmt.Sprintf(`{"n":%d}`, i)
			assert.NoError(t, db.AppendStatementInfo(ctx, newStatement(dbID, int64(i), author, payload)))
		}

		info, err := db.FindDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		assert.Equal(t, int64(len(authors)), info.Length)

		alice, err := db.FindReplicaInfo(ctx, dbID, "alice")
		assert.NoError(t, err)
		assert.Equal(t, int64(3), alice.ReceivedCount)

		bob, err := db.FindReplicaInfo(ctx, dbID, "bob")
		assert.NoError(t, err)
		assert.Equal(t, int64(2), bob.ReceivedCount)
	})

	t.Run("append conflicting index test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		_, err = db.CreateReplicaInfo(ctx, dbID, "alice", []byte(dummySecretHash))
		assert.NoError(t, err)

		err = db.AppendStatementInfo(ctx, newStatement(dbID, 1, "alice", `1`))
		assert.ErrorIs(t, err, database.ErrIndexConflict)

		assert.NoError(t, db.AppendStatementInfo(ctx, newStatement(dbID, 0, "alice", `1`)))

		err = db.AppendStatementInfo(ctx, newStatement(dbID, 0, "alice", `2`))
		assert.ErrorIs(t, err, database.ErrIndexConflict)

		info, err := db.FindDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), info.Length)
	})

	t.Run("append by unknown replica test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)

		err = db.AppendStatementInfo(ctx, newStatement(dbID, 0, "mallory", `1`))
		assert.ErrorIs(t, err, database.ErrReplicaNotFound)
	})
}

// RunFindStatementInfosTest runs the FindStatementInfos test for the given db.
func RunFindStatementInfosTest(t *testing.T, db database.Database) {
	t.Run("find statements test", func(t *testing.T) {
		ctx := context.Background()
		dbID := types.DatabaseID(t.Name())

		_, err := db.FindStatementInfos(ctx, dbID, 0, 10)
		assert.ErrorIs(t, err, database.ErrDatabaseNotFound)

		_, err = db.EnsureDatabaseInfo(ctx, dbID)
		assert.NoError(t, err)
		_, err = db.CreateReplicaInfo(ctx, dbID, "alice", []byte(dummySecretHash))
		assert.NoError(t, err)

		infos, err := db.FindStatementInfos(ctx, dbID, 0, 10)
		assert.NoError(t, err)
		assert.Len(t, infos, 0)

		// Enough statements to cross varint width boundaries of the index.
		const total = 300
		for i := 0; i < total; i++ {
			info := newStatement(dbID, int64(i), "alice", fmt.Sprintf(`%d`, i))
			info.AccessMode = types.AccessOnly
			info.AccessReplicas = []types.ReplicaID{"bob"}
			assert.NoError(t, db.AppendStatementInfo(ctx, info))
		}

		infos, err = db.FindStatementInfos(ctx, dbID, 60, 100)
		assert.NoError(t, err)
		assert.Len(t, infos, 100)
		for i, info := range infos {
			assert.Equal(t, int64(60+i), info.Index)
			assert.Equal(t, fmt.Sprintf(`%d`, 60+i), string(info.Payload))
		}

		infos, err = db.FindStatementInfos(ctx, dbID, total-5, 100)
		assert.NoError(t, err)
		assert.Len(t, infos, 5)

		infos, err = db.FindStatementInfos(ctx, dbID, total, 100)
		assert.NoError(t, err)
		assert.Len(t, infos, 0)

		infos, err = db.FindStatementInfos(ctx, dbID, 0, 1)
		assert.NoError(t, err)
		assert.Len(t, infos, 1)
		statement := infos[0].ToStatement()
		assert.Equal(t, types.ReplicaID("alice"), statement.Replica)
		assert.Equal(t, types.Only("bob"), statement.AccessControl)
		assert.Equal(t, `0`, string(statement.Payload))
	})
}
