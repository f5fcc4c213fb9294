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

package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// ColDatabases represents the databases collection in the database.
	ColDatabases = "databases"
	// ColReplicas represents the replicas collection in the database.
	ColReplicas = "replicas"
	// ColStatements represents the statements collection in the database.
	ColStatements = "statements"
)

// Collections represents the list of all collections in the database.
var Collections = []string{
	ColDatabases,
	ColReplicas,
	ColStatements,
}

type collectionInfo struct {
	name    string
	indexes []mongo.IndexModel
}

var collectionInfos = []collectionInfo{
	{
		name: ColReplicas,
		indexes: []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "db_id", Value: int32(1)},
				{Key: "replica_id", Value: int32(1)},
			},
			Options: options.Index().SetUnique(true),
		}},
	},
	{
		name: ColStatements,
		indexes: []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "db_id", Value: int32(1)},
				{Key: "index", Value: int32(1)},
			},
			Options: options.Index().SetUnique(true),
		}, {
			Keys: bson.D{
				{Key: "db_id", Value: int32(1)},
				{Key: "replica", Value: int32(1)},
			},
		}},
	},
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, info := range collectionInfos {
		_, err := db.Collection(info.name).Indexes().CreateMany(ctx, info.indexes)
		if err != nil {
			return fmt.Errorf("create indexes of %s: %w", info.name, err)
		}
	}
	return nil
}
