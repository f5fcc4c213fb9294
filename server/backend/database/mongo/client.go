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

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"fmt"
	gotime "time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/server/backend/database"
	"github.com/anagni-team/anagni/server/logging"
)

// Client is a client that connects to Mongo DB and reads or saves the
// statement logs.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(
		ctx,
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancel()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.AnagniDatabase)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.AnagniDatabase)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// EnsureDatabaseInfo returns the database of the given id, creating it when
// it does not exist.
func (c *Client) EnsureDatabaseInfo(ctx context.Context, id types.DatabaseID) (*database.DatabaseInfo, error) {
	_, err := c.collection(ColDatabases).UpdateOne(ctx, bson.M{
		"_id": id,
	}, bson.M{
		"$setOnInsert": bson.M{
			"created_at": gotime.Now(),
		},
	}, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("upsert database %s: %w", id, err)
	}

	return c.FindDatabaseInfo(ctx, id)
}

// FindDatabaseInfo returns the database of the given id.
func (c *Client) FindDatabaseInfo(ctx context.Context, id types.DatabaseID) (*database.DatabaseInfo, error) {
	result := c.collection(ColDatabases).FindOne(ctx, bson.M{"_id": id})

	info := &database.DatabaseInfo{}
	if err := result.Decode(info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", id, database.ErrDatabaseNotFound)
		}
		return nil, fmt.Errorf("find database %s: %w", id, err)
	}

	length, err := c.collection(ColStatements).CountDocuments(ctx, bson.M{"db_id": id})
	if err != nil {
		return nil, fmt.Errorf("count statements of %s: %w", id, err)
	}
	info.Length = length

	return info, nil
}

// CreateReplicaInfo registers a replica with the hash of its secret.
func (c *Client) CreateReplicaInfo(
	ctx context.Context,
	dbID types.DatabaseID,
	replicaID types.ReplicaID,
	secretHash []byte,
) (*database.ReplicaInfo, error) {
	if _, err := c.FindDatabaseInfo(ctx, dbID); err != nil {
		return nil, err
	}

	info := &database.ReplicaInfo{
		DatabaseID: dbID,
		ReplicaID:  replicaID,
		SecretHash: secretHash,
		CreatedAt:  gotime.Now(),
	}
	if _, err := c.collection(ColReplicas).InsertOne(ctx, info); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s/%s: %w", dbID, replicaID, database.ErrReplicaAlreadyExists)
		}
		return nil, fmt.Errorf("create replica %s/%s: %w", dbID, replicaID, err)
	}

	return info, nil
}

// FindReplicaInfo returns the replica registered in the database.
func (c *Client) FindReplicaInfo(
	ctx context.Context,
	dbID types.DatabaseID,
	replicaID types.ReplicaID,
) (*database.ReplicaInfo, error) {
	result := c.collection(ColReplicas).FindOne(ctx, bson.M{
		"db_id":      dbID,
		"replica_id": replicaID,
	})

	info := &database.ReplicaInfo{}
	if err := result.Decode(info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s/%s: %w", dbID, replicaID, database.ErrReplicaNotFound)
		}
		return nil, fmt.Errorf("find replica %s/%s: %w", dbID, replicaID, err)
	}

	if err := c.countReceived(ctx, info); err != nil {
		return nil, err
	}

	return info, nil
}

// ListReplicaInfos returns the replicas registered in the database ordered
// by replica id.
func (c *Client) ListReplicaInfos(ctx context.Context, dbID types.DatabaseID) ([]*database.ReplicaInfo, error) {
	cursor, err := c.collection(ColReplicas).Find(
		ctx,
		bson.M{"db_id": dbID},
		options.Find().SetSort(bson.M{"replica_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list replicas of %s: %w", dbID, err)
	}

	var infos []*database.ReplicaInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch replicas of %s: %w", dbID, err)
	}

	for _, info := range infos {
		if err := c.countReceived(ctx, info); err != nil {
			return nil, err
		}
	}

	return infos, nil
}

// AppendStatementInfo appends the statement to the log of its database. The
// unique index on the position rejects a racing writer.
func (c *Client) AppendStatementInfo(ctx context.Context, info *database.StatementInfo) error {
	dbInfo, err := c.FindDatabaseInfo(ctx, info.DatabaseID)
	if err != nil {
		return err
	}
	if info.Index != dbInfo.Length {
		return fmt.Errorf(
			"append %d to %s of length %d: %w",
			info.Index, info.DatabaseID, dbInfo.Length, database.ErrIndexConflict,
		)
	}

	if _, err := c.FindReplicaInfo(ctx, info.DatabaseID, info.Replica); err != nil {
		return err
	}

	if _, err := c.collection(ColStatements).InsertOne(ctx, info); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("append %d to %s: %w", info.Index, info.DatabaseID, database.ErrIndexConflict)
		}
		return fmt.Errorf("append statement to %s: %w", info.DatabaseID, err)
	}

	return nil
}

// FindStatementInfos returns at most limit statements starting at from.
func (c *Client) FindStatementInfos(
	ctx context.Context,
	dbID types.DatabaseID,
	from int64,
	limit int,
) ([]*database.StatementInfo, error) {
	if _, err := c.FindDatabaseInfo(ctx, dbID); err != nil {
		return nil, err
	}

	cursor, err := c.collection(ColStatements).Find(ctx, bson.M{
		"db_id": dbID,
		"index": bson.M{"$gte": from},
	}, options.Find().SetSort(bson.M{"index": 1}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("find statements of %s from %d: %w", dbID, from, err)
	}

	var infos []*database.StatementInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch statements of %s from %d: %w", dbID, from, err)
	}

	return infos, nil
}

func (c *Client) countReceived(ctx context.Context, info *database.ReplicaInfo) error {
	count, err := c.collection(ColStatements).CountDocuments(ctx, bson.M{
		"db_id":   info.DatabaseID,
		"replica": info.ReplicaID,
	})
	if err != nil {
		return fmt.Errorf("count statements of %s/%s: %w", info.DatabaseID, info.ReplicaID, err)
	}

	info.ReceivedCount = count
	return nil
}

func (c *Client) collection(
	name string,
	opts ...*options.CollectionOptions,
) *mongo.Collection {
	return c.client.
		Database(c.config.AnagniDatabase).
		Collection(name, opts...)
}
