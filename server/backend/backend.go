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

// Package backend provides the backend implementation of Anagni. This package
// is responsible for managing the store and other resources required to run
// the replication engine.
package backend

import (
	"errors"
	"fmt"

	"github.com/anagni-team/anagni/server/backend/background"
	"github.com/anagni-team/anagni/server/backend/database"
	memdb "github.com/anagni-team/anagni/server/backend/database/memory"
	"github.com/anagni-team/anagni/server/backend/database/mongo"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/server/profiling/prometheus"
)

// Backend manages Anagni's backend such as the store and the background
// routines.
type Backend struct {
	Config *Config

	// Background is used to manage background tasks such as drain loops.
	Background *background.Background

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Create the database instance. If the MongoDB configuration is given,
	// create a MongoDB instance. Otherwise, create a memory database instance.
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	// 02. Create the background task manager.
	bg := background.New(metrics)

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config:     conf,
		Background: bg,
		Metrics:    metrics,
		DB:         db,
	}, nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
