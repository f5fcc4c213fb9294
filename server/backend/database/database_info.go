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

package database

import (
	"time"

	"github.com/anagni-team/anagni/api/types"
)

// DatabaseInfo is the stored form of a database.
type DatabaseInfo struct {
	// ID is the id of the database.
	ID types.DatabaseID `bson:"_id"`

	// Length is the number of statements of the log.
	Length int64 `bson:"-"`

	// CreatedAt is the time when the database was created.
	CreatedAt time.Time `bson:"created_at"`
}

// DeepCopy returns a copy of this info.
func (i *DatabaseInfo) DeepCopy() *DatabaseInfo {
	if i == nil {
		return nil
	}

	clone := *i
	return &clone
}
