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

// ReplicaInfo is the stored form of a replica registration.
type ReplicaInfo struct {
	// DatabaseID is the database the replica belongs to.
	DatabaseID types.DatabaseID `bson:"db_id"`

	// ReplicaID is the id of the replica within the database.
	ReplicaID types.ReplicaID `bson:"replica_id"`

	// SecretHash is the bcrypt hash of the replica secret.
	SecretHash []byte `bson:"secret_hash"`

	// ReceivedCount is the number of statements the replica appended.
	ReceivedCount int64 `bson:"-"`

	// CreatedAt is the time when the replica was registered.
	CreatedAt time.Time `bson:"created_at"`
}

// DeepCopy returns a copy of this info.
func (i *ReplicaInfo) DeepCopy() *ReplicaInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.SecretHash = append([]byte(nil), i.SecretHash...)
	return &clone
}
