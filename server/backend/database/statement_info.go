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
	"encoding/json"

	"github.com/anagni-team/anagni/api/types"
)

// StatementInfo is the stored form of a statement.
type StatementInfo struct {
	DatabaseID     types.DatabaseID  `bson:"db_id"`
	Index          int64             `bson:"index"`
	Replica        types.ReplicaID   `bson:"replica"`
	Time           int64             `bson:"time"`
	AccessMode     types.AccessMode  `bson:"access_mode"`
	AccessReplicas []types.ReplicaID `bson:"access_replicas,omitempty"`
	Payload        []byte            `bson:"payload"`
}

// NewStatementInfo returns the stored form of the statement.
func NewStatementInfo(dbID types.DatabaseID, s *types.RawStatement) *StatementInfo {
	ac := s.AccessControl.Normalize()
	return &StatementInfo{
		DatabaseID:     dbID,
		Index:          s.Index,
		Replica:        s.Replica,
		Time:           s.Time,
		AccessMode:     ac.Mode,
		AccessReplicas: ac.Replicas,
		Payload:        append([]byte(nil), s.Payload...),
	}
}

// ToStatement returns the statement stored in this info.
func (i *StatementInfo) ToStatement() *types.RawStatement {
	return &types.RawStatement{
		Index:   i.Index,
		Replica: i.Replica,
		Time:    i.Time,
		AccessControl: types.AccessControl{
			Mode:     i.AccessMode,
			Replicas: i.AccessReplicas,
		},
		Payload: json.RawMessage(i.Payload),
	}
}

// DeepCopy returns a copy of this info.
func (i *StatementInfo) DeepCopy() *StatementInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.AccessReplicas = append([]types.ReplicaID(nil), i.AccessReplicas...)
	clone.Payload = append([]byte(nil), i.Payload...)
	return &clone
}
