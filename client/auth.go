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

package client

import (
	"strings"

	"github.com/google/uuid"

	"github.com/anagni-team/anagni/api/types"
)

// Auth is the session material of a replica. It is generated once and kept
// by the application so the replica can resume after a restart.
type Auth struct {
	ReplicaID  types.ReplicaID  `json:"replicaID"`
	Database   types.DatabaseID `json:"database"`
	Secret     string           `json:"secret"`
	ServerAddr string           `json:"serverAddr"`
}

// NewAuth creates session material with a random replica id and secret.
func NewAuth(database types.DatabaseID, serverAddr string) Auth {
	return Auth{
		ReplicaID:  types.ReplicaID(uuid.NewString()),
		Database:   database,
		Secret:     strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		ServerAddr: serverAddr,
	}
}

func (a Auth) joinRequest(receivedCount int64) *types.JoinRequest {
	return &types.JoinRequest{
		ReplicaID:     a.ReplicaID,
		Database:      a.Database,
		Secret:        a.Secret,
		ReceivedCount: receivedCount,
	}
}
