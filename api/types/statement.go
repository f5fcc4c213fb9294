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

// Package types provides the types shared by the server and the client:
// statements, access control and the messages exchanged on a connection.
package types

import (
	"encoding/json"
	"time"
)

// ReplicaID identifies a participant of a database.
type ReplicaID string

// DatabaseID identifies a database, one ordered log.
type DatabaseID string

// Statement is one entry of a database log. Index, Replica and Time are
// assigned by the server when the statement is appended.
type Statement[T any] struct {
	Index         int64         `json:"index"`
	Replica       ReplicaID     `json:"replica,omitempty"`
	Time          int64         `json:"time,omitempty"`
	AccessControl AccessControl `json:"accessControl"`
	Obscured      bool          `json:"obscured,omitempty"`
	Payload       T             `json:"payload"`
}

// RawStatement is a statement whose payload is kept as JSON. The server
// never looks into payloads.
type RawStatement = Statement[json.RawMessage]

// CreatedAt returns the time the statement was appended.
func (s *Statement[T]) CreatedAt() time.Time {
	return time.UnixMilli(s.Time)
}

// Obscure returns a copy of the statement without its payload.
func Obscure(s *RawStatement) *RawStatement {
	return &RawStatement{
		Index:         s.Index,
		Replica:       s.Replica,
		Time:          s.Time,
		AccessControl: s.AccessControl,
		Obscured:      true,
		Payload:       json.RawMessage("null"),
	}
}
