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

package types

import (
	"errors"
	"fmt"

	"github.com/anagni-team/anagni/internal/validation"
)

// ErrUnknownMessage is returned for an envelope whose type and body do not
// match.
var ErrUnknownMessage = errors.New("unknown message")

// MessageType is the kind of an envelope.
type MessageType string

const (
	// JoinMessage attaches a connection to a replica of a database.
	JoinMessage MessageType = "join"

	// OkayMessage answers a successful join.
	OkayMessage MessageType = "okay"

	// ErrMessage reports a failed request.
	ErrMessage MessageType = "err"

	// PushMessage carries a statement, unindexed from client to server and
	// indexed from server to client.
	PushMessage MessageType = "push"
)

// JoinRequest asks the server to attach the connection to a replica.
// ReceivedCount is the number of statements the replica already consumed;
// the server streams from that index on.
type JoinRequest struct {
	ReplicaID     ReplicaID  `json:"replicaID" validate:"required,identifier,max=128"`
	Database      DatabaseID `json:"database" validate:"required,identifier,max=128"`
	Secret        string     `json:"secret" validate:"required,max=72"`
	ReceivedCount int64      `json:"receivedCount" validate:"min=0"`
}

// Validate validates the fields of the request.
func (r *JoinRequest) Validate() error {
	return validation.ValidateStruct(r)
}

// OkayResponse answers a join. TotalCount is the length of the log and
// YourCount the number of statements the replica appended so far.
type OkayResponse struct {
	TotalCount int64 `json:"totalCount"`
	YourCount  int64 `json:"yourCount"`
}

// Envelope is one message of a connection. Exactly one body matching Type
// is set.
type Envelope struct {
	Type MessageType   `json:"type"`
	Join *JoinRequest  `json:"join,omitempty"`
	Okay *OkayResponse `json:"okay,omitempty"`
	Err  *Failure      `json:"err,omitempty"`
	Push *RawStatement `json:"push,omitempty"`
}

// NewJoin wraps a join request.
func NewJoin(req *JoinRequest) *Envelope {
	return &Envelope{Type: JoinMessage, Join: req}
}

// NewOkay wraps an okay response.
func NewOkay(totalCount, yourCount int64) *Envelope {
	return &Envelope{Type: OkayMessage, Okay: &OkayResponse{TotalCount: totalCount, YourCount: yourCount}}
}

// NewErr wraps a failure.
func NewErr(f *Failure) *Envelope {
	return &Envelope{Type: ErrMessage, Err: f}
}

// NewPush wraps a statement.
func NewPush(s *RawStatement) *Envelope {
	return &Envelope{Type: PushMessage, Push: s}
}

// Validate checks that the body matching the type is present.
func (e *Envelope) Validate() error {
	var ok bool
	switch e.Type {
	case JoinMessage:
		ok = e.Join != nil
	case OkayMessage:
		ok = e.Okay != nil
	case ErrMessage:
		ok = e.Err != nil
	case PushMessage:
		ok = e.Push != nil
	}

	if !ok {
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownMessage)
	}
	return nil
}
