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

package replication

import (
	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/server/logging"
)

// ConnID identifies a connection in the engine.
type ConnID string

// Socket is the transport of one connection. Send must be safe for
// concurrent use; Close ends the transport and makes later sends fail.
type Socket interface {
	Send(env *types.Envelope) error
	Close()
}

// socketState is the state of a connection.
type socketState int

const (
	// stateNone is a connection that did not join yet.
	stateNone socketState = iota

	// stateIdle is a joined connection that received the whole log.
	stateIdle

	// stateStreaming is a joined connection whose drain loop is running.
	stateStreaming

	// stateDelete is a connection to free. Terminal.
	stateDelete
)

// String returns the name of the state.
func (s socketState) String() string {
	switch s {
	case stateNone:
		return "none"
	case stateIdle:
		return "idle"
	case stateStreaming:
		return "streaming"
	case stateDelete:
		return "delete"
	}
	return "unknown"
}

// socketInfo is the record of a connection. Once joined, every field but
// socket and logger is guarded by the lock of db.
type socketInfo struct {
	id     ConnID
	socket Socket
	logger logging.Logger

	state    socketState
	draining bool
	db       *Database
	replica  *Replica

	// sentCount is the index of the next statement to push.
	sentCount int64
}
