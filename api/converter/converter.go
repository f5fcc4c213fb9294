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

// Package converter converts statements between the typed form used by
// replicas and the raw form sent on the wire.
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/anagni-team/anagni/api/types"
)

// ToRawStatement marshals the payload of the statement. The payload is
// compacted so that equal payloads have equal bytes.
func ToRawStatement[T any](s *types.Statement[T]) (*types.RawStatement, error) {
	data, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &types.RawStatement{
		Index:         s.Index,
		Replica:       s.Replica,
		Time:          s.Time,
		AccessControl: s.AccessControl.Normalize(),
		Obscured:      s.Obscured,
		Payload:       data,
	}, nil
}

// FromRawStatement unmarshals the payload of the statement. An obscured
// statement gets the zero value of T.
func FromRawStatement[T any](s *types.RawStatement) (*types.Statement[T], error) {
	stmt := &types.Statement[T]{
		Index:         s.Index,
		Replica:       s.Replica,
		Time:          s.Time,
		AccessControl: s.AccessControl,
		Obscured:      s.Obscured,
	}
	if s.Obscured || len(s.Payload) == 0 {
		return stmt, nil
	}

	if err := json.Unmarshal(s.Payload, &stmt.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return stmt, nil
}

// CompactPayload returns the payload without insignificant whitespace.
func CompactPayload(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return json.RawMessage("null"), nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, fmt.Errorf("compact payload: %w", err)
	}
	return buf.Bytes(), nil
}
