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

package converter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anagni-team/anagni/api/converter"
	"github.com/anagni-team/anagni/api/types"
)

type move struct {
	Cell   int    `json:"cell"`
	Player string `json:"player"`
}

func TestConverter(t *testing.T) {
	t.Run("statement test", func(t *testing.T) {
		stmt := &types.Statement[move]{
			Index:   2,
			Replica: "x",
			Payload: move{Cell: 4, Player: "x"},
		}

		raw, err := converter.ToRawStatement(stmt)
		require.NoError(t, err)
		assert.Equal(t, `{"cell":4,"player":"x"}`, string(raw.Payload))
		assert.Equal(t, types.All(), raw.AccessControl)

		back, err := converter.FromRawStatement[move](raw)
		require.NoError(t, err)
		assert.Equal(t, stmt.Payload, back.Payload)
		assert.Equal(t, stmt.Index, back.Index)
	})

	t.Run("obscured statement test", func(t *testing.T) {
		raw := types.Obscure(&types.RawStatement{Index: 1, Payload: json.RawMessage(`{"cell":1}`)})

		stmt, err := converter.FromRawStatement[move](raw)
		require.NoError(t, err)
		assert.True(t, stmt.Obscured)
		assert.Equal(t, move{}, stmt.Payload)
	})

	t.Run("malformed payload test", func(t *testing.T) {
		_, err := converter.FromRawStatement[move](&types.RawStatement{Payload: json.RawMessage(`[1,2]`)})
		assert.Error(t, err)
	})

	t.Run("compact payload test", func(t *testing.T) {
		compacted, err := converter.CompactPayload(json.RawMessage("{ \"cell\" : 4,\n \"player\": \"o\" }"))
		require.NoError(t, err)
		assert.Equal(t, `{"cell":4,"player":"o"}`, string(compacted))

		compacted, err = converter.CompactPayload(nil)
		require.NoError(t, err)
		assert.Equal(t, "null", string(compacted))

		_, err = converter.CompactPayload(json.RawMessage("{"))
		assert.Error(t, err)
	})
}
