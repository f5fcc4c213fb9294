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

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/api/types"
)

func TestAppendArgs(t *testing.T) {
	t.Run("payload test", func(t *testing.T) {
		payload, err := toPayload(`{"move":"e4"}`)
		assert.NoError(t, err)
		assert.Equal(t, json.RawMessage(`{"move":"e4"}`), payload)

		payload, err = toPayload("hello")
		assert.NoError(t, err)
		assert.Equal(t, json.RawMessage(`"hello"`), payload)
	})

	t.Run("access control test", func(t *testing.T) {
		ac, err := accessControl(nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, types.All(), ac)

		ac, err = accessControl([]string{"alice"}, nil)
		assert.NoError(t, err)
		assert.Equal(t, types.Only("alice"), ac)

		ac, err = accessControl(nil, []string{"bob"})
		assert.NoError(t, err)
		assert.Equal(t, types.Except("bob"), ac)

		_, err = accessControl([]string{"alice"}, []string{"bob"})
		assert.Error(t, err)
	})
}
