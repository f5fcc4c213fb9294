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

package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/server/backend"
)

func newValidBackendConf() backend.Config {
	return backend.Config{
		DrainBatchSize:      100,
		MaxConcurrentDrains: 64,
		SecretHashCost:      4,
	}
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := newValidBackendConf()
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.DrainBatchSize = 0
		assert.ErrorIs(t, conf1.Validate(), backend.ErrInvalidDrainBatchSize)

		conf2 := validConf
		conf2.SecretHashCost = 32
		assert.ErrorIs(t, conf2.Validate(), backend.ErrInvalidSecretHashCost)

		conf3 := validConf
		conf3.MaxConcurrentDrains = -1
		assert.ErrorIs(t, conf3.Validate(), backend.ErrInvalidMaxConcurrentDrains)
	})
}
