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

package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/server/rpc"
)

func newValidRPCConf() rpc.Config {
	return rpc.Config{
		Port:                  11101,
		MaxConnectionAge:      "50s",
		MaxConnectionAgeGrace: "10s",
	}
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := newValidRPCConf()
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.Port = -1
		assert.ErrorIs(t, conf1.Validate(), rpc.ErrInvalidRPCPort)

		conf2 := validConf
		conf2.CertFile = "noSuchCertFile"
		assert.ErrorIs(t, conf2.Validate(), rpc.ErrInvalidCertFile)

		conf3 := validConf
		conf3.KeyFile = "noSuchKeyFile"
		assert.ErrorIs(t, conf3.Validate(), rpc.ErrInvalidKeyFile)

		conf4 := validConf
		conf4.MaxConnectionAge = "50"
		assert.ErrorIs(t, conf4.Validate(), rpc.ErrInvalidMaxConnectionAge)

		conf5 := validConf
		conf5.MaxConnectionAgeGrace = "10"
		assert.ErrorIs(t, conf5.Validate(), rpc.ErrInvalidMaxConnectionAgeGrace)

		conf6 := validConf
		conf6.MaxConnections = -1
		assert.ErrorIs(t, conf6.Validate(), rpc.ErrInvalidMaxConnections)

		conf7 := validConf
		conf7.SealSecret = "shared"
		conf7.SealCipher = "rot13"
		assert.ErrorIs(t, conf7.Validate(), codec.ErrUnknownCipher)

		conf7.SealCipher = codec.ChaCha20Poly1305
		assert.NoError(t, conf7.Validate())
	})

	t.Run("sealer test", func(t *testing.T) {
		conf := newValidRPCConf()
		sealer, err := conf.NewSealer(nil)
		assert.NoError(t, err)
		assert.Nil(t, sealer)

		conf.SealSecret = "shared"
		conf.SealCipher = codec.AESGCM
		salt, err := codec.NewSalt()
		assert.NoError(t, err)
		sealer, err = conf.NewSealer(salt)
		assert.NoError(t, err)
		assert.NotNil(t, sealer)
	})
}
