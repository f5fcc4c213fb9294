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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/backend/database/mongo"
	"github.com/anagni-team/anagni/server/profiling"
	"github.com/anagni-team/anagni/server/rpc"
)

// Below are the values of the default values of Anagni config.
const (
	DefaultRPCPort                  = 11101
	DefaultRPCMaxRequestBytes       = 4 * 1024 * 1024
	DefaultRPCMaxConnectionAge      = 0 * time.Second
	DefaultRPCMaxConnectionAgeGrace = 0 * time.Second
	DefaultRPCSealCipher            = codec.ChaCha20Poly1305

	DefaultProfilingPort = 11102

	DefaultDrainBatchSize      = 128
	DefaultMaxConcurrentDrains = 64
	DefaultSecretHashCost      = bcrypt.DefaultCost

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoAnagniDatabase    = "anagni"
)

// Config is the configuration for creating an Anagni instance.
type Config struct {
	RPC       *rpc.Config       `yaml:"RPC"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Mongo     *mongo.Config     `yaml:"Mongo"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if c.Profiling != nil {
		if err := c.Profiling.Validate(); err != nil {
			return err
		}
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.RPC == nil {
		c.RPC = &rpc.Config{}
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxRequestBytes == 0 {
		c.RPC.MaxRequestBytes = DefaultRPCMaxRequestBytes
	}
	if c.RPC.MaxConnectionAge == "" {
		c.RPC.MaxConnectionAge = DefaultRPCMaxConnectionAge.String()
	}
	if c.RPC.MaxConnectionAgeGrace == "" {
		c.RPC.MaxConnectionAgeGrace = DefaultRPCMaxConnectionAgeGrace.String()
	}
	if c.RPC.SealCipher == "" {
		c.RPC.SealCipher = DefaultRPCSealCipher
	}

	if c.Profiling != nil && c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.DrainBatchSize == 0 {
		c.Backend.DrainBatchSize = DefaultDrainBatchSize
	}
	if c.Backend.MaxConcurrentDrains == 0 {
		c.Backend.MaxConcurrentDrains = DefaultMaxConcurrentDrains
	}
	if c.Backend.SecretHashCost == 0 {
		c.Backend.SecretHashCost = DefaultSecretHashCost
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}

		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}

		if c.Mongo.AnagniDatabase == "" {
			c.Mongo.AnagniDatabase = DefaultMongoAnagniDatabase
		}

		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:                  port,
			MaxRequestBytes:       DefaultRPCMaxRequestBytes,
			MaxConnectionAge:      DefaultRPCMaxConnectionAge.String(),
			MaxConnectionAgeGrace: DefaultRPCMaxConnectionAgeGrace.String(),
			SealCipher:            DefaultRPCSealCipher,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Backend: &backend.Config{
			DrainBatchSize:      DefaultDrainBatchSize,
			MaxConcurrentDrains: DefaultMaxConcurrentDrains,
			SecretHashCost:      DefaultSecretHashCost,
		},
	}
}
