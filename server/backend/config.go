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

package backend

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidDrainBatchSize occurs when the drain batch size is invalid.
	ErrInvalidDrainBatchSize = errors.New("invalid drain batch size")

	// ErrInvalidSecretHashCost occurs when the bcrypt cost is out of range.
	ErrInvalidSecretHashCost = errors.New("invalid secret hash cost")

	// ErrInvalidMaxConcurrentDrains occurs when the drain limit is invalid.
	ErrInvalidMaxConcurrentDrains = errors.New("invalid max concurrent drains")
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// DrainBatchSize is the number of statements read from the store at once
	// while draining the backlog of a connection.
	DrainBatchSize int `yaml:"DrainBatchSize"`

	// MaxConcurrentDrains is the number of drain loops that may read the
	// store at the same time.
	MaxConcurrentDrains int64 `yaml:"MaxConcurrentDrains"`

	// SecretHashCost is the bcrypt cost used to hash replica secrets.
	SecretHashCost int `yaml:"SecretHashCost"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.DrainBatchSize < 1 {
		return fmt.Errorf("must be positive, given %d: %w", c.DrainBatchSize, ErrInvalidDrainBatchSize)
	}

	if c.MaxConcurrentDrains < 1 {
		return fmt.Errorf("must be positive, given %d: %w", c.MaxConcurrentDrains, ErrInvalidMaxConcurrentDrains)
	}

	if c.SecretHashCost < bcrypt.MinCost || bcrypt.MaxCost < c.SecretHashCost {
		return fmt.Errorf(
			"must be between %d and %d, given %d: %w",
			bcrypt.MinCost,
			bcrypt.MaxCost,
			c.SecretHashCost,
			ErrInvalidSecretHashCost,
		)
	}

	return nil
}
