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
	"slices"
)

// ErrInvalidAccessControl is returned for an access control whose mode and
// replica list do not fit together.
var ErrInvalidAccessControl = errors.New("invalid access control")

// AccessMode decides how the replica list of an AccessControl is read.
type AccessMode string

const (
	// AccessAll lets every replica see the payload.
	AccessAll AccessMode = "all"

	// AccessOnly lets only the listed replicas see the payload.
	AccessOnly AccessMode = "only"

	// AccessExcept lets every replica but the listed ones see the payload.
	AccessExcept AccessMode = "except"
)

// AccessControl is the visibility policy of a statement. Only and Except are
// exclusive: a statement carries exactly one mode.
type AccessControl struct {
	Mode     AccessMode  `json:"mode"`
	Replicas []ReplicaID `json:"replicas,omitempty"`
}

// All returns the policy showing the payload to everyone.
func All() AccessControl {
	return AccessControl{Mode: AccessAll}
}

// Only returns the policy showing the payload to the given replicas.
func Only(replicas ...ReplicaID) AccessControl {
	return AccessControl{Mode: AccessOnly, Replicas: replicas}
}

// Except returns the policy hiding the payload from the given replicas.
func Except(replicas ...ReplicaID) AccessControl {
	return AccessControl{Mode: AccessExcept, Replicas: replicas}
}

// Allows reports whether the replica may see the payload.
func (ac AccessControl) Allows(replica ReplicaID) bool {
	switch ac.Mode {
	case AccessOnly:
		return slices.Contains(ac.Replicas, replica)
	case AccessExcept:
		return !slices.Contains(ac.Replicas, replica)
	default:
		return true
	}
}

// Equal reports whether both policies are the same, ignoring the order of
// the replica lists.
func (ac AccessControl) Equal(other AccessControl) bool {
	if ac.normalizedMode() != other.normalizedMode() {
		return false
	}
	if ac.normalizedMode() == AccessAll {
		return true
	}

	a, b := slices.Clone(ac.Replicas), slices.Clone(other.Replicas)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

// Validate checks that the mode is known and that the replica list is only
// set for Only and Except.
func (ac AccessControl) Validate() error {
	switch ac.Mode {
	case "", AccessAll:
		if len(ac.Replicas) > 0 {
			return fmt.Errorf("replicas given for mode all: %w", ErrInvalidAccessControl)
		}
	case AccessOnly, AccessExcept:
	default:
		return fmt.Errorf("unknown mode %q: %w", ac.Mode, ErrInvalidAccessControl)
	}
	return nil
}

// Normalize returns the policy with an explicit mode.
func (ac AccessControl) Normalize() AccessControl {
	if ac.normalizedMode() == AccessAll {
		return All()
	}
	return ac
}

func (ac AccessControl) normalizedMode() AccessMode {
	if ac.Mode == "" {
		return AccessAll
	}
	return ac.Mode
}
