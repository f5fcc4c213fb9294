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

package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation(t *testing.T) {
	t.Run("ValidateValue test", func(t *testing.T) {
		err := ValidateValue("room1", "required,identifier,max=128")
		assert.Nil(t, err)

		err = ValidateValue("room 1", "required,identifier,max=128")
		assert.Equal(t, "identifier", err.(Violation).Tag)

		err = ValidateValue("", "required,identifier,max=128")
		assert.Equal(t, "required", err.(Violation).Tag)

		err = ValidateValue("1h30m20s", "duration")
		assert.Nil(t, err)

		err = ValidateValue("one hour", "duration")
		assert.Equal(t, "duration", err.(Violation).Tag)
		assert.Equal(t, "one hour", err.(Violation).Err.(interface{ Value() interface{} }).Value())
	})

	t.Run("ValidateStruct test", func(t *testing.T) {
		type join struct {
			ReplicaID string `validate:"required,identifier,max=8"`
			Database  string `validate:"required,identifier"`
		}

		err := ValidateStruct(join{ReplicaID: "much too long", Database: ""})
		structError := err.(*StructError)
		assert.Len(t, structError.Violations, 2)
		assert.Equal(t, "ReplicaID", structError.Violations[0].Field)
		assert.Equal(t, "Database is a required field", structError.Violations[1].Description)

		assert.NoError(t, ValidateStruct(join{ReplicaID: "r1", Database: "room1"}))
	})

	t.Run("custom rule test", func(t *testing.T) {
		_ = RegisterValidation("custom", func(v FieldLevel) bool {
			return v.Field().String() == "custom"
		})

		myError := errors.New("custom error")
		_ = RegisterTranslation("custom", myError.Error())

		err := ValidateValue("custom-invalid-value", "required,custom")
		assert.Equal(t, myError.Error(), err.(Violation).Description)

		assert.Nil(t, ValidateValue("custom", "required,custom"))
	})
}
