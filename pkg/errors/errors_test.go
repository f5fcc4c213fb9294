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

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code   StatusCode
		want   string
		client bool
	}{
		{CodeInvalidArgument, "invalid_argument", true},
		{CodeNotFound, "not_found", true},
		{CodeAlreadyExists, "already_exists", true},
		{CodePermissionDenied, "permission_denied", true},
		{CodeFailedPrecondition, "failed_precondition", true},
		{CodeAborted, "aborted", true},
		{CodeInternal, "internal", false},
		{CodeUnavailable, "unavailable", false},
		{CodeUnauthenticated, "unauthenticated", true},
		{StatusCode(999), "code_999", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
			assert.Equal(t, tt.client, tt.code.IsClientError())
		})
	}
}

func TestStatusError(t *testing.T) {
	errWrongSession := PermissionDenied("wrong session").WithCode("WrongSession")

	t.Run("status and code survive wrapping test", func(t *testing.T) {
		wrapped := fmt.Errorf("join r1: %w", errWrongSession)

		assert.Equal(t, CodePermissionDenied, StatusOf(wrapped))
		assert.Equal(t, "WrongSession", CodeOf(wrapped))
		assert.True(t, IsStatus(wrapped, CodePermissionDenied))
		assert.ErrorIs(t, wrapped, errWrongSession)
		assert.Equal(t, "join r1: wrong session", wrapped.Error())
	})

	t.Run("plain errors have no status test", func(t *testing.T) {
		plain := errors.New("plain")

		assert.Equal(t, StatusCode(0), StatusOf(plain))
		assert.Equal(t, "", CodeOf(plain))
		assert.Equal(t, StatusCode(0), StatusOf(nil))
	})

	t.Run("wrap test", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "ignored"))
		assert.ErrorIs(t, Wrap(errWrongSession, "join"), errWrongSession)
	})
}
