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

package interceptors_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/server/backend/database"
	"github.com/anagni-team/anagni/server/replication"
	"github.com/anagni-team/anagni/server/rpc/interceptors"
)

func TestToStatusError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected codes.Code
	}{
		{"malformed frame", fmt.Errorf("decode: %w", codec.ErrMalformedText), codes.InvalidArgument},
		{"bad seal", fmt.Errorf("decode: %w", codec.ErrOpen), codes.InvalidArgument},
		{"nonce exhausted", codec.ErrNonceExhausted, codes.ResourceExhausted},
		{"index conflict", fmt.Errorf("append: %w", database.ErrIndexConflict), codes.FailedPrecondition},
		{"wrong session", replication.ErrWrongSession, codes.Unauthenticated},
		{"canceled", fmt.Errorf("recv: %w", context.Canceled), codes.Canceled},
		{"status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{"plain", errors.New("plain"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(interceptors.ToStatusError(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.expected, st.Code())
		})
	}

	t.Run("end of stream test", func(t *testing.T) {
		assert.NoError(t, interceptors.ToStatusError(io.EOF))
		assert.NoError(t, interceptors.ToStatusError(nil))
	})
}
