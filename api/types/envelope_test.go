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

package types_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/internal/validation"
	"github.com/anagni-team/anagni/pkg/codec"
)

func TestEnvelopeWireFormat(t *testing.T) {
	ctx := context.Background()
	stack := codec.NewStack[*types.Envelope](nil)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	push := &types.RawStatement{
		Index:         3,
		Replica:       "r1",
		Time:          1700000000000,
		AccessControl: types.Only("r2"),
		Payload:       json.RawMessage(`{"move":4}`),
	}
	hidden := *push
	hidden.Index = 5
	hidden.AccessControl = types.Except("r2")

	envelopes := map[string]*types.Envelope{
		"join": types.NewJoin(&types.JoinRequest{
			ReplicaID: "r1",
			Database:  "room1",
			Secret:    "s3cret",
		}),
		"okay":          types.NewOkay(10, 4),
		"err":           types.NewErr(&types.Failure{Code: types.WrongSession, Message: "wrong session"}),
		"push":          types.NewPush(push),
		"push_obscured": types.NewPush(types.Obscure(&hidden)),
	}

	for name, envelope := range envelopes {
		t.Run(name+" test", func(t *testing.T) {
			data, err := stack.Encode(ctx, envelope)
			require.NoError(t, err)
			g.Assert(t, name, data)

			decoded, err := stack.Decode(ctx, data)
			require.NoError(t, err)
			assert.NoError(t, decoded.Validate())
			assert.Equal(t, envelope.Type, decoded.Type)
		})
	}
}

func TestEnvelopeValidate(t *testing.T) {
	assert.NoError(t, types.NewOkay(0, 0).Validate())
	assert.ErrorIs(t, (&types.Envelope{Type: types.PushMessage}).Validate(), types.ErrUnknownMessage)
	assert.ErrorIs(t, (&types.Envelope{Type: "hello"}).Validate(), types.ErrUnknownMessage)
}

func TestJoinRequestValidate(t *testing.T) {
	valid := &types.JoinRequest{ReplicaID: "r1", Database: "room1", Secret: "s"}
	assert.NoError(t, valid.Validate())

	err := (&types.JoinRequest{ReplicaID: "r 1", Database: "", Secret: "s", ReceivedCount: -1}).Validate()
	var structErr *validation.StructError
	require.True(t, errors.As(err, &structErr))
	assert.Len(t, structErr.Violations, 3)
}

func TestFailure(t *testing.T) {
	err := error(&types.Failure{Code: types.MustJoin, Message: "join first"})

	assert.ErrorIs(t, err, &types.Failure{Code: types.MustJoin})
	assert.False(t, errors.Is(err, &types.Failure{Code: types.WrongSession}))
	assert.Equal(t, "MustJoin: join first", err.Error())
	assert.Equal(t, "OtherConnection", (&types.Failure{Code: types.OtherConnection}).Error())
}
