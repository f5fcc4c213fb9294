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

package client

import (
	"context"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/pkg/machine"
)

// Output is one output of a replica: Left is a statement to append to the
// log, Right is a request for external input such as a move of a player.
type Output[T, U any] = machine.Sum[*types.Statement[T], U]

// Replica is the application state machine driven by the log of a database.
// Its outputs must be a deterministic function of the statements it has
// observed, so that a replay reproduces them.
type Replica[T, U any] interface {
	// Init is called once per client, after the first successful join.
	Init(ctx context.Context, self types.ReplicaID) machine.Stream[Output[T, U]]

	// Dispatch is called for every statement of the log, in index order.
	// The payload of an obscured statement is the zero value of T.
	Dispatch(ctx context.Context, stmt *types.Statement[T]) machine.Stream[Output[T, U]]
}

// InputFunc answers a request for external input with the statement to
// append. Every answered request appends exactly one statement, so that a
// replay can tell which statements of the log answered which request.
type InputFunc[T, U any] func(ctx context.Context, req U) (*types.Statement[T], error)

type machineReplica[T, U any] struct {
	init     machine.Machine[types.ReplicaID, Output[T, U]]
	dispatch machine.Machine[*types.Statement[T], Output[T, U]]
}

// FromMachines builds a Replica from its init and dispatch machines.
func FromMachines[T, U any](
	init machine.Machine[types.ReplicaID, Output[T, U]],
	dispatch machine.Machine[*types.Statement[T], Output[T, U]],
) Replica[T, U] {
	return &machineReplica[T, U]{init: init, dispatch: dispatch}
}

func (r *machineReplica[T, U]) Init(ctx context.Context, self types.ReplicaID) machine.Stream[Output[T, U]] {
	return r.init(ctx, self)
}

func (r *machineReplica[T, U]) Dispatch(
	ctx context.Context,
	stmt *types.Statement[T],
) machine.Stream[Output[T, U]] {
	return r.dispatch(ctx, stmt)
}

// Emit returns the output appending a statement with the given payload.
func Emit[T, U any](payload T, ac types.AccessControl) Output[T, U] {
	return machine.Left[*types.Statement[T], U](&types.Statement[T]{
		AccessControl: ac,
		Payload:       payload,
	})
}

// Ask returns the output requesting external input.
func Ask[T, U any](req U) Output[T, U] {
	return machine.Right[*types.Statement[T]](req)
}
