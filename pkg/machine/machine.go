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

// Package machine provides transition machines: functions from one event to
// a lazy stream of output events, and the operators that compose them.
package machine

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrNotSingle is returned by Single when a stream does not yield exactly
// one value.
var ErrNotSingle = errors.New("stream did not yield exactly one value")

// Stream is a lazy, single-pass sequence of values. A stream ends after it
// yields a non-nil error.
type Stream[A any] = iter.Seq2[A, error]

// Machine maps an event to a stream of output events.
type Machine[E, A any] func(ctx context.Context, event E) Stream[A]

// Identity returns a machine that re-emits its input unchanged.
func Identity[E any]() Machine[E, E] {
	return func(_ context.Context, event E) Stream[E] {
		return Of(event)
	}
}

// Lift turns a pure function into a machine emitting one value per event.
func Lift[E, A any](f func(E) (A, error)) Machine[E, A] {
	return func(_ context.Context, event E) Stream[A] {
		return func(yield func(A, error) bool) {
			yield(f(event))
		}
	}
}

// Compose feeds every output of f into g, preserving emission order. The
// resulting stream stops at the first error of either stage.
func Compose[E, B, A any](g Machine[B, A], f Machine[E, B]) Machine[E, A] {
	return func(ctx context.Context, event E) Stream[A] {
		return func(yield func(A, error) bool) {
			for b, err := range f(ctx, event) {
				if err != nil {
					var zero A
					yield(zero, err)
					return
				}

				for a, err := range g(ctx, b) {
					if !yield(a, err) || err != nil {
						return
					}
				}
			}
		}
	}
}

// Of returns a stream yielding the given values in order.
func Of[A any](values ...A) Stream[A] {
	return func(yield func(A, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Fail returns a stream yielding only the given error.
func Fail[A any](err error) Stream[A] {
	return func(yield func(A, error) bool) {
		var zero A
		yield(zero, err)
	}
}

// Empty returns a machine that never emits.
func Empty[E, A any]() Machine[E, A] {
	return func(context.Context, E) Stream[A] {
		return func(func(A, error) bool) {}
	}
}

// Collect drains the stream into a slice. It returns the values read before
// the first error together with that error.
func Collect[A any](ctx context.Context, s Stream[A]) ([]A, error) {
	var values []A
	for v, err := range s {
		if err != nil {
			return values, err
		}
		if err := ctx.Err(); err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Single drains the stream and returns its only value.
func Single[A any](ctx context.Context, s Stream[A]) (A, error) {
	var zero A
	values, err := Collect(ctx, s)
	if err != nil {
		return zero, err
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("got %d values: %w", len(values), ErrNotSingle)
	}
	return values[0], nil
}
