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

package machine_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anagni-team/anagni/pkg/machine"
)

var errOdd = errors.New("odd")

func fanOut(_ context.Context, n int) machine.Stream[int] {
	return machine.Of(n, n*10)
}

func evens(_ context.Context, n int) machine.Stream[int] {
	if n%2 != 0 {
		return machine.Of[int]()
	}
	return machine.Of(n)
}

func format(_ context.Context, n int) machine.Stream[string] {
	return machine.Of(strconv.Itoa(n), "#")
}

func collect[E, A any](t *testing.T, m machine.Machine[E, A], events ...E) []A {
	t.Helper()
	var all []A
	for _, e := range events {
		values, err := machine.Collect(context.Background(), m(context.Background(), e))
		require.NoError(t, err)
		all = append(all, values...)
	}
	return all
}

func TestCompose(t *testing.T) {
	inputs := []int{0, 1, 2, 3, 7}

	t.Run("identity laws test", func(t *testing.T) {
		var f machine.Machine[int, int] = fanOut
		left := machine.Compose(machine.Identity[int](), f)
		right := machine.Compose(f, machine.Identity[int]())

		assert.Equal(t, collect(t, f, inputs...), collect(t, left, inputs...))
		assert.Equal(t, collect(t, f, inputs...), collect(t, right, inputs...))
	})

	t.Run("associativity test", func(t *testing.T) {
		var f machine.Machine[int, int] = fanOut
		var g machine.Machine[int, int] = evens
		var h machine.Machine[int, string] = format

		a := machine.Compose(h, machine.Compose(g, f))
		b := machine.Compose(machine.Compose(h, g), f)

		assert.Equal(t, collect(t, a, inputs...), collect(t, b, inputs...))
		assert.Equal(t, []string{"0", "#", "0", "#", "10", "#"}, collect(t, a, 0, 1))
	})

	t.Run("empty stage short circuits test", func(t *testing.T) {
		m := machine.Compose(machine.Machine[int, string](format), machine.Empty[int, int]())
		assert.Empty(t, collect(t, m, inputs...))
	})

	t.Run("error stops the stream test", func(t *testing.T) {
		failing := machine.Lift(func(n int) (int, error) {
			if n%2 != 0 {
				return 0, errOdd
			}
			return n, nil
		})
		m := machine.Compose(failing, machine.Machine[int, int](fanOut))

		values, err := machine.Collect(context.Background(), m(context.Background(), 3))
		assert.ErrorIs(t, err, errOdd)
		assert.Empty(t, values)

		values, err = machine.Collect(context.Background(), m(context.Background(), 2))
		assert.NoError(t, err)
		assert.Equal(t, []int{2, 20}, values)
	})
}

func TestLoop(t *testing.T) {
	type in = machine.Sum[int, int]
	type out = machine.Sum[int, int]

	t.Run("inert inner stage test", func(t *testing.T) {
		f := func(_ context.Context, e in) machine.Stream[out] {
			x, _ := e.Left()
			return machine.Of(
				machine.Left[int, int](x),
				machine.Right[int](x+1),
				machine.Left[int, int](x*2),
			)
		}
		m := machine.Loop(machine.Empty[int, int](), machine.Machine[in, out](f))

		assert.Equal(t, []int{3, 6, 5, 10}, collect(t, m, 3, 5))
	})

	t.Run("recursion until quiescent test", func(t *testing.T) {
		increment := machine.Lift(func(n int) (int, error) { return n + 1, nil })
		f := func(_ context.Context, e in) machine.Stream[out] {
			if x, ok := e.Left(); ok {
				return machine.Of(machine.Right[int](x))
			}
			a, _ := e.Right()
			if a < 3 {
				return machine.Of(machine.Right[int](a))
			}
			return machine.Of(machine.Left[int, int](a))
		}

		assert.Equal(t, []int{3}, collect(t, machine.Loop(increment, machine.Machine[in, out](f)), 0))
	})

	t.Run("depth first order test", func(t *testing.T) {
		shift := machine.Lift(func(n int) (int, error) { return n + 100, nil })
		f := func(_ context.Context, e in) machine.Stream[out] {
			if x, ok := e.Left(); ok {
				return machine.Of(machine.Right[int](x), machine.Left[int, int](-1))
			}
			a, _ := e.Right()
			return machine.Of(machine.Left[int, int](a))
		}

		assert.Equal(t, []int{100, -1}, collect(t, machine.Loop(shift, machine.Machine[in, out](f)), 0))
	})

	t.Run("inner error surfaces test", func(t *testing.T) {
		failing := machine.Lift(func(int) (int, error) { return 0, errOdd })
		f := func(_ context.Context, e in) machine.Stream[out] {
			x, _ := e.Left()
			return machine.Of(machine.Right[int](x), machine.Left[int, int](x))
		}

		m := machine.Loop(failing, machine.Machine[in, out](f))
		values, err := machine.Collect(context.Background(), m(context.Background(), 1))
		assert.ErrorIs(t, err, errOdd)
		assert.Empty(t, values)
	})
}

func TestSingle(t *testing.T) {
	ctx := context.Background()

	v, err := machine.Single(ctx, machine.Of("a"))
	assert.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = machine.Single(ctx, machine.Of("a", "b"))
	assert.ErrorIs(t, err, machine.ErrNotSingle)

	_, err = machine.Single(ctx, machine.Fail[string](errOdd))
	assert.ErrorIs(t, err, errOdd)
}
