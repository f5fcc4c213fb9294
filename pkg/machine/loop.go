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

package machine

import "context"

// Loop threads a two-sided event through an inner stage.
//
// Events fed to the result enter f as Left. Left outputs of f are surfaced
// to the caller. Right outputs of f are fed to g and every output of g is
// fed back into f as Right, depth-first, until f stops delegating. The
// recursion must be finite: a layer that keeps handing a request back to
// itself never terminates.
func Loop[X, Y, E, A any](g Machine[E, A], f Machine[Sum[X, A], Sum[Y, E]]) Machine[X, Y] {
	return func(ctx context.Context, event X) Stream[Y] {
		return func(yield func(Y, error) bool) {
			l := &loop[X, Y, E, A]{inner: g, outer: f, yield: yield}
			l.run(ctx, Left[X, A](event))
		}
	}
}

type loop[X, Y, E, A any] struct {
	inner Machine[E, A]
	outer Machine[Sum[X, A], Sum[Y, E]]
	yield func(Y, error) bool
}

// run feeds one event to the outer stage. It returns false once the
// consumer stopped or an error was surfaced.
func (l *loop[X, Y, E, A]) run(ctx context.Context, event Sum[X, A]) bool {
	for out, err := range l.outer(ctx, event) {
		if err != nil {
			var zero Y
			l.yield(zero, err)
			return false
		}

		if y, ok := out.Left(); ok {
			if !l.yield(y, nil) {
				return false
			}
			continue
		}

		e, _ := out.Right()
		for a, err := range l.inner(ctx, e) {
			if err != nil {
				var zero Y
				l.yield(zero, err)
				return false
			}
			if !l.run(ctx, Right[X](a)) {
				return false
			}
		}
	}
	return true
}
