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

// Sum is a value tagged as either Left or Right.
type Sum[L, R any] struct {
	right bool
	left  L
	value R
}

// Left returns a Sum holding a left value.
func Left[L, R any](v L) Sum[L, R] {
	return Sum[L, R]{left: v}
}

// Right returns a Sum holding a right value.
func Right[L, R any](v R) Sum[L, R] {
	return Sum[L, R]{right: true, value: v}
}

// IsRight returns whether the sum holds a right value.
func (s Sum[L, R]) IsRight() bool {
	return s.right
}

// Left returns the left value and whether it is present.
func (s Sum[L, R]) Left() (L, bool) {
	return s.left, !s.right
}

// Right returns the right value and whether it is present.
func (s Sum[L, R]) Right() (R, bool) {
	return s.value, s.right
}
