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

package codec

import "context"

// Stack encodes values of T for the wire: T to JSON text to UTF-8 bytes
// and, when a Sealer is given, to sealed bytes.
type Stack[T any] struct {
	codec Codec[T, []byte]
}

// NewStack creates a Stack. The sealer may be nil.
func NewStack[T any](sealer *Sealer) *Stack[T] {
	c := Text(JSON[T]())
	if sealer != nil {
		c = Seal(c, sealer)
	}
	return &Stack[T]{codec: c}
}

// Encode turns the value into wire bytes.
func (s *Stack[T]) Encode(ctx context.Context, v T) ([]byte, error) {
	return Encode(ctx, s.codec, v)
}

// Decode turns wire bytes into a value.
func (s *Stack[T]) Decode(ctx context.Context, b []byte) (T, error) {
	return Decode(ctx, s.codec, b)
}
