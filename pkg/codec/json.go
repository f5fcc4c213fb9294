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

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anagni-team/anagni/pkg/machine"
)

// JSON returns the innermost codec between values of T and JSON text.
func JSON[T any]() Codec[T, string] {
	return func(_ context.Context, e machine.Sum[T, string]) machine.Stream[machine.Sum[T, string]] {
		if v, ok := e.Left(); ok {
			data, err := json.Marshal(v)
			if err != nil {
				return machine.Fail[machine.Sum[T, string]](fmt.Errorf("marshal: %w", err))
			}
			return machine.Of(machine.Right[T](string(data)))
		}

		text, _ := e.Right()
		var v T
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return machine.Fail[machine.Sum[T, string]](fmt.Errorf("%w: %s", ErrMalformedText, err))
		}
		return machine.Of(machine.Left[T, string](v))
	}
}
