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

package cmap_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/pkg/cmap"
)

type key string

func TestMap(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cmap.New[key, int]()

		m.Set("a", 1)
		v, exists := m.Get("a")
		assert.True(t, exists)
		assert.Equal(t, 1, v)

		v, exists = m.Get("b")
		assert.False(t, exists)
		assert.Equal(t, 0, v)
	})

	t.Run("get or insert", func(t *testing.T) {
		m := cmap.New[key, int]()

		v, inserted := m.GetOrInsert("a", func() int { return 1 })
		assert.True(t, inserted)
		assert.Equal(t, 1, v)

		v, inserted = m.GetOrInsert("a", func() int { return 2 })
		assert.False(t, inserted)
		assert.Equal(t, 1, v)
	})

	t.Run("delete", func(t *testing.T) {
		m := cmap.New[key, int]()

		m.Set("a", 1)
		v, exists := m.Delete("a")
		assert.True(t, exists)
		assert.Equal(t, 1, v)

		_, exists = m.Delete("a")
		assert.False(t, exists)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("all", func(t *testing.T) {
		m := cmap.New[key, int]()
		for i := 0; i < 100; i++ {
			m.Set(key(fmt.Sprintf("k%d", i)), i)
		}

		sum := 0
		for k, v := range m.All() {
			assert.Equal(t, key(fmt.Sprintf("k%d", v)), k)
			sum += v
		}
		assert.Equal(t, 4950, sum)

		count := 0
		for range m.All() {
			count++
			if count == 3 {
				break
			}
		}
		assert.Equal(t, 3, count)
	})
}

func TestConcurrentMap(t *testing.T) {
	t.Run("concurrent get or insert creates once", func(t *testing.T) {
		m := cmap.New[key, *int32]()
		const numRoutines = 64

		var created int32
		var wg sync.WaitGroup
		wg.Add(numRoutines)
		for i := 0; i < numRoutines; i++ {
			go func() {
				defer wg.Done()
				counter, _ := m.GetOrInsert("shared", func() *int32 {
					atomic.AddInt32(&created, 1)
					return new(int32)
				})
				atomic.AddInt32(counter, 1)
			}()
		}
		wg.Wait()

		counter, ok := m.Get("shared")
		assert.True(t, ok)
		assert.Equal(t, int32(1), atomic.LoadInt32(&created))
		assert.Equal(t, int32(numRoutines), atomic.LoadInt32(counter))
	})
}
