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

// Package cmap provides a concurrent map keyed by string identifiers.
package cmap

import (
	"hash/fnv"
	"iter"
	"sync"
)

const numShards = 16

type shard[V any] struct {
	sync.RWMutex
	items map[string]V
}

// Map is a concurrent map that is safe for multiple routines. Keys are
// spread over shards to reduce lock contention.
type Map[K ~string, V any] struct {
	shards [numShards]shard[V]
}

// New creates a new Map.
func New[K ~string, V any]() *Map[K, V] {
	m := &Map[K, V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[V] {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))
	return &m.shards[hash.Sum32()%numShards]
}

// Set sets a key-value pair.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	s.items[string(key)] = value
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.RLock()
	defer s.RUnlock()

	value, ok := s.items[string(key)]
	return value, ok
}

// GetOrInsert returns the value of the key, inserting the value built by
// create when it is absent. create runs at most once per key. The boolean
// reports whether the value was inserted.
func (m *Map[K, V]) GetOrInsert(key K, create func() V) (V, bool) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	if value, ok := s.items[string(key)]; ok {
		return value, false
	}

	value := create()
	s.items[string(key)] = value
	return value, true
}

// Delete removes the key and returns the removed value.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	value, ok := s.items[string(key)]
	if ok {
		delete(s.items, string(key))
	}
	return value, ok
}

// Len returns the number of items in the map.
func (m *Map[K, V]) Len() int {
	count := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		count += len(s.items)
		s.RUnlock()
	}
	return count
}

// All iterates over a snapshot of every shard. The map may be modified
// during the iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.shards {
			s := &m.shards[i]

			s.RLock()
			keys := make([]string, 0, len(s.items))
			values := make([]V, 0, len(s.items))
			for k, v := range s.items {
				keys = append(keys, k)
				values = append(values, v)
			}
			s.RUnlock()

			for j := range keys {
				if !yield(K(keys[j]), values[j]) {
					return
				}
			}
		}
	}
}
