// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"iter"
	"sync"
)

// Synchronized guards a Map with a mutex. The wrapped Map must not be
// used directly afterwards.
type Synchronized[K, V any] struct {
	mu sync.Mutex
	m  *Map[K, V]
}

func NewSynchronized[K, V any](m *Map[K, V]) *Synchronized[K, V] {
	return &Synchronized[K, V]{m: m}
}

func (s *Synchronized[K, V]) Put(key K, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Put(key, value)
}

func (s *Synchronized[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.PutIfAbsent(key, value)
}

func (s *Synchronized[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Get(key)
}

func (s *Synchronized[K, V]) ContainsKey(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.ContainsKey(key)
}

func (s *Synchronized[K, V]) ContainsValue(value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.ContainsValue(value)
}

func (s *Synchronized[K, V]) Remove(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Remove(key)
}

func (s *Synchronized[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Len()
}

func (s *Synchronized[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Stats()
}

// All iterates over a copy taken under the lock, so the callback may use
// s freely.
func (s *Synchronized[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		s.mu.Lock()
		keys := make([]K, 0, s.m.Len())
		values := make([]V, 0, s.m.Len())
		for k, v := range s.m.All() {
			keys = append(keys, k)
			values = append(values, v)
		}
		s.mu.Unlock()

		for i := range keys {
			if !yield(keys[i], values[i]) {
				return
			}
		}
	}
}
