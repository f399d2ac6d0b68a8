// Copyright 2021 Matrix Origin
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

	"github.com/RoaringBitmap/roaring"

	"github.com/matrixorigin/chainmap/pkg/common/moerr"
)

// Iterator walks a Map in bucket index order, then in bucket order.
// Any structural modification not made through Iterator.Remove stops the
// iteration and Err reports ErrInvalidState.
type Iterator[K, V any] struct {
	m        *Map[K, V]
	modCount uint64
	bits     roaring.IntPeekable
	bucket   int
	refs     []*entry[K, V]
	pos      int
	cur      *entry[K, V]
	err      error
}

func (m *Map[K, V]) Iterator() *Iterator[K, V] {
	it := new(Iterator[K, V])
	it.Init(m)
	return it
}

// Init positions the iterator before the first entry of m. An Iterator
// can be reused by calling Init again.
func (it *Iterator[K, V]) Init(m *Map[K, V]) {
	*it = Iterator[K, V]{
		m:        m,
		modCount: m.modCount,
		bits:     m.occupied.Iterator(),
		bucket:   -1,
		refs:     it.refs[:0],
	}
}

func (it *Iterator[K, V]) checkModified() bool {
	if it.modCount != it.m.modCount {
		it.err = moerr.NewInvalidStateNoCtx("map modified during iteration")
		it.cur = nil
		return true
	}
	return false
}

func (it *Iterator[K, V]) Next() bool {
	if it.err != nil || it.checkModified() {
		return false
	}
	for it.pos >= len(it.refs) {
		if !it.bits.HasNext() {
			it.cur = nil
			return false
		}
		it.bucket = int(it.bits.Next())
		it.refs = it.m.buckets[it.bucket].appendRefs(it.refs[:0])
		it.pos = 0
	}
	it.cur = it.refs[it.pos]
	it.pos++
	return true
}

// Key returns the key of the current entry. Only valid after Next
// returned true.
func (it *Iterator[K, V]) Key() K {
	return it.cur.key
}

func (it *Iterator[K, V]) Value() V {
	return it.cur.value
}

func (it *Iterator[K, V]) Err() error {
	return it.err
}

// Remove removes the current entry. The iteration goes on with the entry
// that would have followed it.
func (it *Iterator[K, V]) Remove() error {
	if it.err != nil {
		return it.err
	}
	if it.checkModified() {
		return it.err
	}
	if it.cur == nil {
		return moerr.NewInvalidStateNoCtx("no current entry")
	}
	it.m.removeRef(it.bucket, it.cur)
	it.cur = nil
	it.modCount = it.m.modCount

	// removal keeps the order of the other entries, so the next one is at
	// pos-1 of the refreshed refs
	it.refs = it.m.buckets[it.bucket].appendRefs(it.refs[:0])
	it.pos--
	it.bits = it.m.occupied.Iterator()
	it.bits.AdvanceIfNeeded(uint32(it.bucket + 1))
	return nil
}

// All yields every entry. It panics with ErrInvalidState if the map is
// structurally modified while iterating.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var it Iterator[K, V]
		it.Init(m)
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
		if err := it.Err(); err != nil {
			panic(err)
		}
	}
}

func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}
