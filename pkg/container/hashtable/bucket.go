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
	"slices"
	"unsafe"
)

type entry[K, V any] struct {
	hash  uint64
	key   K
	value V
}

// bucket holds its entries either in a slice or, once treeified, in a
// treeBin. Exactly one of the two is in use.
type bucket[K, V any] struct {
	entries []entry[K, V]
	tree    *treeBin[K, V]
}

// BucketBytes is what a Map accounts with its Allocator per bucket.
func BucketBytes[K, V any]() uint64 {
	return uint64(unsafe.Sizeof(bucket[K, V]{}))
}

func (b *bucket[K, V]) len() int {
	if b.tree != nil {
		return b.tree.len()
	}
	return len(b.entries)
}

func (b *bucket[K, V]) find(h uint64, key K, eq func(a, b K) bool) *entry[K, V] {
	if b.tree != nil {
		return b.tree.find(h, key, eq)
	}
	for i := range b.entries {
		e := &b.entries[i]
		if e.hash == h && eq(e.key, key) {
			return e
		}
	}
	return nil
}

func (b *bucket[K, V]) insert(e entry[K, V]) {
	if b.tree != nil {
		b.tree.insert(e)
		return
	}
	b.entries = append(b.entries, e)
}

// remove keeps the relative order of the remaining entries.
func (b *bucket[K, V]) remove(h uint64, key K, eq func(a, b K) bool) (entry[K, V], bool) {
	if b.tree != nil {
		return b.tree.remove(h, key, eq)
	}
	for i := range b.entries {
		e := b.entries[i]
		if e.hash == h && eq(e.key, key) {
			b.entries = slices.Delete(b.entries, i, i+1)
			return e, true
		}
	}
	return entry[K, V]{}, false
}

// removeRef removes the entry e points into.
func (b *bucket[K, V]) removeRef(e *entry[K, V]) (entry[K, V], bool) {
	if b.tree != nil {
		return b.tree.removeRef(e)
	}
	for i := range b.entries {
		if &b.entries[i] == e {
			ret := b.entries[i]
			b.entries = slices.Delete(b.entries, i, i+1)
			return ret, true
		}
	}
	return entry[K, V]{}, false
}

// appendRefs appends a pointer to every entry in iteration order.
func (b *bucket[K, V]) appendRefs(refs []*entry[K, V]) []*entry[K, V] {
	if b.tree != nil {
		return b.tree.appendRefs(refs)
	}
	for i := range b.entries {
		refs = append(refs, &b.entries[i])
	}
	return refs
}

// each calls fn on every entry in iteration order until fn returns false.
func (b *bucket[K, V]) each(fn func(e *entry[K, V]) bool) bool {
	if b.tree != nil {
		return b.tree.each(fn)
	}
	for i := range b.entries {
		if !fn(&b.entries[i]) {
			return false
		}
	}
	return true
}

func (b *bucket[K, V]) treeify() {
	if b.tree != nil {
		return
	}
	t := newTreeBin[K, V]()
	for _, e := range b.entries {
		t.insert(e)
	}
	b.tree = t
	b.entries = nil
}

func (b *bucket[K, V]) untreeify() {
	if b.tree == nil {
		return
	}
	entries := make([]entry[K, V], 0, b.tree.len())
	b.tree.each(func(e *entry[K, V]) bool {
		entries = append(entries, *e)
		return true
	})
	b.entries = entries
	b.tree = nil
}

func (b *bucket[K, V]) reset() {
	b.entries = nil
	b.tree = nil
}

func (b *bucket[K, V]) clone() bucket[K, V] {
	if b.tree != nil {
		return bucket[K, V]{tree: b.tree.clone()}
	}
	return bucket[K, V]{entries: slices.Clone(b.entries)}
}
