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
	"slices"

	"github.com/tidwall/btree"
)

// hashGroup holds the entries of one bin whose stored hashes are equal.
type hashGroup[K, V any] struct {
	hash    uint64
	entries []entry[K, V]
}

func hashGroupLess[K, V any](a, b *hashGroup[K, V]) bool {
	return a.hash < b.hash
}

// treeBin orders the entries of one bucket by stored hash, so a lookup
// costs O(log n) hash comparisons plus Equal calls within one group.
type treeBin[K, V any] struct {
	tree  *btree.BTreeG[*hashGroup[K, V]]
	count int
	probe hashGroup[K, V]
}

func newTreeBin[K, V any]() *treeBin[K, V] {
	return &treeBin[K, V]{
		tree: btree.NewBTreeGOptions(hashGroupLess[K, V], btree.Options{
			NoLocks: true,
		}),
	}
}

func (t *treeBin[K, V]) len() int {
	return t.count
}

func (t *treeBin[K, V]) group(h uint64) *hashGroup[K, V] {
	t.probe.hash = h
	g, ok := t.tree.Get(&t.probe)
	if !ok {
		return nil
	}
	return g
}

func (t *treeBin[K, V]) find(h uint64, key K, eq func(a, b K) bool) *entry[K, V] {
	g := t.group(h)
	if g == nil {
		return nil
	}
	for i := range g.entries {
		if eq(g.entries[i].key, key) {
			return &g.entries[i]
		}
	}
	return nil
}

func (t *treeBin[K, V]) insert(e entry[K, V]) {
	t.count++
	if g := t.group(e.hash); g != nil {
		g.entries = append(g.entries, e)
		return
	}
	t.tree.Set(&hashGroup[K, V]{
		hash:    e.hash,
		entries: []entry[K, V]{e},
	})
}

func (t *treeBin[K, V]) remove(h uint64, key K, eq func(a, b K) bool) (entry[K, V], bool) {
	g := t.group(h)
	if g == nil {
		return entry[K, V]{}, false
	}
	for i := range g.entries {
		if eq(g.entries[i].key, key) {
			return t.removeAt(g, i), true
		}
	}
	return entry[K, V]{}, false
}

func (t *treeBin[K, V]) removeRef(e *entry[K, V]) (entry[K, V], bool) {
	g := t.group(e.hash)
	if g == nil {
		return entry[K, V]{}, false
	}
	for i := range g.entries {
		if &g.entries[i] == e {
			return t.removeAt(g, i), true
		}
	}
	return entry[K, V]{}, false
}

func (t *treeBin[K, V]) removeAt(g *hashGroup[K, V], i int) entry[K, V] {
	e := g.entries[i]
	g.entries = slices.Delete(g.entries, i, i+1)
	if len(g.entries) == 0 {
		t.tree.Delete(g)
	}
	t.count--
	return e
}

func (t *treeBin[K, V]) each(fn func(e *entry[K, V]) bool) bool {
	ret := true
	t.tree.Scan(func(g *hashGroup[K, V]) bool {
		for i := range g.entries {
			if !fn(&g.entries[i]) {
				ret = false
				return false
			}
		}
		return true
	})
	return ret
}

func (t *treeBin[K, V]) appendRefs(refs []*entry[K, V]) []*entry[K, V] {
	t.each(func(e *entry[K, V]) bool {
		refs = append(refs, e)
		return true
	})
	return refs
}

func (t *treeBin[K, V]) clone() *treeBin[K, V] {
	ret := newTreeBin[K, V]()
	t.tree.Scan(func(g *hashGroup[K, V]) bool {
		ret.tree.Set(&hashGroup[K, V]{
			hash:    g.hash,
			entries: slices.Clone(g.entries),
		})
		return true
	})
	ret.count = t.count
	return ret
}
