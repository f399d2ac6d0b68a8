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
	"fmt"
	"reflect"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
)

// Map is a hash table resolving collisions by chaining. Each bucket owns
// the entries hashing to it. The capacity is a power of two and doubles
// whenever the number of entries exceeds capacity * load factor.
//
// A Map is not safe for concurrent use. See Synchronized.
type Map[K, V any] struct {
	hasher     Hasher[K]
	keyEqual   func(a, b K) bool
	valueEqual func(a, b V) bool
	opts       options
	allocator  malloc.Allocator
	logger     *zap.Logger

	buckets   []bucket[K, V]
	dealloc   malloc.Deallocator
	size      int
	threshold int
	// occupied has the index of every non-empty bucket.
	occupied *roaring.Bitmap
	treeBins int
	resizes  int
	// modCount changes on every structural modification.
	modCount uint64
}

func New[K, V any](hasher Hasher[K], opts ...Option) (*Map[K, V], error) {
	if hasher == nil {
		return nil, moerr.NewInvalidArgNoCtx("hasher", "nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	m := &Map[K, V]{
		hasher:     hasher,
		keyEqual:   hasher.Equal,
		valueEqual: deepEqual[V],
		opts:       o,
		allocator:  o.getAllocator(),
		logger:     o.getLogger(),
		occupied:   roaring.New(),
	}
	if o.valueEqual != nil {
		eq, ok := o.valueEqual.(func(a, b V) bool)
		if !ok {
			return nil, moerr.NewInvalidArgNoCtx("value equal", fmt.Sprintf("%T", o.valueEqual))
		}
		m.valueEqual = eq
	}

	capacity := tableSizeFor(o.initialCapacity)
	buckets, dealloc, err := m.allocBuckets(capacity)
	if err != nil {
		return nil, err
	}
	m.buckets = buckets
	m.dealloc = dealloc
	m.threshold = thresholdFor(capacity, o.loadFactor)
	return m, nil
}

// NewComparable creates a Map hashing keys with a ComparableHasher.
func NewComparable[K comparable, V any](opts ...Option) (*Map[K, V], error) {
	return New[K, V](NewComparableHasher[K](), opts...)
}

func deepEqual[V any](a, b V) bool {
	return reflect.DeepEqual(a, b)
}

func (m *Map[K, V]) allocBuckets(capacity int) ([]bucket[K, V], malloc.Deallocator, error) {
	dealloc, err := m.allocator.Allocate(uint64(capacity) * BucketBytes[K, V]())
	if err != nil {
		return nil, nil, err
	}
	return make([]bucket[K, V], capacity), dealloc, nil
}

// hash calls the key hasher. It is the only place the hasher's Hash is
// called, and every operation calls it at most once.
func (m *Map[K, V]) hash(key K) uint64 {
	return spread(m.hasher.Hash(key))
}

func (m *Map[K, V]) freed() bool {
	return m.buckets == nil
}

func (m *Map[K, V]) errFreed() error {
	return moerr.NewInvalidStateNoCtx("map has been freed")
}

func (m *Map[K, V]) find(key K) *entry[K, V] {
	if m.freed() {
		return nil
	}
	h := m.hash(key)
	return m.buckets[compress(h, len(m.buckets))].find(h, key, m.keyEqual)
}

// Put maps key to value, replacing any previous value. The only error is
// a refused bucket allocation while growing, in which case the map is
// left as it was before the call.
func (m *Map[K, V]) Put(key K, value V) error {
	_, _, err := m.put(key, value, false)
	return err
}

// PutIfAbsent stores value only if key is absent. actual is the value
// mapped to key after the call, and loaded reports whether it was
// already present.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (actual V, loaded bool, err error) {
	old, loaded, err := m.put(key, value, true)
	switch {
	case err != nil:
		return actual, false, err
	case loaded:
		return old, true, nil
	}
	return value, false, nil
}

func (m *Map[K, V]) put(key K, value V, onlyIfAbsent bool) (old V, loaded bool, err error) {
	if m.freed() {
		return old, false, m.errFreed()
	}
	h := m.hash(key)
	if e := m.buckets[compress(h, len(m.buckets))].find(h, key, m.keyEqual); e != nil {
		old = e.value
		if !onlyIfAbsent {
			e.value = value
		}
		return old, true, nil
	}

	if m.size+1 > m.threshold {
		if err = m.resizeFor(m.size + 1); err != nil {
			return old, false, err
		}
	}

	idx := compress(h, len(m.buckets))
	b := &m.buckets[idx]
	b.insert(entry[K, V]{
		hash:  h,
		key:   key,
		value: value,
	})
	if b.len() == 1 {
		m.occupied.Add(uint32(idx))
	}
	m.size++
	m.modCount++
	m.treeifyOnDemand(idx)
	return old, false, nil
}

func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if e := m.find(key); e != nil {
		return e.value, true
	}
	return
}

func (m *Map[K, V]) GetOrDefault(key K, def V) V {
	if e := m.find(key); e != nil {
		return e.value
	}
	return def
}

func (m *Map[K, V]) ContainsKey(key K) bool {
	return m.find(key) != nil
}

// ContainsValue scans every entry.
func (m *Map[K, V]) ContainsValue(value V) bool {
	for _, v := range m.All() {
		if m.valueEqual(v, value) {
			return true
		}
	}
	return false
}

// Replace overwrites the value of key only if key is present.
func (m *Map[K, V]) Replace(key K, value V) (old V, replaced bool) {
	e := m.find(key)
	if e == nil {
		return
	}
	old = e.value
	e.value = value
	return old, true
}

// Remove unlinks key and returns the value it was mapped to. The bucket
// array never shrinks.
func (m *Map[K, V]) Remove(key K) (value V, ok bool) {
	if m.freed() {
		return
	}
	h := m.hash(key)
	idx := compress(h, len(m.buckets))
	e, ok := m.buckets[idx].remove(h, key, m.keyEqual)
	if !ok {
		return
	}
	m.afterRemove(idx)
	return e.value, true
}

// CompareAndRemove removes key only if it is mapped to a value equal to
// value.
func (m *Map[K, V]) CompareAndRemove(key K, value V) bool {
	if m.freed() {
		return false
	}
	h := m.hash(key)
	idx := compress(h, len(m.buckets))
	e := m.buckets[idx].find(h, key, m.keyEqual)
	if e == nil || !m.valueEqual(e.value, value) {
		return false
	}
	m.removeRef(idx, e)
	return true
}

func (m *Map[K, V]) removeRef(idx int, e *entry[K, V]) {
	if _, ok := m.buckets[idx].removeRef(e); ok {
		m.afterRemove(idx)
	}
}

func (m *Map[K, V]) afterRemove(idx int) {
	m.size--
	m.modCount++
	b := &m.buckets[idx]
	if b.tree != nil && b.len() <= m.opts.untreeifyThreshold {
		b.untreeify()
		m.treeBins--
		m.logger.Debug("bucket untreeified",
			zap.Int("bucket", idx),
			zap.Int("entries", b.len()),
		)
	}
	if b.len() == 0 {
		b.reset()
		m.occupied.Remove(uint32(idx))
	}
}

func (m *Map[K, V]) treeifyOnDemand(idx int) {
	if !m.opts.treeifyEnabled() {
		return
	}
	b := &m.buckets[idx]
	if b.tree != nil || b.len() < m.opts.treeifyThreshold {
		return
	}
	if len(m.buckets) < m.opts.minTreeifyCapacity {
		// a larger table splits the chain instead
		if err := m.grow(len(m.buckets) * 2); err != nil {
			m.logger.Warn("keep long chain, grow refused",
				zap.Int("bucket", idx),
				zap.Int("entries", b.len()),
				zap.Error(err),
			)
		}
		return
	}
	b.treeify()
	m.treeBins++
	m.logger.Debug("bucket treeified",
		zap.Int("bucket", idx),
		zap.Int("entries", b.len()),
	)
}

// resizeFor doubles the capacity until minSize entries fit under the
// threshold, or the capacity reaches MaximumCapacity.
func (m *Map[K, V]) resizeFor(minSize int) error {
	newCap := len(m.buckets)
	for newCap < MaximumCapacity && thresholdFor(newCap, m.opts.loadFactor) < minSize {
		newCap <<= 1
	}
	return m.grow(newCap)
}

// grow moves every entry into a new bucket array of newCap buckets. The
// new array is accounted before anything moves, so a refusal leaves the
// map untouched.
func (m *Map[K, V]) grow(newCap int) error {
	oldCap := len(m.buckets)
	if newCap <= oldCap {
		return nil
	}
	buckets, dealloc, err := m.allocBuckets(newCap)
	if err != nil {
		m.logger.Warn("bucket array allocation refused",
			zap.Int("capacity", oldCap),
			zap.Int("new-capacity", newCap),
			zap.Error(err),
		)
		return err
	}

	occupied := roaring.New()
	treeBins := 0
	factor := newCap / oldCap
	it := m.occupied.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		src := &m.buckets[i]
		fromTree := src.tree != nil
		src.each(func(e *entry[K, V]) bool {
			dst := &buckets[compress(e.hash, newCap)]
			dst.entries = append(dst.entries, *e)
			return true
		})
		// entries of bucket i can only land in buckets i + k*oldCap
		for k := 0; k < factor; k++ {
			j := i + k*oldCap
			dst := &buckets[j]
			if len(dst.entries) == 0 {
				continue
			}
			occupied.Add(uint32(j))
			if m.keepTree(len(dst.entries), newCap, fromTree) {
				dst.treeify()
				treeBins++
			}
		}
		src.reset()
	}

	m.dealloc.Deallocate()
	m.buckets = buckets
	m.dealloc = dealloc
	m.occupied = occupied
	m.treeBins = treeBins
	m.threshold = thresholdFor(newCap, m.opts.loadFactor)
	m.resizes++
	m.modCount++

	m.logger.Debug("hashtable resized",
		zap.Int("from", oldCap),
		zap.Int("to", newCap),
		zap.Int("size", m.size),
		zap.Int("tree-bins", treeBins),
	)
	return nil
}

func (m *Map[K, V]) keepTree(n, capacity int, fromTree bool) bool {
	if !m.opts.treeifyEnabled() || capacity < m.opts.minTreeifyCapacity {
		return false
	}
	if n >= m.opts.treeifyThreshold {
		return true
	}
	return fromTree && n > m.opts.untreeifyThreshold
}

func (m *Map[K, V]) Len() int {
	return m.size
}

func (m *Map[K, V]) Capacity() int {
	return len(m.buckets)
}

func (m *Map[K, V]) LoadFactor() float64 {
	return m.opts.loadFactor
}

// Threshold is the size above which the next insert grows the table.
func (m *Map[K, V]) Threshold() int {
	return m.threshold
}

// Range calls fn for each entry until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for k, v := range m.All() {
		if !fn(k, v) {
			return
		}
	}
}

// Clear removes all entries and keeps the capacity.
func (m *Map[K, V]) Clear() {
	it := m.occupied.Iterator()
	for it.HasNext() {
		m.buckets[it.Next()].reset()
	}
	m.occupied.Clear()
	m.size = 0
	m.treeBins = 0
	m.modCount++
}

// Free releases the bucket array. Put and Clone fail on a freed map,
// lookups find nothing.
func (m *Map[K, V]) Free() {
	if m.freed() {
		return
	}
	m.Clear()
	m.dealloc.Deallocate()
	m.buckets = nil
	m.dealloc = nil
	m.threshold = 0
}

// Clone returns an independent copy with the same options. Keys and
// values are copied shallowly.
func (m *Map[K, V]) Clone() (*Map[K, V], error) {
	if m.freed() {
		return nil, m.errFreed()
	}
	buckets, dealloc, err := m.allocBuckets(len(m.buckets))
	if err != nil {
		return nil, err
	}
	it := m.occupied.Iterator()
	for it.HasNext() {
		i := it.Next()
		buckets[i] = m.buckets[i].clone()
	}
	return &Map[K, V]{
		hasher:     m.hasher,
		keyEqual:   m.keyEqual,
		valueEqual: m.valueEqual,
		opts:       m.opts,
		allocator:  m.allocator,
		logger:     m.logger,
		buckets:    buckets,
		dealloc:    dealloc,
		size:       m.size,
		threshold:  m.threshold,
		occupied:   m.occupied.Clone(),
		treeBins:   m.treeBins,
		resizes:    m.resizes,
	}, nil
}
