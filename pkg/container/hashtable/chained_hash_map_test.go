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
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
)

func newTestMap[K comparable, V any](t *testing.T, opts ...Option) *Map[K, V] {
	m, err := NewComparable[K, V](opts...)
	require.NoError(t, err)
	return m
}

// identityHasher uses the key as the hash. Below 1<<16 the bucket of k
// is k mod capacity.
func identityHasher() Hasher[int] {
	return HasherFunc[int]{
		HashFunc:  func(k int) uint64 { return uint64(k) },
		EqualFunc: func(a, b int) bool { return a == b },
	}
}

// constHasher sends every key to the same bucket with the same hash.
func constHasher() Hasher[int] {
	return HasherFunc[int]{
		HashFunc:  func(int) uint64 { return 7 },
		EqualFunc: func(a, b int) bool { return a == b },
	}
}

func TestNewDefaults(t *testing.T) {
	m := newTestMap[string, int](t)
	require.Equal(t, 0, m.Len())
	require.Equal(t, DefaultInitialCapacity, m.Capacity())
	require.Equal(t, DefaultLoadFactor, m.LoadFactor())
	require.Equal(t, 12, m.Threshold())
}

func TestNewRoundsCapacity(t *testing.T) {
	for _, c := range []struct {
		in, want int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{16, 16},
		{17, 32},
		{1000, 1024},
	} {
		m := newTestMap[int, int](t, WithInitialCapacity(c.in))
		require.Equal(t, c.want, m.Capacity(), "initial capacity %d", c.in)
	}
	require.Equal(t, MaximumCapacity, tableSizeFor(MaximumCapacity+1))
	require.Equal(t, MaximumCapacity, tableSizeFor(math.MaxInt))
	require.Equal(t, math.MaxInt, thresholdFor(MaximumCapacity, 0.75))
}

func TestNewBadConfig(t *testing.T) {
	for i, opts := range [][]Option{
		{WithInitialCapacity(0)},
		{WithInitialCapacity(-1)},
		{WithLoadFactor(0)},
		{WithLoadFactor(-0.5)},
		{WithLoadFactor(1.5)},
		{WithLoadFactor(math.NaN())},
		{WithLoadFactor(math.Inf(1))},
		{WithTreeify(1, 0, 64)},
		{WithTreeify(-8, 6, 64)},
		{WithTreeify(8, 8, 64)},
		{WithTreeify(8, 0, 64)},
		{WithTreeify(8, 6, 0)},
		{WithTreeify(8, 6, MaximumCapacity+1)},
		{WithTreeify(8, 6, math.MaxInt)},
	} {
		_, err := NewComparable[int, int](opts...)
		require.Error(t, err, "case %d", i)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), "case %d: %v", i, err)
	}

	// the boundaries are valid
	newTestMap[int, int](t, WithLoadFactor(1))
	newTestMap[int, int](t, WithLoadFactor(math.SmallestNonzeroFloat64))
	newTestMap[int, int](t, WithTreeify(DefaultTreeifyThreshold, DefaultUntreeifyThreshold, DefaultMinTreeifyCapacity))
	newTestMap[int, int](t, WithTreeify(DefaultTreeifyThreshold, DefaultUntreeifyThreshold, MaximumCapacity))
}

func TestNewInvalidArg(t *testing.T) {
	_, err := New[int, int](nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = NewComparable[int, int](WithValueEqual(func(a, b string) bool { return a == b }))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestResizeAtThreshold(t *testing.T) {
	m := newTestMap[int, string](t)
	for i := 0; i < 12; i++ {
		require.NoError(t, m.Put(i, strconv.Itoa(i)))
	}
	require.Equal(t, 16, m.Capacity())
	require.Equal(t, 0, m.Stats().Resizes)

	require.NoError(t, m.Put(12, "12"))
	require.Equal(t, 13, m.Len())
	require.Equal(t, 32, m.Capacity())
	require.Equal(t, 24, m.Threshold())
	require.Equal(t, 1, m.Stats().Resizes)

	require.NoError(t, m.Put(13, "13"))
	require.Equal(t, 32, m.Capacity())
	require.Equal(t, 1, m.Stats().Resizes)

	for i := 0; i < 14; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), v)
	}
}

func TestResizeKeepsBucketInvariant(t *testing.T) {
	m, err := New[int, int](identityHasher(), WithInitialCapacity(4))
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Put(i, i*i))
	}
	require.Equal(t, 2048, m.Capacity())
	require.LessOrEqual(t, m.Len(), m.Threshold())
	for i := range m.buckets {
		m.buckets[i].each(func(e *entry[int, int]) bool {
			require.Equal(t, i, compress(e.hash, m.Capacity()))
			return true
		})
	}
	for i := 0; i < 1000; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}
}

func TestTinyLoadFactor(t *testing.T) {
	m := newTestMap[int, int](t, WithInitialCapacity(1), WithLoadFactor(0.3))
	require.Equal(t, 0, m.Threshold())
	require.NoError(t, m.Put(1, 1))
	require.Equal(t, 4, m.Capacity())
	require.Equal(t, 1, m.Threshold())
	require.Equal(t, 1, m.Stats().Resizes)
	require.LessOrEqual(t, m.Len(), m.Threshold())
}

func TestOverwrite(t *testing.T) {
	m := newTestMap[string, int](t)
	require.NoError(t, m.Put("cat", 1))
	require.NoError(t, m.Put("cat", 2))
	v, ok := m.Get("cat")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, m.Len())
}

func TestNilValueIsNotAbsent(t *testing.T) {
	m := newTestMap[string, *int](t)
	require.NoError(t, m.Put("a", nil))

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Nil(t, v)
	require.True(t, m.ContainsKey("a"))
	require.True(t, m.ContainsValue(nil))

	v, ok = m.Get("b")
	require.False(t, ok)
	require.Nil(t, v)
	require.False(t, m.ContainsKey("b"))
}

func TestRemove(t *testing.T) {
	m := newTestMap[string, int](t)
	_, ok := m.Remove("nothing")
	require.False(t, ok)

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(fmt.Sprintf("k%d", i), i))
	}
	capacity := m.Capacity()
	for i := 0; i < 100; i += 2 {
		v, ok := m.Remove(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 50, m.Len())
	require.Equal(t, capacity, m.Capacity())
	for i := 0; i < 100; i++ {
		require.Equal(t, i%2 == 1, m.ContainsKey(fmt.Sprintf("k%d", i)))
	}

	_, ok = m.Remove("k0")
	require.False(t, ok)
	require.Equal(t, 50, m.Len())
}

func TestCollidingKeys(t *testing.T) {
	m, err := New[int, string](constHasher())
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(i, strconv.Itoa(i)))
	}
	s := m.Stats()
	require.Equal(t, 100, s.LongestChain)
	require.Equal(t, 1, s.NonEmptyBuckets)
	require.Equal(t, float64(100), s.MeanChainLength())

	for i := 0; i < 100; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), v)
	}
	for i := 0; i < 100; i += 3 {
		_, ok := m.Remove(i)
		require.True(t, ok)
	}
	for i := 0; i < 100; i++ {
		require.Equal(t, i%3 != 0, m.ContainsKey(i))
	}
}

func TestNegativeHash(t *testing.T) {
	m, err := New[int, int](HasherFunc[int]{
		HashFunc:  func(k int) uint64 { return uint64(int64(-k - 1)) },
		EqualFunc: func(a, b int) bool { return a == b },
	})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, m.Put(i, -i))
	}
	for i := 0; i < 50; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, -i, v)
	}
}

func TestPutIfAbsent(t *testing.T) {
	m := newTestMap[string, int](t)
	actual, loaded, err := m.PutIfAbsent("a", 1)
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, 1, actual)

	actual, loaded, err = m.PutIfAbsent("a", 2)
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, 1, actual)
	require.Equal(t, 1, m.GetOrDefault("a", 0))
}

func TestReplaceAndGetOrDefault(t *testing.T) {
	m := newTestMap[string, int](t)
	_, replaced := m.Replace("a", 1)
	require.False(t, replaced)
	require.False(t, m.ContainsKey("a"))
	require.Equal(t, -1, m.GetOrDefault("a", -1))

	require.NoError(t, m.Put("a", 1))
	old, replaced := m.Replace("a", 2)
	require.True(t, replaced)
	require.Equal(t, 1, old)
	require.Equal(t, 2, m.GetOrDefault("a", -1))
}

func TestCompareAndRemove(t *testing.T) {
	m := newTestMap[string, []int](t)
	require.NoError(t, m.Put("a", []int{1, 2}))
	require.False(t, m.CompareAndRemove("a", []int{1}))
	require.False(t, m.CompareAndRemove("b", []int{1, 2}))
	require.True(t, m.CompareAndRemove("a", []int{1, 2}))
	require.Equal(t, 0, m.Len())
}

func TestValueEqual(t *testing.T) {
	type rec struct {
		id   int
		note string
	}
	m := newTestMap[int, rec](t, WithValueEqual(func(a, b rec) bool {
		return a.id == b.id
	}))
	require.NoError(t, m.Put(1, rec{id: 10, note: "x"}))
	require.True(t, m.ContainsValue(rec{id: 10}))
	require.False(t, m.ContainsValue(rec{id: 11}))
	require.True(t, m.CompareAndRemove(1, rec{id: 10, note: "y"}))
}

func TestRange(t *testing.T) {
	m := newTestMap[int, int](t)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Put(i, i))
	}
	n := 0
	m.Range(func(k, v int) bool {
		n++
		return n < 3
	})
	require.Equal(t, 3, n)

	sum := 0
	m.Range(func(k, v int) bool {
		sum += v
		return true
	})
	require.Equal(t, 45, sum)
}

func TestClear(t *testing.T) {
	m := newTestMap[int, int](t)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(i, i))
	}
	capacity := m.Capacity()
	m.Clear()
	require.Equal(t, 0, m.Len())
	require.Equal(t, capacity, m.Capacity())
	require.Equal(t, 0, m.Stats().NonEmptyBuckets)
	require.False(t, m.ContainsKey(1))

	require.NoError(t, m.Put(1, 1))
	require.Equal(t, 1, m.Len())
}

func TestFree(t *testing.T) {
	a := malloc.NewGoAllocator()
	m := newTestMap[int, int](t, WithAllocator(a))
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(i, i))
	}
	require.Equal(t, int64(m.Capacity())*int64(BucketBytes[int, int]()), a.InuseBytes())

	m.Free()
	m.Free()
	require.Equal(t, int64(0), a.InuseBytes())
	require.Equal(t, 0, m.Len())
	require.Equal(t, 0, m.Capacity())
	require.False(t, m.ContainsKey(1))
	_, ok := m.Remove(1)
	require.False(t, ok)

	err := m.Put(1, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	_, err = m.Clone()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	for range m.All() {
		t.Fatal("unexpected entry in a freed map")
	}
}

func TestClone(t *testing.T) {
	m := newTestMap[string, int](t)
	for i := 0; i < 50; i++ {
		require.NoError(t, m.Put(strconv.Itoa(i), i))
	}
	c, err := m.Clone()
	require.NoError(t, err)
	require.Equal(t, m.Len(), c.Len())
	require.Equal(t, m.Capacity(), c.Capacity())
	require.Equal(t, 3, c.Stats().Resizes)
	require.Equal(t, m.Stats(), c.Stats())

	require.NoError(t, c.Put("new", -1))
	c.Remove("0")
	require.NoError(t, m.Put("1", 100))

	require.False(t, m.ContainsKey("new"))
	require.True(t, m.ContainsKey("0"))
	v, _ := c.Get("1")
	require.Equal(t, 1, v)
}

func TestResizeIsAtomicOnRefusal(t *testing.T) {
	bs := BucketBytes[int, int]()
	// room for the initial array only
	limit := malloc.NewLimitAllocator(malloc.NewGoAllocator(), 16*bs)
	m := newTestMap[int, int](t, WithAllocator(limit))
	for i := 0; i < 12; i++ {
		require.NoError(t, m.Put(i, i))
	}

	err := m.Put(12, 12)
	require.Error(t, err)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	require.Equal(t, 12, m.Len())
	require.Equal(t, 16, m.Capacity())
	require.False(t, m.ContainsKey(12))
	for i := 0; i < 12; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 16*bs, limit.InuseBytes())

	// overwriting never grows
	require.NoError(t, m.Put(3, 33))

	// the old array is released after the new one is populated, so
	// both must fit
	limit2 := malloc.NewLimitAllocator(malloc.NewGoAllocator(), 48*bs)
	m2 := newTestMap[int, int](t, WithAllocator(limit2))
	for i := 0; i < 13; i++ {
		require.NoError(t, m2.Put(i, i))
	}
	require.Equal(t, 32, m2.Capacity())
	require.Equal(t, 32*bs, limit2.InuseBytes())
}

func TestNewRefused(t *testing.T) {
	limit := malloc.NewLimitAllocator(malloc.NewGoAllocator(), 1)
	_, err := NewComparable[int, int](WithAllocator(limit))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
}
