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
	"bytes"
	"hash/maphash"
	"math/bits"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Hasher supplies the hash and the equality of a key type. Keys that are
// Equal must have the same Hash.
type Hasher[K any] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

var hashkey [4]uint64

func init() {
	hashkey[0] = rand.Uint64()
	hashkey[1] = rand.Uint64()
	hashkey[2] = rand.Uint64()
	hashkey[3] = rand.Uint64()
}

const (
	m1 = 0xa0761d6478bd642f
	m2 = 0xe7037ed1a0b428db
	m5 = 0x1d8e4e27c47d124f
)

func mix(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi ^ lo
}

func wyhash64(x uint64) uint64 {
	return mix(m5^8, mix(x^m2, x^hashkey[1]^hashkey[0]^m1))
}

// spread folds the high bits of h into the low ones, which are the only
// bits compress looks at while the table is small.
func spread(h uint64) uint64 {
	return h ^ h>>32 ^ h>>16
}

// compress maps a hash to a bucket index. capacity is a power of two.
func compress(h uint64, capacity int) int {
	return int(h & uint64(capacity-1))
}

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IntHasher hashes integers with a seeded multiply-mix.
type IntHasher[K integer] struct{}

func (IntHasher[K]) Hash(key K) uint64 {
	return wyhash64(uint64(key))
}

func (IntHasher[K]) Equal(a, b K) bool {
	return a == b
}

type StringHasher struct{}

func (StringHasher) Hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (StringHasher) Equal(a, b string) bool {
	return a == b
}

type BytesHasher struct{}

func (BytesHasher) Hash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (BytesHasher) Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// ComparableHasher works for any comparable key. The seed is chosen when
// the hasher is created, so hashes are not stable across processes.
type ComparableHasher[K comparable] struct {
	seed maphash.Seed
}

func NewComparableHasher[K comparable]() ComparableHasher[K] {
	return ComparableHasher[K]{seed: maphash.MakeSeed()}
}

func (c ComparableHasher[K]) Hash(key K) uint64 {
	return maphash.Comparable(c.seed, key)
}

func (ComparableHasher[K]) Equal(a, b K) bool {
	return a == b
}

// HasherFunc builds a Hasher from two functions.
type HasherFunc[K any] struct {
	HashFunc  func(K) uint64
	EqualFunc func(a, b K) bool
}

func (f HasherFunc[K]) Hash(key K) uint64 {
	return f.HashFunc(key)
}

func (f HasherFunc[K]) Equal(a, b K) bool {
	return f.EqualFunc(a, b)
}
