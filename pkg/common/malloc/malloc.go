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

// Package malloc accounts the memory of typed Go allocations.
//
// Containers still allocate with make, because their cells hold Go
// pointers. What goes through an Allocator is the size of each
// allocation, so that a budget can refuse it before make runs and so
// that in-use bytes can be reported.
package malloc

import (
	"sync/atomic"
)

type Allocator interface {
	// Allocate accounts size bytes. On success the returned Deallocator
	// must be called exactly once when the memory is dropped.
	Allocate(size uint64) (Deallocator, error)
}

type Deallocator interface {
	Deallocate()
}

type DeallocatorFunc func()

func (f DeallocatorFunc) Deallocate() {
	f()
}

var noopDeallocator = DeallocatorFunc(func() {})

type chainDeallocator []Deallocator

func (c chainDeallocator) Deallocate() {
	for _, d := range c {
		d.Deallocate()
	}
}

// ChainDeallocator returns a Deallocator calling each non-nil one in order.
func ChainDeallocator(dels ...Deallocator) Deallocator {
	var ret chainDeallocator
	for _, d := range dels {
		if d == nil {
			continue
		}
		ret = append(ret, d)
	}
	switch len(ret) {
	case 0:
		return noopDeallocator
	case 1:
		return ret[0]
	}
	return ret
}

// GoAllocator never refuses. It keeps counters only.
type GoAllocator struct {
	numAlloc   atomic.Int64
	numFree    atomic.Int64
	inuseBytes atomic.Int64
}

var _ Allocator = new(GoAllocator)

var defaultAllocator = new(GoAllocator)

// DefaultAllocator returns the process wide GoAllocator.
func DefaultAllocator() Allocator {
	return defaultAllocator
}

func NewGoAllocator() *GoAllocator {
	return new(GoAllocator)
}

func (g *GoAllocator) Allocate(size uint64) (Deallocator, error) {
	g.numAlloc.Add(1)
	g.inuseBytes.Add(int64(size))
	var freed atomic.Bool
	return DeallocatorFunc(func() {
		if !freed.CompareAndSwap(false, true) {
			panic("double free")
		}
		g.numFree.Add(1)
		g.inuseBytes.Add(-int64(size))
	}), nil
}

func (g *GoAllocator) InuseBytes() int64 {
	return g.inuseBytes.Load()
}

func (g *GoAllocator) NumAlloc() int64 {
	return g.numAlloc.Load()
}

func (g *GoAllocator) NumFree() int64 {
	return g.numFree.Load()
}
