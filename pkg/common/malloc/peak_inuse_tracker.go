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

package malloc

import (
	"sync/atomic"
	"time"
)

// PeakInuse is the largest number of bytes that was in use through a
// PeakInuseTracker, and when it was reached.
type PeakInuse struct {
	Bytes uint64
	Time  time.Time
}

// PeakInuseTracker forwards to upstream and records the high water mark of
// the bytes in use through it.
type PeakInuseTracker[U Allocator] struct {
	upstream U
	inuse    atomic.Uint64
	ptr      atomic.Pointer[PeakInuse]
}

var _ Allocator = new(PeakInuseTracker[Allocator])

func NewPeakInuseTracker[U Allocator](upstream U) *PeakInuseTracker[U] {
	ret := &PeakInuseTracker[U]{
		upstream: upstream,
	}
	ret.ptr.Store(&PeakInuse{})
	return ret
}

func (p *PeakInuseTracker[U]) Allocate(size uint64) (Deallocator, error) {
	dec, err := p.upstream.Allocate(size)
	if err != nil {
		return nil, err
	}
	p.update(p.inuse.Add(size))
	return ChainDeallocator(
		dec,
		DeallocatorFunc(func() {
			p.inuse.Add(-size)
		}),
	), nil
}

func (p *PeakInuseTracker[U]) update(n uint64) {
	for {
		// read
		ptr := p.ptr.Load()
		if n <= ptr.Bytes {
			return
		}
		// update
		if p.ptr.CompareAndSwap(ptr, &PeakInuse{
			Bytes: n,
			Time:  time.Now(),
		}) {
			return
		}
	}
}

func (p *PeakInuseTracker[U]) InuseBytes() uint64 {
	return p.inuse.Load()
}

func (p *PeakInuseTracker[U]) Peak() PeakInuse {
	return *p.ptr.Load()
}
