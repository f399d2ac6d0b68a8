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

	"github.com/matrixorigin/chainmap/pkg/common/moerr"
)

// LimitAllocator refuses an allocation with ErrOOM when the bytes in use
// through it would exceed limit.
type LimitAllocator[U Allocator] struct {
	upstream U
	limit    uint64
	inuse    atomic.Uint64
}

var _ Allocator = new(LimitAllocator[Allocator])

func NewLimitAllocator[U Allocator](upstream U, limit uint64) *LimitAllocator[U] {
	return &LimitAllocator[U]{
		upstream: upstream,
		limit:    limit,
	}
}

func (l *LimitAllocator[U]) Allocate(size uint64) (Deallocator, error) {
	for {
		cur := l.inuse.Load()
		if cur+size < cur || cur+size > l.limit {
			return nil, moerr.NewOOMNoCtx()
		}
		if l.inuse.CompareAndSwap(cur, cur+size) {
			break
		}
	}

	dec, err := l.upstream.Allocate(size)
	if err != nil {
		l.inuse.Add(-size)
		return nil, err
	}

	return ChainDeallocator(
		dec,
		DeallocatorFunc(func() {
			l.inuse.Add(-size)
		}),
	), nil
}

func (l *LimitAllocator[U]) InuseBytes() uint64 {
	return l.inuse.Load()
}
