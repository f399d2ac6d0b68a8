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
	"math"

	"go.uber.org/zap"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
	"github.com/matrixorigin/chainmap/pkg/logutil"
)

const (
	DefaultInitialCapacity = 16
	DefaultLoadFactor      = 0.75
	MaximumCapacity        = 1 << 30

	// Conventional values for WithTreeify.
	DefaultTreeifyThreshold   = 8
	DefaultUntreeifyThreshold = 6
	DefaultMinTreeifyCapacity = 64
)

type Option func(*options)

type options struct {
	initialCapacity    int
	loadFactor         float64
	treeifyThreshold   int
	untreeifyThreshold int
	minTreeifyCapacity int
	allocator          malloc.Allocator
	valueEqual         any
	logger             *zap.Logger
}

func defaultOptions() options {
	return options{
		initialCapacity: DefaultInitialCapacity,
		loadFactor:      DefaultLoadFactor,
	}
}

// WithInitialCapacity sets the number of buckets to start with. It is
// rounded up to a power of two and clamped to MaximumCapacity.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithLoadFactor sets the ratio of entries to buckets above which the
// table doubles. It must be in (0, 1].
func WithLoadFactor(f float64) Option {
	return func(o *options) {
		o.loadFactor = f
	}
}

// WithTreeify turns chains of at least threshold entries into ordered
// trees once the table has minCapacity buckets, and turns trees of at
// most untreeify entries back into chains. A threshold of 0 disables it.
func WithTreeify(threshold, untreeify, minCapacity int) Option {
	return func(o *options) {
		o.treeifyThreshold = threshold
		o.untreeifyThreshold = untreeify
		o.minTreeifyCapacity = minCapacity
	}
}

// WithAllocator accounts bucket arrays through a.
func WithAllocator(a malloc.Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithValueEqual sets the predicate used by ContainsValue and
// CompareAndRemove. V must match the value type of the map.
func WithValueEqual[V any](eq func(a, b V) bool) Option {
	return func(o *options) {
		o.valueEqual = eq
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// CheckOptions returns the configuration error New would fail with.
func CheckOptions(opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o.validate()
}

func (o *options) validate() error {
	if o.initialCapacity <= 0 {
		return moerr.NewBadConfigNoCtx("initial capacity %d must be positive", o.initialCapacity)
	}
	if math.IsNaN(o.loadFactor) || o.loadFactor <= 0 || o.loadFactor > 1 {
		return moerr.NewBadConfigNoCtx("load factor %v must be in (0, 1]", o.loadFactor)
	}
	if o.treeifyThreshold != 0 {
		if o.treeifyThreshold < 2 {
			return moerr.NewBadConfigNoCtx("treeify threshold %d must be at least 2", o.treeifyThreshold)
		}
		if o.untreeifyThreshold <= 0 || o.untreeifyThreshold >= o.treeifyThreshold {
			return moerr.NewBadConfigNoCtx("untreeify threshold %d must be in (0, %d)",
				o.untreeifyThreshold, o.treeifyThreshold)
		}
		if o.minTreeifyCapacity <= 0 || o.minTreeifyCapacity > MaximumCapacity {
			return moerr.NewBadConfigNoCtx("min treeify capacity %d must be in (0, %d]",
				o.minTreeifyCapacity, MaximumCapacity)
		}
	}
	return nil
}

func (o *options) treeifyEnabled() bool {
	return o.treeifyThreshold > 0
}

func (o *options) getAllocator() malloc.Allocator {
	if o.allocator == nil {
		return malloc.DefaultAllocator()
	}
	return o.allocator
}

func (o *options) getLogger() *zap.Logger {
	if o.logger == nil {
		return logutil.GetGlobalLogger().Named("hashtable")
	}
	return o.logger
}

// tableSizeFor returns the smallest power of two >= n, clamped to
// MaximumCapacity.
func tableSizeFor(n int) int {
	if n >= MaximumCapacity {
		return MaximumCapacity
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func thresholdFor(capacity int, loadFactor float64) int {
	if capacity >= MaximumCapacity {
		return math.MaxInt
	}
	return int(float64(capacity) * loadFactor)
}
