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

package main

import (
	"encoding/binary"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
	"github.com/matrixorigin/chainmap/pkg/config"
	"github.com/matrixorigin/chainmap/pkg/container/hashtable"
)

// collideBuckets is the number of distinct hashes int keys get when the
// workload asks for collisions.
const collideBuckets = 8

// Result is what one table reports once its workload is done.
type Result struct {
	Table    int
	Stats    hashtable.Stats
	Distinct uint64
	Removed  int
	Elapsed  time.Duration
}

type workload[K any] struct {
	keys     []K
	hasher   hashtable.Hasher[K]
	keyBytes func(K) []byte
}

func intKeys(n int) []int64 {
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i)
	}
	return keys
}

func intWorkload(p *config.BenchParameters) workload[int64] {
	w := workload[int64]{
		keys:   intKeys(p.Keys),
		hasher: hashtable.IntHasher[int64]{},
		keyBytes: func(k int64) []byte {
			return binary.LittleEndian.AppendUint64(nil, uint64(k))
		},
	}
	if p.Collide {
		w.hasher = hashtable.HasherFunc[int64]{
			HashFunc:  func(k int64) uint64 { return uint64(k % collideBuckets) },
			EqualFunc: func(a, b int64) bool { return a == b },
		}
	}
	return w
}

func uuidWorkload(p *config.BenchParameters) workload[string] {
	keys := make([]string, p.Keys)
	for i := range keys {
		keys[i] = uuid.NewString()
	}
	return workload[string]{
		keys:   keys,
		hasher: hashtable.StringHasher{},
		keyBytes: func(k string) []byte {
			return []byte(k)
		},
	}
}

type opsCounter struct {
	put, get, remove prometheus.Counter
}

func newOpsCounter(reg prometheus.Registerer) opsCounter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainmap",
		Subsystem: "bench",
		Name:      "operations_total",
		Help:      "Table operations issued by the bench.",
	}, []string{"op"})
	if reg != nil {
		reg.MustRegister(vec)
	}
	return opsCounter{
		put:    vec.WithLabelValues("put"),
		get:    vec.WithLabelValues("get"),
		remove: vec.WithLabelValues("remove"),
	}
}

// run puts every key, reads them back, removes a share of them and checks
// that exactly the removed ones are gone.
func (w workload[K]) run(
	id int,
	table *config.TableParameters,
	removeRatio float64,
	allocator malloc.Allocator,
	ops opsCounter,
) (Result, error) {
	start := time.Now()
	res := Result{Table: id}

	m, err := hashtable.New[K, int](w.hasher, table.Options(allocator)...)
	if err != nil {
		return res, err
	}
	defer m.Free()

	sketch := hyperloglog.New16()
	for i, k := range w.keys {
		if err := m.Put(k, i); err != nil {
			return res, err
		}
		sketch.Insert(w.keyBytes(k))
	}
	ops.put.Add(float64(len(w.keys)))

	for i, k := range w.keys {
		v, ok := m.Get(k)
		if !ok || v != i {
			return res, moerr.NewInternalErrorNoCtx("table %d: key %v maps to %d, %v", id, k, v, ok)
		}
	}
	ops.get.Add(float64(len(w.keys)))

	res.Removed = int(float64(len(w.keys)) * removeRatio)
	for _, k := range w.keys[:res.Removed] {
		if _, ok := m.Remove(k); !ok {
			return res, moerr.NewInternalErrorNoCtx("table %d: remove of %v missed", id, k)
		}
	}
	ops.remove.Add(float64(res.Removed))

	for i, k := range w.keys {
		if m.ContainsKey(k) != (i >= res.Removed) {
			return res, moerr.NewInternalErrorNoCtx("table %d: key %v has the wrong presence", id, k)
		}
	}
	ops.get.Add(float64(len(w.keys)))
	if want := len(w.keys) - res.Removed; m.Len() != want {
		return res, moerr.NewInternalErrorNoCtx("table %d: %d entries, want %d", id, m.Len(), want)
	}

	res.Stats = m.Stats()
	res.Distinct = sketch.Estimate()
	res.Elapsed = time.Since(start)
	return res, nil
}
