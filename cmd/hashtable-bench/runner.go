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
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
	"github.com/matrixorigin/chainmap/pkg/config"
	"github.com/matrixorigin/chainmap/pkg/logutil"
)

const poolReleaseTimeout = 5 * time.Second

// newAllocator builds the allocator shared by all tables of a run.
var newAllocator = func(reg prometheus.Registerer) malloc.Allocator {
	return malloc.NewMetricsAllocator(
		malloc.NewGoAllocator(),
		malloc.NewAllocatorMetrics(reg, "chainmap", "bench"),
	)
}

// Report is the outcome of a whole run.
type Report struct {
	// Results is ordered by table.
	Results []Result
	// Peak is the high water mark of bucket array bytes held by all
	// tables together.
	Peak malloc.PeakInuse
}

// Run builds cfg.Bench.Tables tables, each driven by its own pool task.
// Every worker has exited when Run returns.
func Run(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Report, error) {
	logger := logutil.GetGlobalLogger().Named("bench")
	tracker := malloc.NewPeakInuseTracker(newAllocator(reg))
	allocator := malloc.Allocator(tracker)
	ops := newOpsCounter(reg)

	var (
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	pool, err := ants.NewPool(cfg.Bench.Workers)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
			logger.Error("release worker pool", zap.Error(err))
		}
	}()

	var runOne func(id int) (Result, error)
	switch cfg.Bench.KeyKind {
	case config.KeyKindUUID:
		w := uuidWorkload(&cfg.Bench)
		runOne = func(id int) (Result, error) {
			return w.run(id, &cfg.Table, cfg.Bench.RemoveRatio, allocator, ops)
		}
	default:
		w := intWorkload(&cfg.Bench)
		runOne = func(id int) (Result, error) {
			return w.run(id, &cfg.Table, cfg.Bench.RemoveRatio, allocator, ops)
		}
	}

	results := make([]Result, cfg.Bench.Tables)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Bench.Tables; i++ {
		if err := ctx.Err(); err != nil {
			setErr(err)
			break
		}
		id := i
		wg.Add(1)
		err := pool.Submit(func() {
			// the error must be set before Done, Run reads it after Wait
			defer func() {
				if r := recover(); r != nil {
					err := moerr.ConvertPanicError(ctx, r)
					logger.Error("table workload panicked",
						zap.Int("table", id),
						zap.String("error", err.Display()),
					)
					setErr(err)
				}
				wg.Done()
			}()
			res, err := runOne(id)
			if err != nil {
				logger.Error("table workload failed", zap.Int("table", id), zap.Error(err))
				setErr(err)
				return
			}
			results[id] = res
			logger.Info("table workload done",
				zap.Int("table", id),
				zap.Object("stats", res.Stats),
				zap.Uint64("distinct-keys", res.Distinct),
				zap.Int("removed", res.Removed),
				zap.Duration("elapsed", res.Elapsed),
			)
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}
	wg.Wait()

	mu.Lock()
	err = firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &Report{
		Results: results,
		Peak:    tracker.Peak(),
	}, nil
}
