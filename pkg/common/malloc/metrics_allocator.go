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
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsAllocator[U Allocator] struct {
	upstream U

	allocateBytesCounter   prometheus.Counter
	inuseBytesGauge        prometheus.Gauge
	allocateObjectsCounter prometheus.Counter
	inuseObjectsGauge      prometheus.Gauge
	refusedCounter         prometheus.Counter
}

// AllocatorMetrics are the collectors a MetricsAllocator reports to.
// Nil members are skipped.
type AllocatorMetrics struct {
	AllocateBytes   prometheus.Counter
	InuseBytes      prometheus.Gauge
	AllocateObjects prometheus.Counter
	InuseObjects    prometheus.Gauge
	Refused         prometheus.Counter
}

// NewAllocatorMetrics creates the collectors under namespace and registers
// them with reg.
func NewAllocatorMetrics(reg prometheus.Registerer, namespace, subsystem string) AllocatorMetrics {
	m := AllocatorMetrics{
		AllocateBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocate_bytes_total",
			Help:      "Bytes accounted by the allocator.",
		}),
		InuseBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inuse_bytes",
			Help:      "Bytes accounted and not yet deallocated.",
		}),
		AllocateObjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocate_objects_total",
			Help:      "Allocations accounted by the allocator.",
		}),
		InuseObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inuse_objects",
			Help:      "Allocations not yet deallocated.",
		}),
		Refused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "refused_total",
			Help:      "Allocations refused by the upstream allocator.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.AllocateBytes,
			m.InuseBytes,
			m.AllocateObjects,
			m.InuseObjects,
			m.Refused,
		)
	}
	return m
}

func NewMetricsAllocator[U Allocator](
	upstream U,
	metrics AllocatorMetrics,
) *MetricsAllocator[U] {
	return &MetricsAllocator[U]{
		upstream:               upstream,
		allocateBytesCounter:   metrics.AllocateBytes,
		inuseBytesGauge:        metrics.InuseBytes,
		allocateObjectsCounter: metrics.AllocateObjects,
		inuseObjectsGauge:      metrics.InuseObjects,
		refusedCounter:         metrics.Refused,
	}
}

var _ Allocator = new(MetricsAllocator[Allocator])

func (m *MetricsAllocator[U]) Allocate(size uint64) (Deallocator, error) {
	dec, err := m.upstream.Allocate(size)
	if err != nil {
		if m.refusedCounter != nil {
			m.refusedCounter.Inc()
		}
		return nil, err
	}
	if m.allocateBytesCounter != nil {
		m.allocateBytesCounter.Add(float64(size))
	}
	if m.inuseBytesGauge != nil {
		m.inuseBytesGauge.Add(float64(size))
	}
	if m.allocateObjectsCounter != nil {
		m.allocateObjectsCounter.Inc()
	}
	if m.inuseObjectsGauge != nil {
		m.inuseObjectsGauge.Inc()
	}

	return ChainDeallocator(
		dec,
		DeallocatorFunc(func() {
			if m.inuseBytesGauge != nil {
				m.inuseBytesGauge.Sub(float64(size))
			}
			if m.inuseObjectsGauge != nil {
				m.inuseObjectsGauge.Dec()
			}
		}),
	), nil
}
