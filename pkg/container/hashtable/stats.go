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
	"go.uber.org/zap/zapcore"
)

type Stats struct {
	Size            int
	Capacity        int
	Threshold       int
	Resizes         int
	NonEmptyBuckets int
	LongestChain    int
	TreeBins        int
}

var _ zapcore.ObjectMarshaler = Stats{}

// Stats walks the non-empty buckets only.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Size:            m.size,
		Capacity:        len(m.buckets),
		Threshold:       m.threshold,
		Resizes:         m.resizes,
		NonEmptyBuckets: int(m.occupied.GetCardinality()),
		TreeBins:        m.treeBins,
	}
	it := m.occupied.Iterator()
	for it.HasNext() {
		if n := m.buckets[it.Next()].len(); n > s.LongestChain {
			s.LongestChain = n
		}
	}
	return s
}

// MeanChainLength is the average number of entries of a non-empty bucket.
func (s Stats) MeanChainLength() float64 {
	if s.NonEmptyBuckets == 0 {
		return 0
	}
	return float64(s.Size) / float64(s.NonEmptyBuckets)
}

func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("size", s.Size)
	enc.AddInt("capacity", s.Capacity)
	enc.AddInt("threshold", s.Threshold)
	enc.AddInt("resizes", s.Resizes)
	enc.AddInt("non-empty-buckets", s.NonEmptyBuckets)
	enc.AddInt("longest-chain", s.LongestChain)
	enc.AddInt("tree-bins", s.TreeBins)
	enc.AddFloat64("mean-chain", s.MeanChainLength())
	return nil
}
