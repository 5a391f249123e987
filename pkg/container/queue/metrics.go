// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	opAllocate       = "allocate"
	opAllocateFailed = "allocate_failed"
	opDeallocate     = "deallocate"
	opConstruct      = "construct"
	opDestroy        = "destroy"
)

var (
	chunkOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkq",
			Subsystem: "allocator",
			Name:      "chunk_operations_total",
			Help:      "The number of chunk allocations and deallocations.",
		}, []string{"name", "op"})
	elementOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkq",
			Subsystem: "allocator",
			Name:      "element_operations_total",
			Help:      "The number of elements constructed and destroyed in chunks.",
		}, []string{"name", "op"})
	liveChunksGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chunkq",
			Subsystem: "allocator",
			Name:      "live_chunks",
			Help:      "The number of chunks allocated and not yet deallocated.",
		}, []string{"name"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(chunkOperationCounter)
	registry.MustRegister(elementOperationCounter)
	registry.MustRegister(liveChunksGauge)
}
