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
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// AllocatorStats is a snapshot of the counters of an InstrumentedAllocator.
type AllocatorStats struct {
	Allocated        int64
	AllocationFailed int64
	Deallocated      int64
	Constructed      int64
	Destroyed        int64
}

// LiveChunks returns the number of blocks not yet given back.
func (s AllocatorStats) LiveChunks() int64 {
	return s.Allocated - s.Deallocated
}

// LiveElements returns the number of elements not yet destroyed.
func (s AllocatorStats) LiveElements() int64 {
	return s.Constructed - s.Destroyed
}

// InstrumentedAllocator decorates an Allocator with counters. The counters
// are exported as prometheus metrics labelled by name, and can be read back
// through Stats.
type InstrumentedAllocator[T any] struct {
	inner Allocator[T]
	name  string

	allocated        atomic.Int64
	allocationFailed atomic.Int64
	deallocated      atomic.Int64
	constructed      atomic.Int64
	destroyed        atomic.Int64

	allocateCounter       prometheus.Counter
	allocateFailedCounter prometheus.Counter
	deallocateCounter     prometheus.Counter
	constructCounter      prometheus.Counter
	destroyCounter        prometheus.Counter
	liveChunks            prometheus.Gauge
}

// NewInstrumentedAllocator wraps inner and reports its activity under name.
func NewInstrumentedAllocator[T any](inner Allocator[T], name string) *InstrumentedAllocator[T] {
	return &InstrumentedAllocator[T]{
		inner:                 inner,
		name:                  name,
		allocateCounter:       chunkOperationCounter.WithLabelValues(name, opAllocate),
		allocateFailedCounter: chunkOperationCounter.WithLabelValues(name, opAllocateFailed),
		deallocateCounter:     chunkOperationCounter.WithLabelValues(name, opDeallocate),
		constructCounter:      elementOperationCounter.WithLabelValues(name, opConstruct),
		destroyCounter:        elementOperationCounter.WithLabelValues(name, opDestroy),
		liveChunks:            liveChunksGauge.WithLabelValues(name),
	}
}

// Name returns the metrics label of the allocator.
func (a *InstrumentedAllocator[T]) Name() string {
	return a.name
}

// Allocate implements Allocator.
func (a *InstrumentedAllocator[T]) Allocate(n int) ([]T, error) {
	block, err := a.inner.Allocate(n)
	if err != nil {
		a.allocationFailed.Inc()
		a.allocateFailedCounter.Inc()
		return nil, err
	}
	a.allocated.Inc()
	a.allocateCounter.Inc()
	a.liveChunks.Inc()
	return block, nil
}

// Deallocate implements Allocator.
func (a *InstrumentedAllocator[T]) Deallocate(block []T) {
	a.inner.Deallocate(block)
	a.deallocated.Inc()
	a.deallocateCounter.Inc()
	a.liveChunks.Dec()
}

// Construct implements Allocator.
func (a *InstrumentedAllocator[T]) Construct(slot *T, init func(*T)) {
	a.inner.Construct(slot, init)
	a.constructed.Inc()
	a.constructCounter.Inc()
}

// Destroy implements Allocator.
func (a *InstrumentedAllocator[T]) Destroy(slot *T) {
	a.inner.Destroy(slot)
	a.destroyed.Inc()
	a.destroyCounter.Inc()
}

// Stats returns a snapshot of the counters.
func (a *InstrumentedAllocator[T]) Stats() AllocatorStats {
	return AllocatorStats{
		Allocated:        a.allocated.Load(),
		AllocationFailed: a.allocationFailed.Load(),
		Deallocated:      a.deallocated.Load(),
		Constructed:      a.constructed.Load(),
		Destroyed:        a.destroyed.Load(),
	}
}

// Close removes the metrics of the allocator. The allocator keeps working
// but stops being visible in the registry.
func (a *InstrumentedAllocator[T]) Close() {
	stats := a.Stats()
	if stats.LiveChunks() != 0 {
		log.Warn("instrumented allocator closed with live chunks",
			zap.String("name", a.name),
			zap.Int64("liveChunks", stats.LiveChunks()))
	}
	for _, op := range []string{opAllocate, opAllocateFailed, opDeallocate} {
		chunkOperationCounter.DeleteLabelValues(a.name, op)
	}
	for _, op := range []string{opConstruct, opDestroy} {
		elementOperationCounter.DeleteLabelValues(a.name, op)
	}
	liveChunksGauge.DeleteLabelValues(a.name)
}
