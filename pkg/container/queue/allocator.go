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
	"sync"

	"github.com/pingcap/errors"
)

// Allocator is the memory policy of a Queue. It hands out blocks of slots,
// takes them back, and constructs or destroys single elements inside them.
// A Queue never touches a slot except through its allocator.
type Allocator[T any] interface {
	// Allocate returns a block of exactly n slots, none of them constructed.
	Allocate(n int) ([]T, error)
	// Deallocate takes back a block returned by Allocate. Every slot of the
	// block has been destroyed or was never constructed.
	Deallocate(block []T)
	// Construct builds an element in place. init receives the slot.
	Construct(slot *T, init func(*T))
	// Destroy tears down a constructed element.
	Destroy(slot *T)
}

// HeapAllocator allocates blocks from the Go heap.
type HeapAllocator[T any] struct{}

// NewHeapAllocator creates a HeapAllocator.
func NewHeapAllocator[T any]() *HeapAllocator[T] {
	return &HeapAllocator[T]{}
}

// Allocate implements Allocator.
func (a *HeapAllocator[T]) Allocate(n int) ([]T, error) {
	if n <= 0 {
		return nil, errors.Errorf("invalid block length %d", n)
	}
	return make([]T, n), nil
}

// Deallocate implements Allocator. The block is left to the garbage collector.
func (a *HeapAllocator[T]) Deallocate(block []T) {}

// Construct implements Allocator.
func (a *HeapAllocator[T]) Construct(slot *T, init func(*T)) {
	init(slot)
}

// Destroy implements Allocator. The slot is reset to the zero value so the
// element can be garbage collected.
func (a *HeapAllocator[T]) Destroy(slot *T) {
	var zero T
	*slot = zero
}

// PoolAllocator recycles blocks of one fixed length through a sync.Pool.
// Requests for any other length are served from the heap.
// It is safe to share a PoolAllocator between queues.
type PoolAllocator[T any] struct {
	HeapAllocator[T]

	blockLen int
	pool     sync.Pool
}

// NewPoolAllocator creates a PoolAllocator for blocks of blockLen slots.
func NewPoolAllocator[T any](blockLen int) *PoolAllocator[T] {
	a := &PoolAllocator[T]{blockLen: blockLen}
	a.pool = sync.Pool{
		New: func() any {
			block := make([]T, a.blockLen)
			return &block
		},
	}
	return a
}

// BlockLen returns the length of the pooled blocks.
func (a *PoolAllocator[T]) BlockLen() int {
	return a.blockLen
}

// Allocate implements Allocator.
func (a *PoolAllocator[T]) Allocate(n int) ([]T, error) {
	if n != a.blockLen {
		return a.HeapAllocator.Allocate(n)
	}
	return *a.pool.Get().(*[]T), nil
}

// Deallocate implements Allocator. Returned blocks only hold destroyed
// slots, so they go back to the pool without being cleared again.
func (a *PoolAllocator[T]) Deallocate(block []T) {
	if len(block) != a.blockLen || cap(block) != a.blockLen {
		return
	}
	a.pool.Put(&block)
}
