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
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"go.uber.org/atomic"
)

// LimitedAllocator caps the number of blocks that may be outstanding at the
// same time, which models a bounded arena. Allocations beyond the budget fail
// with ErrChunkBudgetExhausted.
type LimitedAllocator[T any] struct {
	inner     Allocator[T]
	maxBlocks int64
	inUse     atomic.Int64
}

// NewLimitedAllocator wraps inner with a budget of maxBlocks blocks.
func NewLimitedAllocator[T any](inner Allocator[T], maxBlocks int) *LimitedAllocator[T] {
	return &LimitedAllocator[T]{
		inner:     inner,
		maxBlocks: int64(maxBlocks),
	}
}

// InUse returns the number of blocks currently handed out.
func (a *LimitedAllocator[T]) InUse() int {
	return int(a.inUse.Load())
}

// Allocate implements Allocator.
func (a *LimitedAllocator[T]) Allocate(n int) ([]T, error) {
	if a.inUse.Inc() > a.maxBlocks {
		a.inUse.Dec()
		return nil, cerror.ErrChunkBudgetExhausted.GenWithStackByArgs(a.maxBlocks)
	}
	block, err := a.inner.Allocate(n)
	if err != nil {
		a.inUse.Dec()
		return nil, err
	}
	return block, nil
}

// Deallocate implements Allocator.
func (a *LimitedAllocator[T]) Deallocate(block []T) {
	a.inUse.Dec()
	a.inner.Deallocate(block)
}

// Construct implements Allocator.
func (a *LimitedAllocator[T]) Construct(slot *T, init func(*T)) {
	a.inner.Construct(slot, init)
}

// Destroy implements Allocator.
func (a *LimitedAllocator[T]) Destroy(slot *T) {
	a.inner.Destroy(slot)
}
