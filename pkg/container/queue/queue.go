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

// Package queue implements a FIFO queue stored in fixed-capacity chunks.
package queue

import (
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DefaultChunkCapacity is the number of elements stored in every chunk when
// no capacity is configured.
const DefaultChunkCapacity = 128

// Queue is a FIFO queue backed by a directory of fixed-capacity chunks.
// Growing the queue appends one chunk and never moves stored elements, so a
// pointer returned by Front or Back stays valid until that element is popped.
// Attention, it's not thread-safe.
type Queue[T any] struct {
	tracker

	dir       directory[T]
	allocator Allocator[T]
	copyFn    func(T) T
}

// Option configures a Queue.
type Option[T any] func(q *Queue[T])

// WithChunkCapacity sets the number of elements stored in every chunk.
func WithChunkCapacity[T any](capacity int) Option[T] {
	return func(q *Queue[T]) {
		q.capacity = capacity
	}
}

// WithAllocator sets the allocator the queue gets its chunks from and
// constructs its elements with.
func WithAllocator[T any](alloc Allocator[T]) Option[T] {
	return func(q *Queue[T]) {
		q.allocator = alloc
	}
}

// WithCopyFunc sets how elements are copied by Clone and Assign. By default
// an element is copied by assignment.
func WithCopyFunc[T any](copyFn func(T) T) Option[T] {
	return func(q *Queue[T]) {
		q.copyFn = copyFn
	}
}

// New creates an empty Queue. No chunk is allocated until the first push.
func New[T any](opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{
		tracker: tracker{capacity: DefaultChunkCapacity},
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.capacity <= 0 {
		log.Warn("invalid chunk capacity, use the default one",
			zap.Int("capacity", q.capacity),
			zap.Int("default", DefaultChunkCapacity))
		q.capacity = DefaultChunkCapacity
	}
	if q.allocator == nil {
		q.allocator = NewHeapAllocator[T]()
	}
	if q.copyFn == nil {
		q.copyFn = assign[T]
	}
	return q
}

func assign[T any](v T) T {
	return v
}

// Size returns the number of elements in queue
func (q *Queue[T]) Size() int {
	return q.size
}

// Empty indicates whether the queue is empty
func (q *Queue[T]) Empty() bool {
	return q.size == 0
}

// ChunkCount returns the number of chunks owned by the queue.
func (q *Queue[T]) ChunkCount() int {
	return q.chunkCount
}

// ChunkCapacity returns the number of elements every chunk can hold.
func (q *Queue[T]) ChunkCapacity() int {
	return q.capacity
}

// Cap returns the number of elements the queue can hold without allocating
// another chunk.
func (q *Queue[T]) Cap() int {
	return q.chunkCount*q.capacity - q.frontOffset
}

// Allocator returns the allocator of the queue.
func (q *Queue[T]) Allocator() Allocator[T] {
	return q.allocator
}

// Push appends a copy of v at the back of the queue.
func (q *Queue[T]) Push(v T) error {
	return q.Emplace(func(slot *T) {
		*slot = v
	})
}

// Emplace constructs a new element in place at the back of the queue. init
// receives a pointer to the slot of the new element. If a chunk has to be
// allocated and the allocation fails, the queue is left unchanged.
func (q *Queue[T]) Emplace(init func(slot *T)) error {
	if q.newChunkNeeded() {
		if err := q.appendChunk(); err != nil {
			return errors.Trace(err)
		}
	}
	if q.dir.len() != q.chunkCount || q.backOffset >= q.capacity {
		q.invariantViolated("no free slot in the back chunk")
	}

	q.allocator.Construct(q.dir.back().slot(q.backOffset), init)
	q.size++
	q.backOffset++
	return nil
}

// Pop removes the front element. It does nothing on an empty queue.
func (q *Queue[T]) Pop() {
	if q.size == 0 {
		return
	}

	q.allocator.Destroy(q.dir.front().slot(q.frontOffset))
	q.frontOffset++
	q.size--

	if q.frontConsumed() {
		q.retireFrontChunk()
	}
}

// Front returns the oldest element. It fails with ErrEmptyContainer if the
// queue is empty.
func (q *Queue[T]) Front() (*T, error) {
	if q.size == 0 {
		return nil, cerror.ErrEmptyContainer.GenWithStackByArgs("front")
	}
	return q.dir.front().slot(q.frontOffset), nil
}

// Back returns the newest element. It fails with ErrEmptyContainer if the
// queue is empty.
func (q *Queue[T]) Back() (*T, error) {
	if q.size == 0 {
		return nil, cerror.ErrEmptyContainer.GenWithStackByArgs("back")
	}
	i, slot := q.backPosition()
	if i < 0 {
		q.invariantViolated("back offset is 0 in the only chunk of a non-empty queue")
	}
	return q.dir.at(i).slot(slot), nil
}

// Clone returns an independent copy of the queue. The copy shares the
// allocator and copy function but owns fresh chunks, and only live elements
// are copied into them. If an allocation fails, no chunk is leaked and the
// error is returned.
func (q *Queue[T]) Clone() (*Queue[T], error) {
	cloned := &Queue[T]{
		tracker:   tracker{capacity: q.capacity},
		allocator: q.allocator,
		copyFn:    q.copyFn,
	}
	if err := cloned.cloneChunksFrom(q); err != nil {
		return nil, errors.Trace(err)
	}
	return cloned, nil
}

// Release destroys every element and gives every chunk back to the
// allocator. The queue is empty afterwards and can be used again.
func (q *Queue[T]) Release() {
	q.releaseChunks()
}

// Swap exchanges the contents of two queues without touching any element.
func (q *Queue[T]) Swap(other *Queue[T]) {
	*q, *other = *other, *q
}

// Move transfers the chunks of q to a new queue and returns it. q becomes
// empty and owns no chunk.
func (q *Queue[T]) Move() *Queue[T] {
	moved := &Queue[T]{}
	*moved = *q
	q.tracker = tracker{capacity: q.capacity}
	q.dir = directory[T]{}
	return moved
}

// Flush pops every element.
func (q *Queue[T]) Flush() {
	for !q.Empty() {
		q.Pop()
	}
}

// Assign replaces the elements of q with copies of the elements of src.
// q keeps its own allocator and chunk capacity. If an allocation fails, q
// holds the elements copied so far and the error is returned.
func (q *Queue[T]) Assign(src *Queue[T]) error {
	if q == src {
		return nil
	}
	q.Flush()

	it := src.cursor()
	for v, ok := it.next(); ok; v, ok = it.next() {
		if err := q.Push(q.copyFn(*v)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// cursor walks the live elements from front to back.
type cursor[T any] struct {
	q         *Queue[T]
	chunkIdx  int
	slot      int
	remaining int
}

func (q *Queue[T]) cursor() *cursor[T] {
	return &cursor[T]{
		q:         q,
		slot:      q.frontOffset,
		remaining: q.size,
	}
}

func (c *cursor[T]) next() (*T, bool) {
	if c.remaining == 0 {
		return nil, false
	}
	if c.slot == c.q.capacity {
		c.chunkIdx++
		c.slot = 0
	}
	v := c.q.dir.at(c.chunkIdx).slot(c.slot)
	c.slot++
	c.remaining--
	return v, true
}

// Equal reports whether a and b hold the same elements in the same order.
// The chunk layout of the two queues does not matter.
func Equal[T any](a, b *Queue[T], eq func(x, y T) bool) bool {
	if a.Size() != b.Size() {
		return false
	}
	ia, ib := a.cursor(), b.cursor()
	for {
		va, ok := ia.next()
		if !ok {
			return true
		}
		vb, _ := ib.next()
		if !eq(*va, *vb) {
			return false
		}
	}
}

// EqualComparable is Equal for comparable element types.
func EqualComparable[T comparable](a, b *Queue[T]) bool {
	return Equal(a, b, func(x, y T) bool {
		return x == y
	})
}
