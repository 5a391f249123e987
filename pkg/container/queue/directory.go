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
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// directory is the ordered table of chunks, index 0 is the front chunk.
type directory[T any] struct {
	chunks []*chunk[T]
}

func (d *directory[T]) len() int {
	return len(d.chunks)
}

func (d *directory[T]) at(i int) *chunk[T] {
	return d.chunks[i]
}

func (d *directory[T]) front() *chunk[T] {
	return d.chunks[0]
}

func (d *directory[T]) back() *chunk[T] {
	return d.chunks[len(d.chunks)-1]
}

func (d *directory[T]) pushBack(c *chunk[T]) {
	d.chunks = append(d.chunks, c)
}

// popFront removes the front chunk and shifts the remaining ones left. The
// table keeps its backing array.
func (d *directory[T]) popFront() *chunk[T] {
	c := d.chunks[0]
	n := copy(d.chunks, d.chunks[1:])
	d.chunks[n] = nil
	d.chunks = d.chunks[:n]
	return c
}

func (d *directory[T]) reset() {
	d.chunks = nil
}

// allocateChunk gets a block of capacity slots from the allocator.
func (q *Queue[T]) allocateChunk() (*chunk[T], error) {
	failpoint.Inject("AllocateChunkFailed", func() {
		failpoint.Return(nil, cerror.ErrAllocationFailure.GenWithStackByArgs(q.capacity))
	})

	data, err := q.allocator.Allocate(q.capacity)
	if err == nil && len(data) != q.capacity {
		err = errors.Errorf("allocator returned %d slots", len(data))
	}
	if err != nil {
		log.Warn("allocate chunk failed",
			zap.Object("tracker", q.tracker), zap.Error(err))
		return nil, cerror.WrapError(cerror.ErrAllocationFailure, err, q.capacity)
	}
	return newChunk(data), nil
}

// appendChunk adds an empty chunk behind the back chunk. It must only be
// called when no chunk exists or the back chunk is full. The queue is left
// untouched if the allocation fails.
func (q *Queue[T]) appendChunk() error {
	if !q.newChunkNeeded() {
		q.invariantViolated("chunk appended before the back chunk is full")
	}
	c, err := q.allocateChunk()
	if err != nil {
		return err
	}
	q.dir.pushBack(c)
	q.chunkCount++
	q.backOffset = 0
	return nil
}

// retireFrontChunk drops the fully consumed front chunk. The only chunk of
// the queue is kept and its offsets are reset instead, so alternating
// push/pop at a chunk boundary does not allocate.
func (q *Queue[T]) retireFrontChunk() {
	if !q.frontConsumed() {
		q.invariantViolated("front chunk retired before it is consumed")
	}
	if q.chunkCount == 0 || q.dir.len() != q.chunkCount {
		q.invariantViolated("chunk table does not match chunk count")
	}

	if q.chunkCount == 1 {
		if q.backOffset != q.capacity || q.size != 0 {
			q.invariantViolated("only chunk consumed while elements remain")
		}
		q.frontOffset = 0
		q.backOffset = 0
		return
	}

	c := q.dir.popFront()
	q.allocator.Deallocate(c.data)
	q.chunkCount--
	q.frontOffset = 0
}

// cloneChunksFrom gives q a copy of the chunks of src. Every chunk is
// allocated before any element is copied. If an allocation fails, the chunks
// already allocated are given back and q is left unchanged.
func (q *Queue[T]) cloneChunksFrom(src *Queue[T]) error {
	if src.dir.len() != src.chunkCount {
		src.invariantViolated("chunk table does not match chunk count")
	}

	chunks := make([]*chunk[T], 0, src.chunkCount)
	for i := 0; i < src.chunkCount; i++ {
		c, err := q.allocateChunk()
		if err != nil {
			for _, allocated := range chunks {
				q.allocator.Deallocate(allocated.data)
			}
			return errors.Trace(err)
		}
		chunks = append(chunks, c)
	}

	for i, c := range chunks {
		l, r := src.liveRange(i)
		c.copyRange(q.allocator, src.dir.at(i), l, r, q.copyFn)
	}
	q.dir.chunks = chunks
	q.tracker = src.tracker
	return nil
}

// releaseChunks destroys every live element and gives every chunk back to
// the allocator.
func (q *Queue[T]) releaseChunks() {
	if q.dir.len() != q.chunkCount {
		q.invariantViolated("chunk table does not match chunk count")
	}
	for i := 0; i < q.chunkCount; i++ {
		c := q.dir.at(i)
		l, r := q.liveRange(i)
		c.destroyRange(q.allocator, l, r)
		q.allocator.Deallocate(c.data)
	}
	q.dir.reset()
	q.tracker = tracker{capacity: q.capacity}
}

func (q *Queue[T]) invariantViolated(reason string) {
	log.Panic("queue invariant violated",
		zap.Error(cerror.ErrInternalInvariant.GenWithStackByArgs(reason)),
		zap.Object("tracker", q.tracker),
		zap.Int("directoryLen", q.dir.len()))
}
