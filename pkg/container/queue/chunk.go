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

// chunk is a block of slots handed out by the allocator. Only the live range
// recorded by the tracker holds constructed elements.
type chunk[T any] struct {
	data []T
}

func newChunk[T any](data []T) *chunk[T] {
	return &chunk[T]{data: data}
}

func (c *chunk[T]) slot(i int) *T {
	return &c.data[i]
}

// destroyRange destroys the elements in [l, r).
func (c *chunk[T]) destroyRange(alloc Allocator[T], l, r int) {
	for i := l; i < r; i++ {
		alloc.Destroy(&c.data[i])
	}
}

// copyRange copy-constructs the elements [l, r) of src into the same slots
// of c.
func (c *chunk[T]) copyRange(alloc Allocator[T], src *chunk[T], l, r int, copyFn func(T) T) {
	for i := l; i < r; i++ {
		v := copyFn(src.data[i])
		alloc.Construct(&c.data[i], func(slot *T) {
			*slot = v
		})
	}
}
