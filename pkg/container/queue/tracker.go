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
	"fmt"

	"go.uber.org/zap/zapcore"
)

// tracker holds the boundary indices of a queue.
//
// With a single chunk the live slots are [frontOffset, backOffset). With more
// chunks the front chunk holds [frontOffset, capacity), every interior chunk
// is full and the back chunk holds [0, backOffset).
type tracker struct {
	// capacity is the number of slots of every chunk
	capacity int

	// size is the number of live elements
	size int
	// frontOffset is the slot of the oldest element in the front chunk
	frontOffset int
	// backOffset is one past the slot of the newest element in the back chunk
	backOffset int
	// chunkCount is the number of chunks in the directory
	chunkCount int
}

func (t *tracker) newChunkNeeded() bool {
	return t.chunkCount == 0 || t.backOffset == t.capacity
}

func (t *tracker) frontConsumed() bool {
	return t.frontOffset == t.capacity
}

// liveRange returns the live slots [l, r) of the i-th chunk.
func (t *tracker) liveRange(i int) (int, int) {
	l, r := 0, t.capacity
	if i == 0 {
		l = t.frontOffset
	}
	if i == t.chunkCount-1 {
		r = t.backOffset
	}
	return l, r
}

// backPosition returns the chunk index and slot of the newest element.
// Nothing is constructed in the back chunk when backOffset is 0, so the
// newest element is the last slot of the chunk before it.
func (t *tracker) backPosition() (int, int) {
	if t.backOffset == 0 {
		return t.chunkCount - 2, t.capacity - 1
	}
	return t.chunkCount - 1, t.backOffset - 1
}

// violation returns a description of the first broken invariant, or an empty
// string if the indices are consistent.
func (t *tracker) violation() string {
	switch {
	case t.capacity <= 0:
		return fmt.Sprintf("chunk capacity %d is not positive", t.capacity)
	case t.size < 0 || t.chunkCount < 0:
		return "negative size or chunk count"
	case t.frontOffset < 0 || t.frontOffset > t.capacity:
		return fmt.Sprintf("front offset %d out of [0, %d]", t.frontOffset, t.capacity)
	case t.backOffset < 0 || t.backOffset > t.capacity:
		return fmt.Sprintf("back offset %d out of [0, %d]", t.backOffset, t.capacity)
	}

	switch t.chunkCount {
	case 0:
		if t.size != 0 || t.frontOffset != 0 || t.backOffset != 0 {
			return "elements tracked without any chunk"
		}
	case 1:
		if t.frontOffset > t.backOffset {
			return "front offset is behind back offset in the only chunk"
		}
		if t.size != t.backOffset-t.frontOffset {
			return fmt.Sprintf("size %d does not match live slots [%d, %d)",
				t.size, t.frontOffset, t.backOffset)
		}
	default:
		expected := t.capacity - t.frontOffset + (t.chunkCount-2)*t.capacity + t.backOffset
		if t.size != expected {
			return fmt.Sprintf("size %d does not match %d live slots in %d chunks",
				t.size, expected, t.chunkCount)
		}
	}
	return ""
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (t tracker) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("capacity", t.capacity)
	enc.AddInt("size", t.size)
	enc.AddInt("frontOffset", t.frontOffset)
	enc.AddInt("backOffset", t.backOffset)
	enc.AddInt("chunkCount", t.chunkCount)
	return nil
}
