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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testCaseSize = 10007
)

// drain pops every element and returns them in order.
func drain[T any](t *testing.T, q *Queue[T]) []T {
	res := make([]T, 0, q.Size())
	for !q.Empty() {
		v, err := q.Front()
		require.NoError(t, err)
		res = append(res, *v)
		q.Pop()
	}
	return res
}

// snapshot returns the elements in order without modifying the queue.
func snapshot[T any](q *Queue[T]) []T {
	res := make([]T, 0, q.Size())
	it := q.cursor()
	for v, ok := it.next(); ok; v, ok = it.next() {
		res = append(res, *v)
	}
	return res
}

func requireConsistent[T any](t *testing.T, q *Queue[T]) {
	require.Empty(t, q.violation(), "tracker %+v", q.tracker)
	require.Equal(t, q.chunkCount, q.dir.len())
	require.Less(t, q.frontOffset, q.capacity)
}

func TestChunkQueueCommon(t *testing.T) {
	t.Parallel()

	q := New[int]()
	require.Equal(t, DefaultChunkCapacity, q.ChunkCapacity())
	require.True(t, q.Empty())
	require.Equal(t, 0, q.ChunkCount())

	require.NoError(t, q.Push(10))
	require.Equal(t, 1, q.Size())
	v, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, 10, *v)
	q.Pop()
	require.True(t, q.Empty())

	for i := 0; i < testCaseSize; i++ {
		require.NoError(t, q.Push(i))
		require.Equal(t, i+1, q.Size())
		back, err := q.Back()
		require.NoError(t, err)
		require.Equal(t, i, *back)
	}
	requireConsistent(t, q)
	require.Equal(t, (testCaseSize+DefaultChunkCapacity-1)/DefaultChunkCapacity, q.ChunkCount())

	for i := 0; i < testCaseSize; i++ {
		h, err := q.Front()
		require.NoError(t, err)
		require.Equal(t, i, *h)
		q.Pop()
		requireConsistent(t, q)
	}
	require.True(t, q.Empty())
	require.Equal(t, 1, q.ChunkCount())
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{1, 2, 3, 4, 16, 128} {
		q := New(WithChunkCapacity[string](capacity))
		expected := make([]string, 0, 100)
		for i := 0; i < 100; i++ {
			v := fmt.Sprintf("value-%d", i)
			expected = append(expected, v)
			require.NoError(t, q.Push(v))
		}
		require.Equal(t, expected, drain(t, q), "capacity %d", capacity)
	}
}

func TestSizeInvariant(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](5))
	model := make([]int, 0)
	next := 0
	for i := 0; i < testCaseSize; i++ {
		if rand.Intn(3) == 0 {
			q.Pop()
			if len(model) > 0 {
				model = model[1:]
			}
		} else {
			require.NoError(t, q.Push(next))
			model = append(model, next)
			next++
		}
		require.Equal(t, len(model), q.Size())
		requireConsistent(t, q)
	}
	require.Equal(t, model, snapshot(q))
}

func TestChunkBoundaryCrossing(t *testing.T) {
	t.Parallel()

	alloc := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer alloc.Close()
	q := New(WithChunkCapacity[int](4), WithAllocator[int](alloc))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
		front, err := q.Front()
		require.NoError(t, err)
		require.Equal(t, 0, *front)
		if i < 4 {
			require.Equal(t, 1, q.ChunkCount())
		}
	}
	require.Equal(t, 2, q.ChunkCount())
	require.Equal(t, int64(2), alloc.Stats().Allocated)

	for i := 0; i < 4; i++ {
		require.Equal(t, int64(0), alloc.Stats().Deallocated)
		require.Equal(t, 2, q.ChunkCount())
		q.Pop()
	}
	// The first chunk is retired by the 4th pop, exactly once.
	require.Equal(t, int64(1), alloc.Stats().Deallocated)
	require.Equal(t, 1, q.ChunkCount())
	require.Equal(t, 1, q.Size())
	front, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, 4, *front)

	q.Pop()
	require.True(t, q.Empty())
	require.Equal(t, int64(1), alloc.Stats().Deallocated)
	requireConsistent(t, q)
}

func TestEndToEndScenario(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](2))
	require.Equal(t, 0, q.ChunkCount())

	chunkCounts := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Push(i))
		chunkCounts = append(chunkCounts, q.ChunkCount())
	}
	require.Equal(t, []int{1, 1, 2, 2, 3}, chunkCounts)

	q.Pop()
	require.Equal(t, 3, q.ChunkCount())
	q.Pop()
	require.Equal(t, 2, q.ChunkCount())
	front, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, 3, *front)

	// The back chunk only holds 5, so 6 fits without a new chunk.
	require.NoError(t, q.Push(6))
	require.Equal(t, 2, q.ChunkCount())
	back, err := q.Back()
	require.NoError(t, err)
	require.Equal(t, 6, *back)
	require.Equal(t, []int{3, 4, 5, 6}, drain(t, q))
}

func TestEmptyQueueContract(t *testing.T) {
	t.Parallel()

	q := New[int]()
	_, err := q.Front()
	require.True(t, cerror.Is(err, cerror.ErrEmptyContainer), err)
	_, err = q.Back()
	require.True(t, cerror.Is(err, cerror.ErrEmptyContainer), err)

	q.Pop()
	q.Pop()
	require.Equal(t, 0, q.Size())
	require.True(t, q.Empty())
	requireConsistent(t, q)

	// Drained queues behave the same way.
	require.NoError(t, q.Push(1))
	q.Pop()
	q.Pop()
	_, err = q.Front()
	require.True(t, cerror.Is(err, cerror.ErrEmptyContainer))
	require.Equal(t, 0, q.Size())
}

func TestBackAfterChunkAppend(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](3))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(i))
	}
	// The back chunk is full, the next push appends a chunk.
	require.Equal(t, 3, q.backOffset)
	back, err := q.Back()
	require.NoError(t, err)
	require.Equal(t, 2, *back)

	// Nothing constructed in the back chunk yet.
	require.NoError(t, q.appendChunk())
	require.Equal(t, 0, q.backOffset)
	back, err = q.Back()
	require.NoError(t, err)
	require.Equal(t, 2, *back)

	require.NoError(t, q.Push(3))
	back, err = q.Back()
	require.NoError(t, err)
	require.Equal(t, 3, *back)
	require.Equal(t, []int{0, 1, 2, 3}, drain(t, q))
}

func TestReferencesStableOnGrowth(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](4))
	require.NoError(t, q.Push(42))
	first, err := q.Front()
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Push(i))
	}
	front, err := q.Front()
	require.NoError(t, err)
	require.Same(t, first, front)

	*front = 43
	v, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, 43, *v)
}

func TestEmplace(t *testing.T) {
	t.Parallel()

	type Person struct {
		no   int
		name string
		tags []string
	}

	q := New(WithChunkCapacity[Person](2))
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Emplace(func(p *Person) {
			p.no = i
			p.name = fmt.Sprintf("test-name-%d", i)
			p.tags = append(p.tags, "emplaced")
		}))
	}
	for i := 0; i < 5; i++ {
		p, err := q.Front()
		require.NoError(t, err)
		require.Equal(t, i, p.no)
		require.Equal(t, fmt.Sprintf("test-name-%d", i), p.name)
		require.Equal(t, []string{"emplaced"}, p.tags)
		q.Pop()
	}
}

func TestSingleChunkResetInPlace(t *testing.T) {
	t.Parallel()

	alloc := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer alloc.Close()
	q := New(WithChunkCapacity[int](2), WithAllocator[int](alloc))

	for round := 0; round < 10; round++ {
		require.NoError(t, q.Push(round))
		require.NoError(t, q.Push(round))
		q.Pop()
		q.Pop()
		require.Equal(t, 1, q.ChunkCount())
		require.Equal(t, 0, q.frontOffset)
		require.Equal(t, 0, q.backOffset)
	}
	// The only chunk is reused instead of freed and reallocated.
	stats := alloc.Stats()
	require.Equal(t, int64(1), stats.Allocated)
	require.Equal(t, int64(0), stats.Deallocated)
	require.Equal(t, int64(20), stats.Constructed)
	require.Equal(t, int64(20), stats.Destroyed)
}

func TestCopyIndependence(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[string](2))
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(v))
	}

	copied, err := q.Clone()
	require.NoError(t, err)
	require.True(t, EqualComparable(q, copied))
	require.Equal(t, q.tracker, copied.tracker)

	require.NoError(t, copied.Push("d"))
	copied.Pop()
	copied.Pop()
	front, err := copied.Front()
	require.NoError(t, err)
	*front = "changed"

	require.Equal(t, 3, q.Size())
	v, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, "a", *v)
	v, err = q.Back()
	require.NoError(t, err)
	require.Equal(t, "c", *v)
	require.Equal(t, []string{"a", "b", "c"}, snapshot(q))
	require.Equal(t, []string{"changed", "d"}, snapshot(copied))
}

func TestCloneOnlyCopiesLiveSlots(t *testing.T) {
	t.Parallel()

	alloc := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer alloc.Close()
	q := New(WithChunkCapacity[int](4), WithAllocator[int](alloc))
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push(i))
	}
	q.Pop()
	q.Pop()
	q.Pop()
	before := alloc.Stats()

	copied, err := q.Clone()
	require.NoError(t, err)
	after := alloc.Stats()
	require.Equal(t, int64(q.ChunkCount()), after.Allocated-before.Allocated)
	require.Equal(t, int64(q.Size()), after.Constructed-before.Constructed)
	if diff := cmp.Diff(snapshot(q), snapshot(copied)); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	requireConsistent(t, copied)

	// Dead slots of the front chunk are never copied.
	for i := 0; i < copied.frontOffset; i++ {
		require.Zero(t, copied.dir.front().data[i])
	}

	copied.Release()
	q.Release()
	stats := alloc.Stats()
	require.Equal(t, int64(0), stats.LiveChunks())
	require.Equal(t, int64(0), stats.LiveElements())
}

func TestCloneWithCopyFunc(t *testing.T) {
	t.Parallel()

	q := New(WithCopyFunc(func(s []int) []int {
		return append([]int(nil), s...)
	}))
	require.NoError(t, q.Push([]int{1, 2}))

	copied, err := q.Clone()
	require.NoError(t, err)
	v, err := copied.Front()
	require.NoError(t, err)
	(*v)[0] = 100

	orig, err := q.Front()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, *orig)
}

func TestCloneEmpty(t *testing.T) {
	t.Parallel()

	q := New[int]()
	copied, err := q.Clone()
	require.NoError(t, err)
	require.True(t, copied.Empty())
	require.Equal(t, 0, copied.ChunkCount())

	require.NoError(t, q.Push(1))
	q.Pop()
	copied, err = q.Clone()
	require.NoError(t, err)
	require.True(t, copied.Empty())
	require.Equal(t, 1, copied.ChunkCount())
	require.NoError(t, copied.Push(2))
	require.Equal(t, []int{2}, drain(t, copied))
}

func TestCloneAllocationFailure(t *testing.T) {
	t.Parallel()

	instrumented := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer instrumented.Close()
	limited := NewLimitedAllocator[int](instrumented, 5)
	q := New(WithChunkCapacity[int](2), WithAllocator[int](limited))
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Push(i))
	}
	require.Equal(t, 3, limited.InUse())

	copied, err := q.Clone()
	require.Nil(t, copied)
	require.True(t, cerror.Is(err, cerror.ErrAllocationFailure), err)
	require.True(t, cerror.Is(err, cerror.ErrChunkBudgetExhausted), err)

	// Nothing leaked and the source is untouched.
	require.Equal(t, 3, limited.InUse())
	require.Equal(t, int64(3), instrumented.Stats().LiveChunks())
	require.Equal(t, int64(6), instrumented.Stats().LiveElements())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, snapshot(q))
}

func TestGrowthAllocationFailure(t *testing.T) {
	t.Parallel()

	limited := NewLimitedAllocator[int](NewHeapAllocator[int](), 2)
	q := New(WithChunkCapacity[int](3), WithAllocator[int](limited))
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Push(i))
	}

	err := q.Push(6)
	require.True(t, cerror.Is(err, cerror.ErrAllocationFailure), err)
	require.Equal(t, 6, q.Size())
	require.Equal(t, 2, q.ChunkCount())
	requireConsistent(t, q)
	back, err := q.Back()
	require.NoError(t, err)
	require.Equal(t, 5, *back)

	// Retiring a chunk frees budget for growth again.
	for i := 0; i < 3; i++ {
		q.Pop()
	}
	require.NoError(t, q.Push(6))
	require.Equal(t, []int{3, 4, 5, 6}, drain(t, q))
}

func TestSwap(t *testing.T) {
	t.Parallel()

	alloc := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer alloc.Close()
	a := New(WithChunkCapacity[int](2), WithAllocator[int](alloc))
	b := New(WithChunkCapacity[int](3), WithAllocator[int](alloc))
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Push(i))
	}
	for i := 10; i < 12; i++ {
		require.NoError(t, b.Push(i))
	}
	before := alloc.Stats()

	a.Swap(b)
	require.Equal(t, before, alloc.Stats())
	require.Equal(t, []int{10, 11}, snapshot(a))
	require.Equal(t, []int{0, 1, 2, 3, 4}, snapshot(b))
	require.Equal(t, 3, a.ChunkCapacity())
	require.Equal(t, 2, b.ChunkCapacity())
	requireConsistent(t, a)
	requireConsistent(t, b)

	a.Swap(b)
	require.Equal(t, []int{0, 1, 2, 3, 4}, snapshot(a))
	require.Equal(t, []int{10, 11}, snapshot(b))
}

func TestMove(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](2))
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	moved := q.Move()
	require.Equal(t, []int{0, 1, 2, 3, 4}, snapshot(moved))
	require.True(t, q.Empty())
	require.Equal(t, 0, q.ChunkCount())
	require.Equal(t, 2, q.ChunkCapacity())
	requireConsistent(t, q)

	// The source can be reused.
	require.NoError(t, q.Push(7))
	require.Equal(t, []int{7}, drain(t, q))
	require.Equal(t, 5, moved.Size())
}

func TestRelease(t *testing.T) {
	t.Parallel()

	alloc := NewInstrumentedAllocator[int](NewHeapAllocator[int](), t.Name())
	defer alloc.Close()
	q := New(WithChunkCapacity[int](3), WithAllocator[int](alloc))
	// Five chunks: front partially consumed, three interior chunks, partial back.
	for i := 0; i < 14; i++ {
		require.NoError(t, q.Push(i))
	}
	q.Pop()
	require.Equal(t, 5, q.ChunkCount())

	q.Release()
	stats := alloc.Stats()
	require.Equal(t, int64(0), stats.LiveChunks())
	require.Equal(t, int64(0), stats.LiveElements())
	require.Equal(t, int64(14), stats.Destroyed)
	require.True(t, q.Empty())
	require.Equal(t, 0, q.ChunkCount())

	require.NoError(t, q.Push(1))
	require.Equal(t, []int{1}, drain(t, q))
}

func TestFlushAndAssign(t *testing.T) {
	t.Parallel()

	src := New(WithChunkCapacity[int](3))
	for i := 0; i < 8; i++ {
		require.NoError(t, src.Push(i))
	}
	src.Pop()

	dst := New(WithChunkCapacity[int](5))
	for i := 100; i < 112; i++ {
		require.NoError(t, dst.Push(i))
	}
	require.NoError(t, dst.Assign(src))
	require.True(t, EqualComparable(src, dst))
	require.Equal(t, 5, dst.ChunkCapacity())
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, snapshot(dst))

	require.NoError(t, dst.Assign(dst))
	require.Equal(t, 7, dst.Size())

	dst.Flush()
	require.True(t, dst.Empty())
	require.Equal(t, 1, dst.ChunkCount())
	require.Equal(t, 7, src.Size())
}

func TestAssignAllocationFailure(t *testing.T) {
	t.Parallel()

	src := New(WithChunkCapacity[int](2))
	for i := 0; i < 6; i++ {
		require.NoError(t, src.Push(i))
	}
	dst := New(WithChunkCapacity[int](2),
		WithAllocator[int](NewLimitedAllocator[int](NewHeapAllocator[int](), 2)))
	err := dst.Assign(src)
	require.True(t, cerror.Is(err, cerror.ErrAllocationFailure), err)
	require.Equal(t, []int{0, 1, 2, 3}, snapshot(dst))
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a := New(WithChunkCapacity[int](2))
	b := New(WithChunkCapacity[int](7))
	require.True(t, EqualComparable(a, b))
	for i := 0; i < 20; i++ {
		require.NoError(t, a.Push(i))
		require.NoError(t, b.Push(i))
	}
	a.Pop()
	require.False(t, EqualComparable(a, b))
	b.Pop()
	require.True(t, EqualComparable(a, b))

	back, err := b.Back()
	require.NoError(t, err)
	*back = -1
	require.False(t, EqualComparable(a, b))
	require.True(t, Equal(a, b, func(x, y int) bool {
		return x == y || y == -1
	}))
}

func TestInvalidChunkCapacity(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](0))
	require.Equal(t, DefaultChunkCapacity, q.ChunkCapacity())
	q = New(WithChunkCapacity[int](-3))
	require.Equal(t, DefaultChunkCapacity, q.ChunkCapacity())
}

func TestCap(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](4))
	require.Equal(t, 0, q.Cap())
	require.NoError(t, q.Push(1))
	require.Equal(t, 4, q.Cap())
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(i))
	}
	require.Equal(t, 8, q.Cap())
	q.Pop()
	require.Equal(t, 7, q.Cap())
}

func TestInvariantViolationPanics(t *testing.T) {
	t.Parallel()

	q := New(WithChunkCapacity[int](4))
	require.NoError(t, q.Push(1))
	// The back chunk still has free slots.
	require.Panics(t, func() {
		_ = q.appendChunk()
	})
	// The front chunk is not consumed yet.
	require.Panics(t, func() {
		q.retireFrontChunk()
	})

	corrupted := New(WithChunkCapacity[int](4))
	require.NoError(t, corrupted.Push(1))
	corrupted.chunkCount = 2
	require.Panics(t, func() {
		corrupted.Release()
	})
}
