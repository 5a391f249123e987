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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerNewChunkNeeded(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tr       tracker
		expected bool
	}{
		{tracker{capacity: 4}, true},
		{tracker{capacity: 4, chunkCount: 1, size: 2, backOffset: 2}, false},
		{tracker{capacity: 4, chunkCount: 1, size: 4, backOffset: 4}, true},
		{tracker{capacity: 4, chunkCount: 2, size: 4, frontOffset: 1, backOffset: 1}, false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, tc.tr.newChunkNeeded(), "%+v", tc.tr)
	}
}

func TestTrackerLiveRange(t *testing.T) {
	t.Parallel()

	single := tracker{capacity: 4, chunkCount: 1, size: 2, frontOffset: 1, backOffset: 3}
	l, r := single.liveRange(0)
	require.Equal(t, []int{1, 3}, []int{l, r})

	multi := tracker{capacity: 4, chunkCount: 3, size: 7, frontOffset: 3, backOffset: 2}
	ranges := make([][2]int, 0, 3)
	for i := 0; i < multi.chunkCount; i++ {
		l, r := multi.liveRange(i)
		ranges = append(ranges, [2]int{l, r})
	}
	require.Equal(t, [][2]int{{3, 4}, {0, 4}, {0, 2}}, ranges)
}

func TestTrackerBackPosition(t *testing.T) {
	t.Parallel()

	tr := tracker{capacity: 4, chunkCount: 2, size: 5, frontOffset: 1, backOffset: 2}
	i, slot := tr.backPosition()
	require.Equal(t, 1, i)
	require.Equal(t, 1, slot)

	// The back chunk was just appended and is still empty.
	tr = tracker{capacity: 4, chunkCount: 2, size: 3, frontOffset: 1, backOffset: 0}
	i, slot = tr.backPosition()
	require.Equal(t, 0, i)
	require.Equal(t, 3, slot)
}

func TestTrackerViolation(t *testing.T) {
	t.Parallel()

	valid := []tracker{
		{capacity: 4},
		{capacity: 4, chunkCount: 1},
		{capacity: 4, chunkCount: 1, size: 2, frontOffset: 1, backOffset: 3},
		{capacity: 4, chunkCount: 2, size: 3, frontOffset: 1, backOffset: 0},
		{capacity: 4, chunkCount: 3, size: 9, frontOffset: 0, backOffset: 1},
	}
	for _, tr := range valid {
		require.Empty(t, tr.violation(), "%+v", tr)
	}

	invalid := []tracker{
		{capacity: 0},
		{capacity: 4, size: 1},
		{capacity: 4, chunkCount: 1, frontOffset: 5, backOffset: 5},
		{capacity: 4, chunkCount: 1, size: 1, frontOffset: 3, backOffset: 2},
		{capacity: 4, chunkCount: 1, size: 3, frontOffset: 0, backOffset: 2},
		{capacity: 4, chunkCount: 2, size: 3, frontOffset: 0, backOffset: 2},
		{capacity: 4, chunkCount: 1, size: -1},
	}
	for _, tr := range invalid {
		require.NotEmpty(t, tr.violation(), "%+v", tr)
	}
}
