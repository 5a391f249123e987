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

package bench

import (
	"context"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/edwingeng/deque"
	"github.com/pingcap/chunkq/pkg/config"
	"github.com/pingcap/chunkq/pkg/container/queue"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options defines flags for the `bench` command.
type options struct {
	n             int
	chunkCapacity int
	allocator     string
}

// newOptions creates new options for the `bench` command.
func newOptions() *options {
	return &options{}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to the benchmark to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.n, "n", 1000000, "number of elements pushed and popped")
	cmd.Flags().IntVar(&o.chunkCapacity, "chunk-capacity", queue.DefaultChunkCapacity, "number of elements in a chunk")
	cmd.Flags().StringVar(&o.allocator, "allocator", config.AllocatorHeap, "chunk allocator of the queue (etc: heap|pool)")
}

func (o *options) validate() error {
	if o.n <= 0 {
		return errors.Errorf("n must be positive, got %d", o.n)
	}
	cfg := config.GetDefaultConfig()
	cfg.ChunkCapacity = o.chunkCapacity
	cfg.Allocator = o.allocator
	if err := cfg.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	o.allocator = cfg.Allocator
	return nil
}

// result is the outcome of one runner.
type result struct {
	name     string
	elapsed  time.Duration
	bytes    uint64
	elements int
}

func (r result) opsPerSecond() int64 {
	if r.elapsed <= 0 {
		return 0
	}
	// push and pop of every element
	return int64(float64(2*r.elements) / r.elapsed.Seconds())
}

type runner struct {
	name string
	run  func(n int) error
}

func (o *options) runners() []runner {
	return []runner{
		{name: "chunked-queue", run: o.runQueue},
		{name: "slice", run: runSlice},
		{name: "edwingeng-deque", run: runDeque},
	}
}

func (o *options) runQueue(n int) error {
	var alloc queue.Allocator[int] = queue.NewHeapAllocator[int]()
	if o.allocator == config.AllocatorPool {
		alloc = queue.NewPoolAllocator[int](o.chunkCapacity)
	}
	q := queue.New(
		queue.WithChunkCapacity[int](o.chunkCapacity),
		queue.WithAllocator[int](alloc))
	defer q.Release()
	for i := 0; i < n; i++ {
		if err := q.Push(i); err != nil {
			return errors.Trace(err)
		}
	}
	for !q.Empty() {
		q.Pop()
	}
	return nil
}

func runSlice(n int) error {
	var q []int
	for i := 0; i < n; i++ {
		q = append(q, i)
	}
	for len(q) > 0 {
		q = q[1:]
	}
	return nil
}

func runDeque(n int) error {
	q := deque.NewDeque()
	for i := 0; i < n; i++ {
		q.PushBack(i)
	}
	for !q.Empty() {
		q.PopFront()
	}
	return nil
}

func measure(r runner, n int) (result, error) {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()
	if err := r.run(n); err != nil {
		return result{}, err
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)
	return result{
		name:     r.name,
		elapsed:  elapsed,
		bytes:    after.TotalAlloc - before.TotalAlloc,
		elements: n,
	}, nil
}

// run runs the `bench` command.
func (o *options) run(ctx context.Context, cmd *cobra.Command) error {
	cmd.Printf("push then pop %s elements, chunk capacity %d\n",
		humanize.Comma(int64(o.n)), o.chunkCapacity)
	for _, r := range o.runners() {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		res, err := measure(r, o.n)
		if err != nil {
			return errors.Annotatef(err, "run %s", r.name)
		}
		log.Info("benchmark finished",
			zap.String("runner", res.name),
			zap.Duration("elapsed", res.elapsed),
			zap.Uint64("allocatedBytes", res.bytes))
		cmd.Printf("%-16s %12s %14s ops/s %10s allocated\n",
			res.name, res.elapsed.Round(time.Microsecond),
			humanize.Comma(res.opsPerSecond()), humanize.Bytes(res.bytes))
	}
	return nil
}

// NewCmdBench creates the `bench` command.
func NewCmdBench() *cobra.Command {
	o := newOptions()
	command := &cobra.Command{
		Use:   "bench",
		Short: "Compare the chunked queue with a slice and a ring deque",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			return o.run(cmd.Context(), cmd)
		},
	}
	o.addFlags(command)

	return command
}
