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

package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/pingcap/chunkq/pkg/config"
	"github.com/pingcap/chunkq/pkg/container/queue"
	cerror "github.com/pingcap/chunkq/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const emptyMarker = "<empty>"

// Summary describes a finished run.
type Summary struct {
	Ops       int
	Pushed    int
	Popped    int
	Size      int
	MaxChunks int
}

// NewAllocator builds the allocator described by cfg. The returned
// InstrumentedAllocator is the outermost layer and reports under
// cfg.MetricsName.
func NewAllocator(cfg *config.Config) *queue.InstrumentedAllocator[string] {
	var alloc queue.Allocator[string]
	switch cfg.Allocator {
	case config.AllocatorPool:
		alloc = queue.NewPoolAllocator[string](cfg.ChunkCapacity)
	default:
		alloc = queue.NewHeapAllocator[string]()
	}
	if cfg.ChunkBudget > 0 {
		alloc = queue.NewLimitedAllocator(alloc, cfg.ChunkBudget)
	}
	return queue.NewInstrumentedAllocator(alloc, cfg.MetricsName)
}

// Executor runs scripts against a queue of strings.
type Executor struct {
	q   *queue.Queue[string]
	out io.Writer
	rl  ratelimit.Limiter
}

// ExecutorOption configures an Executor.
type ExecutorOption func(e *Executor)

// WithRate paces the run to at most opsPerSecond operations per second.
// A non-positive rate leaves the run unpaced.
func WithRate(opsPerSecond int) ExecutorOption {
	return func(e *Executor) {
		if opsPerSecond > 0 {
			e.rl = ratelimit.New(opsPerSecond)
		}
	}
}

// NewExecutor creates an Executor. Observing operations write one line
// each to out.
func NewExecutor(q *queue.Queue[string], out io.Writer, opts ...ExecutorOption) *Executor {
	e := &Executor{q: q, out: out, rl: ratelimit.NewUnlimited()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes ops in order. It stops at the first failed operation or when
// ctx is canceled.
func (e *Executor) Run(ctx context.Context, ops []Op) (*Summary, error) {
	summary := &Summary{MaxChunks: e.q.ChunkCount()}
	for _, op := range ops {
		select {
		case <-ctx.Done():
			return summary, errors.Trace(ctx.Err())
		default:
		}

		e.rl.Take()
		if err := e.apply(op, summary); err != nil {
			log.Warn("replay operation failed",
				zap.Int("line", op.Line),
				zap.Stringer("op", op.Type),
				zap.Error(err))
			return summary, errors.Annotatef(err, "line %d", op.Line)
		}
		summary.Ops++
		if c := e.q.ChunkCount(); c > summary.MaxChunks {
			summary.MaxChunks = c
		}
	}
	summary.Size = e.q.Size()
	return summary, nil
}

func (e *Executor) apply(op Op, summary *Summary) error {
	switch op.Type {
	case OpPush:
		if err := e.q.Push(op.Value); err != nil {
			return err
		}
		summary.Pushed++
	case OpEmplace:
		if err := e.q.Emplace(func(slot *string) {
			*slot = op.Value
		}); err != nil {
			return err
		}
		summary.Pushed++
	case OpPop:
		for i := 0; i < op.Count && !e.q.Empty(); i++ {
			e.q.Pop()
			summary.Popped++
		}
	case OpFlush:
		summary.Popped += e.q.Size()
		e.q.Flush()
	case OpFront:
		return e.printElement(op.Type, e.q.Front)
	case OpBack:
		return e.printElement(op.Type, e.q.Back)
	case OpSize:
		return e.printf("size: %d\n", e.q.Size())
	case OpEmpty:
		return e.printf("empty: %t\n", e.q.Empty())
	case OpChunks:
		return e.printf("chunks: %d\n", e.q.ChunkCount())
	default:
		return errors.Errorf("unsupported operation %s", op.Type)
	}
	return nil
}

func (e *Executor) printElement(tp OpType, peek func() (*string, error)) error {
	v, err := peek()
	if err != nil {
		if cerror.Is(err, cerror.ErrEmptyContainer) {
			return e.printf("%s: %s\n", tp, emptyMarker)
		}
		return err
	}
	return e.printf("%s: %s\n", tp, *v)
}

func (e *Executor) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(e.out, format, args...)
	return errors.Trace(err)
}
