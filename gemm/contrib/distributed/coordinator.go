// Copyright 2025 go-gemm Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package distributed

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/matmul"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// Coordinator runs one rank's side of the row-partitioned multiplication.
// Each rank creates its own Coordinator.
type Coordinator struct {
	alloc   *gemm.Allocator
	pool    *workerpool.Pool
	threads int
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAllocator makes the rank take its partition buffers from alloc.
func WithAllocator(alloc *gemm.Allocator) CoordinatorOption {
	return func(co *Coordinator) { co.alloc = alloc }
}

// WithPool gives the rank a worker pool for the row-loop fallback used
// with shared-memory kernels that cannot compute a row partition. Without
// one, a pool is started for the call.
func WithPool(pool *workerpool.Pool) CoordinatorOption {
	return func(co *Coordinator) { co.pool = pool }
}

// NewCoordinator returns a Coordinator whose buffers are bounded by
// cfg.MaxBytes.
func NewCoordinator(cfg gemm.Config, opts ...CoordinatorOption) *Coordinator {
	co := &Coordinator{threads: cfg.EffectiveThreads()}
	for _, opt := range opts {
		opt(co)
	}
	if co.alloc == nil {
		co.alloc = cfg.NewAllocator()
	}
	return co
}

// Multiply computes C = A·B over the ranks of comm with kernel k.
//
// a, b and c are read and written on Root only; other ranks may pass nil.
// The protocol is:
//
//  1. every rank derives the row partitions of n over comm.Size() ranks;
//  2. B is broadcast from Root;
//  3. the rows of A are scattered by partition;
//  4. each rank computes its rows of C;
//  5. the rows of C are gathered into c on Root in rank order.
//
// Ranks with no rows still take part in every collective. A failure on any
// rank, including a buffer that cannot be allocated, aborts the whole
// group.
func (co *Coordinator) Multiply(ctx context.Context, comm Comm, a, b, c []float64, n int, k gemm.Kernel) (err error) {
	if n <= 0 {
		panic(fmt.Sprintf("gemm: non-positive dimension %d", n))
	}
	rank := comm.Rank()
	if rank == Root {
		gemm.CheckOperands(a, b, c, n)
	}
	defer func() {
		if err != nil {
			comm.Abort(err)
		}
	}()

	parts := Partitions(n, comm.Size())
	mine := parts[rank]
	counts, displs := Layout(parts, n)

	arena := co.alloc.NewArena()
	defer arena.Release()
	localB := b
	if rank != Root {
		if localB, err = arena.Alloc(n); err != nil {
			return fmt.Errorf("rank %d: allocating B: %w", rank, err)
		}
	}
	localA, err := arena.AllocRows(mine.Rows, n)
	if err != nil {
		return fmt.Errorf("rank %d: allocating A rows: %w", rank, err)
	}
	localC, err := arena.AllocRows(mine.Rows, n)
	if err != nil {
		return fmt.Errorf("rank %d: allocating C rows: %w", rank, err)
	}

	if err := comm.Bcast(ctx, localB[:n*n], Root); err != nil {
		return fmt.Errorf("rank %d: broadcasting B: %w", rank, err)
	}
	if err := comm.Scatterv(ctx, a, counts, displs, localA, Root); err != nil {
		return fmt.Errorf("rank %d: scattering A: %w", rank, err)
	}

	path, err := co.compute(localA, localB, localC, mine.Rows, n, k)
	if err != nil {
		return fmt.Errorf("rank %d: computing rows [%d, %d): %w", rank, mine.Offset, mine.Offset+mine.Rows, err)
	}
	klog.V(2).InfoS("Partition computed", "rank", rank, "rows", mine.Rows, "offset", mine.Offset, "path", path)

	if err := comm.Gatherv(ctx, localC, c, counts, displs, Root); err != nil {
		return fmt.Errorf("rank %d: gathering C: %w", rank, err)
	}
	return nil
}

// compute fills the rows×n partition c. A partition spanning the whole
// matrix goes through the kernel directly; otherwise the kernel's own row
// variant is used when it has one, and the naive row loop when it does
// not. It returns a short name of the path taken.
func (co *Coordinator) compute(a, b, c []float64, rows, n int, k gemm.Kernel) (string, error) {
	switch {
	case rows == 0:
		return "empty", nil
	case rows == n:
		return "kernel", k.Apply(a, b, c, n)
	}
	if rk, ok := k.(gemm.RowKernel); ok {
		return "rows", rk.ApplyRows(a, b, c, rows, n)
	}
	if !k.SharedMemory() {
		matmul.NaiveRows(nil, a, b, c, rows, n)
		return "row-loop", nil
	}
	pool := co.pool
	if pool == nil {
		pool = workerpool.New(co.threads)
		defer pool.Close()
	}
	matmul.NaiveRows(pool, a, b, c, rows, n)
	return "parallel-row-loop", nil
}
