// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package distributed multiplies matrices by partitioning the rows of A and
// C over a fixed group of ranks that share nothing but collective messages.
//
// The ranks of a World are goroutines, each with its own buffers, kernel
// and (for the hybrid model) worker pool. The Coordinator implements the
// broadcast/scatter/compute/gather protocol on top of the Comm interface,
// so it is independent of how ranks exchange messages.
//
//	err := distributed.Compute(ctx, 4, gemm.Blocked, gemm.Hybrid, cfg, a, b, c, n)
package distributed

import (
	"context"
	"fmt"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/matmul"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// Compute multiplies C = A·B on a new world of procs ranks. Under
// gemm.Distributed every rank computes serially; under gemm.Hybrid every
// rank runs the parallel kernel on a pool of cfg.Threads workers.
//
// Each rank's buffers and kernel temporaries share one allocator bounded
// by cfg.MaxBytes.
func Compute(ctx context.Context, procs int, alg gemm.Algorithm, model gemm.Model, cfg gemm.Config,
	a, b, c []float64, n int) error {
	if !model.IsDistributed() {
		return fmt.Errorf("%w: %s is not a distributed model", gemm.ErrUnsupported, model)
	}
	if procs <= 0 {
		return fmt.Errorf("%w: procs=%d", gemm.ErrInvalidConfig, procs)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	gemm.CheckOperands(a, b, c, n)

	// Fail before starting any rank if the local kernel does not exist.
	probe, err := matmul.New(alg, model.LocalModel(), cfg)
	if err != nil {
		return err
	}
	probe.Close()

	world := NewWorld(procs)
	return Run(ctx, world, func(ctx context.Context, comm Comm) error {
		r, err := newRank(alg, model, cfg)
		if err != nil {
			return err
		}
		defer r.close()

		var ra, rb, rc []float64
		if comm.Rank() == Root {
			ra, rb, rc = a, b, c
		}
		return r.co.Multiply(ctx, comm, ra, rb, rc, n, r.kernel)
	})
}

// rankState holds the resources of one rank: a single allocator and, under
// gemm.Hybrid, a single worker pool, both shared by the kernel and the
// coordinator.
type rankState struct {
	alloc  *gemm.Allocator
	pool   *workerpool.Pool
	kernel gemm.Kernel
	co     *Coordinator
}

func newRank(alg gemm.Algorithm, model gemm.Model, cfg gemm.Config) (*rankState, error) {
	r := &rankState{alloc: cfg.NewAllocator()}
	kopts := []matmul.Option{matmul.WithAllocator(r.alloc)}
	copts := []CoordinatorOption{WithAllocator(r.alloc)}
	if model.LocalModel() == gemm.Parallel {
		r.pool = workerpool.New(cfg.EffectiveThreads())
		kopts = append(kopts, matmul.WithPool(r.pool))
		copts = append(copts, WithPool(r.pool))
	}

	k, err := matmul.New(alg, model.LocalModel(), cfg, kopts...)
	if err != nil {
		r.close()
		return nil, err
	}
	r.kernel = k
	r.co = NewCoordinator(cfg, copts...)
	return r, nil
}

func (r *rankState) close() {
	if r.kernel != nil {
		r.kernel.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}
