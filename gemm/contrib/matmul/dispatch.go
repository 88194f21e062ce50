// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"fmt"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// Option customizes a kernel built by New.
type Option func(*options)

type options struct {
	pool  *workerpool.Pool
	alloc *gemm.Allocator
}

// WithPool makes a parallel kernel run on pool instead of starting its own.
// The kernel does not close a pool it was given. The recursive kernel forks
// its own tasks and takes only the pool's worker count.
func WithPool(pool *workerpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithAllocator makes the kernel take its temporaries from alloc instead
// of an allocator built from Config.MaxBytes. Kernels sharing an allocator
// share its budget.
func WithAllocator(alloc *gemm.Allocator) Option {
	return func(o *options) { o.alloc = alloc }
}

// New returns the kernel for (alg, model).
//
// Only the shared-memory models are built here; Distributed and Hybrid run
// through the distributed coordinator, which uses New(alg,
// model.LocalModel(), ...) for each rank. The reference kernel supports
// only Serial. Unsupported pairs return an error wrapping
// gemm.ErrUnsupported.
func New(alg gemm.Algorithm, model gemm.Model, cfg gemm.Config, opts ...Option) (gemm.Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = cfg.NewAllocator()
	}

	switch model {
	case gemm.Serial, gemm.Parallel:
	default:
		return nil, fmt.Errorf("%w: %s/%s (use the distributed coordinator)", gemm.ErrUnsupported, alg, model)
	}
	if alg == gemm.Reference && model != gemm.Serial {
		return nil, fmt.Errorf("%w: %s/%s", gemm.ErrUnsupported, alg, model)
	}

	k := &kernel{alg: alg, model: model}
	// The recursive kernel forks its own tasks and needs no pool.
	if model == gemm.Parallel && alg != gemm.Strassen {
		k.pool = o.pool
		if k.pool == nil {
			k.pool = workerpool.New(cfg.EffectiveThreads())
			k.ownsPool = true
		}
	}

	switch alg {
	case gemm.Naive:
		pool := k.pool
		k.apply = func(a, b, c []float64, n int) error {
			gemm.CheckOperands(a, b, c, n)
			NaiveRows(pool, a, b, c, n, n)
			return nil
		}
		return &rowKernel{kernel: k, rows: func(a, b, c []float64, rows, n int) error {
			NaiveRows(pool, a, b, c, rows, n)
			return nil
		}}, nil

	case gemm.Strassen:
		threads := 0
		if model == gemm.Parallel {
			threads = cfg.EffectiveThreads()
			if o.pool != nil {
				threads = o.pool.Workers()
			}
		}
		s := newStrassen(cfg, o.alloc, threads)
		k.apply = s.multiply
		return &rowKernel{kernel: k, rows: s.multiplyRows}, nil

	case gemm.Blocked:
		bk := &blocked{tile: cfg.TileSize, alloc: o.alloc, pool: k.pool}
		k.apply = bk.multiply
		return &rowKernel{kernel: k, rows: bk.multiplyRows}, nil

	case gemm.Reference:
		k.apply = func(a, b, c []float64, n int) error {
			gemm.CheckOperands(a, b, c, n)
			referenceRows(a, b, c, n, n)
			return nil
		}
		return &rowKernel{kernel: k, rows: func(a, b, c []float64, rows, n int) error {
			referenceRows(a, b, c, rows, n)
			return nil
		}}, nil
	}

	k.Close()
	return nil, fmt.Errorf("%w: %s", gemm.ErrUnknownAlgorithm, alg)
}

// MustNew is New that panics on error, for tests and examples.
func MustNew(alg gemm.Algorithm, model gemm.Model, cfg gemm.Config, opts ...Option) gemm.Kernel {
	k, err := New(alg, model, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return k
}

// kernel is the tagged (Algorithm, Model) variant behind gemm.Kernel.
type kernel struct {
	alg      gemm.Algorithm
	model    gemm.Model
	pool     *workerpool.Pool
	ownsPool bool
	apply    func(a, b, c []float64, n int) error
}

func (k *kernel) Apply(a, b, c []float64, n int) error {
	return k.apply(a, b, c, n)
}

func (k *kernel) Algorithm() gemm.Algorithm { return k.alg }
func (k *kernel) Model() gemm.Model         { return k.model }
func (k *kernel) SharedMemory() bool        { return k.model == gemm.Parallel }

func (k *kernel) Close() error {
	if k.ownsPool && k.pool != nil {
		k.pool.Close()
	}
	return nil
}

// rowKernel adds gemm.RowKernel to the algorithms that can compute a row
// partition directly.
type rowKernel struct {
	*kernel
	rows func(a, b, c []float64, rows, n int) error
}

func (k *rowKernel) ApplyRows(a, b, c []float64, rows, n int) error {
	return k.rows(a, b, c, rows, n)
}
