// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// Transpose tuning parameters
const (
	// MinTransposeParallelOps is the minimum elements before parallelizing transpose
	MinTransposeParallelOps = 64 * 64

	// TransposeRowsPerStrip defines how many rows each worker processes
	TransposeRowsPerStrip = 64
)

// ParallelTranspose writes srcᵀ into dst using the pool. The matrix is cut
// into horizontal strips of src; each strip fills a disjoint band of
// columns of dst, so strips run concurrently without coordination.
//
// Small matrices, or a nil pool, fall back to the serial transpose.
func ParallelTranspose(pool *workerpool.Pool, dst, src []float64, n int) {
	if pool == nil || n*n < MinTransposeParallelOps {
		gemm.Transpose(dst, src, n)
		return
	}

	numStrips := (n + TransposeRowsPerStrip - 1) / TransposeRowsPerStrip
	pool.ParallelFor(numStrips, func(start, end int) {
		for strip := start; strip < end; strip++ {
			rowStart := strip * TransposeRowsPerStrip
			rowEnd := min(rowStart+TransposeRowsPerStrip, n)
			gemm.TransposeRows(dst, src, rowStart, rowEnd, n)
		}
	})
}
