// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// referenceRows overwrites the rows×n matrix c with a·b through gonum's
// BLAS implementation. It is a performance baseline only: results match the
// other kernels within rounding, not bit for bit.
func referenceRows(a, b, c []float64, rows, n int) {
	checkRows(a, b, c, rows, n)
	if rows == 0 {
		return
	}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(a, rows, n),
		general(b, n, n),
		0,
		general(c, rows, n))
}

func general(data []float64, rows, cols int) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data[:rows*cols]}
}
