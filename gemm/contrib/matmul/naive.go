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

package matmul

import (
	"fmt"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// naiveRows computes rows [rowStart, rowEnd) of C = A * B, where A and C
// have `n` columns and B is n×n. The rows are cleared first, so C need not
// be zeroed by the caller.
//
// The i-p-j order streams B and C row-major; for each C[i,j] the products
// are still added in increasing p starting from 0, the same order as the
// textbook dot product.
func naiveRows(a, b, c []float64, rowStart, rowEnd, n int) {
	for i := rowStart; i < rowEnd; i++ {
		cRow := c[i*n : i*n+n]
		clear(cRow)
		aRow := a[i*n : i*n+n]
		for p, aip := range aRow {
			bRow := b[p*n : p*n+n]
			for j, bpj := range bRow {
				cRow[j] += aip * bpj
			}
		}
	}
}

// NaiveMatMul computes C = A * B with a single-threaded triple loop,
// overwriting C. It is the reference every other kernel is checked against.
func NaiveMatMul(a, b, c []float64, n int) {
	gemm.CheckOperands(a, b, c, n)
	naiveRows(a, b, c, 0, n, n)
}

// ParallelNaiveMatMul computes C = A * B with the rows of C split across the
// pool. Each row is written by exactly one worker, so the result is
// identical to NaiveMatMul for any worker count.
func ParallelNaiveMatMul(pool *workerpool.Pool, a, b, c []float64, n int) {
	gemm.CheckOperands(a, b, c, n)
	pool.ParallelFor(n, func(start, end int) {
		naiveRows(a, b, c, start, end, n)
	})
}

// NaiveRows computes a row partition: A and C are rows×n, B is n×n.
// A nil pool runs serially.
func NaiveRows(pool *workerpool.Pool, a, b, c []float64, rows, n int) {
	checkRows(a, b, c, rows, n)
	if pool == nil {
		naiveRows(a, b, c, 0, rows, n)
		return
	}
	pool.ParallelFor(rows, func(start, end int) {
		naiveRows(a, b, c, start, end, n)
	})
}

// checkRows panics unless A and C hold rows×n elements and B holds n×n.
func checkRows(a, b, c []float64, rows, n int) {
	if n <= 0 || rows < 0 {
		panic(fmt.Sprintf("matmul: invalid partition %dx%d", rows, n))
	}
	if len(a) < rows*n {
		panic("matmul: A slice too short")
	}
	if len(b) < n*n {
		panic("matmul: B slice too short")
	}
	if len(c) < rows*n {
		panic("matmul: C slice too short")
	}
}
