// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

// blocked is the cache-blocked kernel: B is transposed once so that both
// operands of every dot product are read row-major, then C is computed tile
// by tile. A nil pool gives the serial variant.
type blocked struct {
	tile  int
	alloc *gemm.Allocator
	pool  *workerpool.Pool
}

func (k *blocked) multiply(a, b, c []float64, n int) error {
	gemm.CheckOperands(a, b, c, n)
	return k.multiplyRows(a, b, c, n, n)
}

// multiplyRows overwrites the rows×n matrix c with a·b, a being rows×n.
//
// Output tiles (ii, jj) are independent and are the unit of parallel work.
// Within a tile the kk blocks are visited in increasing order and each
// block's partial dot product is added to C, so every element is
// accumulated the same way whichever worker owns the tile.
func (k *blocked) multiplyRows(a, b, c []float64, rows, n int) error {
	checkRows(a, b, c, rows, n)
	if rows == 0 {
		return nil
	}

	arena := k.alloc.NewArena()
	defer arena.Release()
	bt, err := arena.Alloc(n)
	if err != nil {
		return err
	}
	ParallelTranspose(k.pool, bt, b, n)
	clear(c[:rows*n])

	tile := k.tile
	tilesI := (rows + tile - 1) / tile
	tilesJ := (n + tile - 1) / tile
	body := func(t int) {
		ii := (t / tilesJ) * tile
		jj := (t % tilesJ) * tile
		blockedTile(a, bt, c, n, tile, ii, min(ii+tile, rows), jj, min(jj+tile, n))
	}

	if k.pool == nil {
		for t := range tilesI * tilesJ {
			body(t)
		}
		return nil
	}
	k.pool.ParallelForAtomic(tilesI*tilesJ, body)
	return nil
}

// blockedTile accumulates the A·B tile C[iStart:iEnd, jStart:jEnd] over all
// kk blocks. bt holds Bᵀ.
func blockedTile(a, bt, c []float64, n, tile, iStart, iEnd, jStart, jEnd int) {
	for kk := 0; kk < n; kk += tile {
		kEnd := min(kk+tile, n)
		for i := iStart; i < iEnd; i++ {
			aRow := a[i*n+kk : i*n+kEnd]
			cRow := c[i*n : i*n+n]
			for j := jStart; j < jEnd; j++ {
				btRow := bt[j*n+kk : j*n+kEnd]
				var sum float64
				for p, av := range aRow {
					sum += av * btRow[p]
				}
				cRow[j] += sum
			}
		}
	}
}
