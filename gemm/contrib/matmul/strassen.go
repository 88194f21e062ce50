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
	"math/bits"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ajroetker/go-gemm/gemm"
)

// Quadrant indices into the per-frame operand slices.
const (
	q11 = iota
	q12
	q21
	q22
)

// operand is one side of a Strassen product: a single quadrant, or the sum
// or difference of two.
type operand struct {
	x, y int // y < 0: quadrant x alone
	sub  bool
}

func one(x int) operand      { return operand{x: x, y: -1} }
func plus(x, y int) operand  { return operand{x: x, y: y} }
func minus(x, y int) operand { return operand{x: x, y: y, sub: true} }

// strassenProducts are M1..M7, as (A operand, B operand) pairs.
var strassenProducts = [7][2]operand{
	{plus(q11, q22), plus(q11, q22)},  // M1 = (A11+A22)(B11+B22)
	{plus(q21, q22), one(q11)},        // M2 = (A21+A22) B11
	{one(q11), minus(q12, q22)},       // M3 = A11 (B12-B22)
	{one(q22), minus(q21, q11)},       // M4 = A22 (B21-B11)
	{plus(q11, q12), one(q22)},        // M5 = (A11+A12) B22
	{minus(q21, q11), plus(q11, q12)}, // M6 = (A21-A11)(B11+B12)
	{minus(q12, q22), plus(q21, q22)}, // M7 = (A12-A22)(B21+B22)
}

// strassen is the recursive kernel. A nil sem gives the serial variant;
// otherwise the seven products of frames at or above cutoff are forked
// while sem has capacity, and run inline when it does not.
type strassen struct {
	baseCase int
	cutoff   int
	alloc    *gemm.Allocator
	sem      *semaphore.Weighted
}

func newStrassen(cfg gemm.Config, alloc *gemm.Allocator, threads int) *strassen {
	s := &strassen{
		baseCase: cfg.BaseCase,
		cutoff:   cfg.ParallelCutoff,
		alloc:    alloc,
	}
	if threads > 0 {
		// The calling goroutine is one of the threads.
		s.sem = semaphore.NewWeighted(int64(threads - 1))
	}
	return s
}

// multiply overwrites c with a·b.
//
// Dimensions above the base case that are not a power of two are padded
// with zeros to the next power of two; the padding contributes nothing to
// the leading n×n block, which is copied back.
func (s *strassen) multiply(a, b, c []float64, n int) error {
	gemm.CheckOperands(a, b, c, n)
	if n <= s.baseCase || isPowerOfTwo(n) {
		return s.recurse(a, b, c, n)
	}

	m := nextPowerOfTwo(n)
	arena := s.alloc.NewArena()
	defer arena.Release()
	bufs, err := arena.AllocN(m, 3)
	if err != nil {
		return err
	}
	pa, pb, pc := bufs[0], bufs[1], bufs[2]
	for i := range n {
		copy(pa[i*m:i*m+n], a[i*n:i*n+n])
		copy(pb[i*m:i*m+n], b[i*n:i*n+n])
	}
	if err := s.recurse(pa, pb, pc, m); err != nil {
		return err
	}
	for i := range n {
		copy(c[i*n:i*n+n], pc[i*m:i*m+n])
	}
	return nil
}

// multiplyRows overwrites the rows×n matrix c with a·b, a being rows×n.
//
// The partition is cut into bs×bs blocks, bs being rows rounded up to a
// power of two, and each block of C is accumulated from the products
// A[:, K]·B[K, J] in increasing K. Blocks overhanging the matrix are
// zero-padded.
func (s *strassen) multiplyRows(a, b, c []float64, rows, n int) error {
	checkRows(a, b, c, rows, n)
	switch {
	case rows == 0:
		return nil
	case rows == n:
		return s.multiply(a, b, c, n)
	case rows <= s.baseCase:
		naiveRows(a, b, c, 0, rows, n)
		return nil
	}

	bs := nextPowerOfTwo(rows)
	blocks := (n + bs - 1) / bs
	arena := s.alloc.NewArena()
	defer arena.Release()

	// The block row of A, then one block of B and one product.
	bufs, err := arena.AllocN(bs, blocks+2)
	if err != nil {
		return err
	}
	ablk, bblk, prod := bufs[:blocks], bufs[blocks], bufs[blocks+1]
	for k := range blocks {
		copyBlock(ablk[k], a, rows, n, bs, 0, k*bs)
	}

	clear(c[:rows*n])
	for j := range blocks {
		for k := range blocks {
			copyBlock(bblk, b, n, n, bs, k*bs, j*bs)
			if err := s.recurse(ablk[k], bblk, prod, bs); err != nil {
				return err
			}
			addBlock(c, prod, rows, n, bs, j*bs)
		}
	}
	return nil
}

// recurse overwrites c with a·b, where n is at most the base case or a
// power of two.
func (s *strassen) recurse(a, b, c []float64, n int) error {
	if n <= s.baseCase {
		naiveRows(a, b, c, 0, n, n)
		return nil
	}

	h := n / 2
	arena := s.alloc.NewArena()
	defer arena.Release()

	// 8 quadrants + 7 products.
	bufs, err := arena.AllocN(h, 15)
	if err != nil {
		return err
	}
	qa, qb, m := bufs[0:4], bufs[4:8], bufs[8:15]
	for q := range 4 {
		r0, c0 := (q/2)*h, (q%2)*h
		copyQuadrant(qa[q], a, n, h, r0, c0)
		copyQuadrant(qb[q], b, n, h, r0, c0)
	}

	if s.sem != nil && n >= s.cutoff {
		err = s.productsParallel(qa, qb, m, h)
	} else {
		err = s.productsSerial(arena, qa, qb, m, h)
	}
	if err != nil {
		return err
	}

	combine(c, m, n, h)
	return nil
}

// productsSerial computes M1..M7 reusing two scratch buffers for the
// operand sums.
func (s *strassen) productsSerial(arena *gemm.Arena, qa, qb, m [][]float64, h int) error {
	scratch, err := arena.AllocN(h, 2)
	if err != nil {
		return err
	}
	for i, p := range strassenProducts {
		x := evalOperand(p[0], qa, scratch[0], h)
		y := evalOperand(p[1], qb, scratch[1], h)
		if err := s.recurse(x, y, m[i], h); err != nil {
			return err
		}
	}
	return nil
}

// productsParallel forks each product whose slot in the semaphore can be
// taken and computes the rest on the calling goroutine. Every task owns
// its scratch, and all tasks are joined before returning.
func (s *strassen) productsParallel(qa, qb, m [][]float64, h int) error {
	var g errgroup.Group
	var inlineErr error
	for i, p := range strassenProducts {
		task := func() error {
			arena := s.alloc.NewArena()
			defer arena.Release()
			scratch, err := arena.AllocN(h, 2)
			if err != nil {
				return err
			}
			x := evalOperand(p[0], qa, scratch[0], h)
			y := evalOperand(p[1], qb, scratch[1], h)
			return s.recurse(x, y, m[i], h)
		}
		if s.sem.TryAcquire(1) {
			g.Go(func() error {
				defer s.sem.Release(1)
				return task()
			})
			continue
		}
		if inlineErr = task(); inlineErr != nil {
			break
		}
	}
	if err := g.Wait(); inlineErr == nil {
		inlineErr = err
	}
	return inlineErr
}

// evalOperand returns the quadrant itself, or scratch filled with the sum
// or difference of two quadrants.
func evalOperand(op operand, quads [][]float64, scratch []float64, h int) []float64 {
	if op.y < 0 {
		return quads[op.x]
	}
	if op.sub {
		gemm.Sub(scratch, quads[op.x], quads[op.y], h)
	} else {
		gemm.Add(scratch, quads[op.x], quads[op.y], h)
	}
	return scratch
}

// copyQuadrant copies the h×h block of src (stride n) at (r0, c0) into dst.
func copyQuadrant(dst, src []float64, n, h, r0, c0 int) {
	for i := range h {
		row := (r0+i)*n + c0
		copy(dst[i*h:i*h+h], src[row:row+h])
	}
}

// copyBlock copies the bs×bs block at (r0, c0) of the rows×n matrix src into
// dst, zero-filling whatever lies outside src.
func copyBlock(dst, src []float64, rows, n, bs, r0, c0 int) {
	clear(dst)
	w := min(bs, n-c0)
	for i := range min(bs, rows-r0) {
		row := (r0+i)*n + c0
		copy(dst[i*bs:i*bs+w], src[row:row+w])
	}
}

// addBlock adds the leading rows×w corner of the bs×bs block src into the
// rows×n matrix c at column c0.
func addBlock(c, src []float64, rows, n, bs, c0 int) {
	w := min(bs, n-c0)
	for i := range rows {
		dst := c[i*n+c0 : i*n+c0+w]
		for j, v := range src[i*bs : i*bs+w] {
			dst[j] += v
		}
	}
}

// combine assembles C from the seven products:
//
//	C11 = M1 + M4 - M5 + M7
//	C12 = M3 + M5
//	C21 = M2 + M4
//	C22 = M1 - M2 + M3 + M6
func combine(c []float64, m [][]float64, n, h int) {
	m1, m2, m3, m4, m5, m6, m7 := m[0], m[1], m[2], m[3], m[4], m[5], m[6]
	for i := range h {
		top := c[i*n : i*n+n]
		bottom := c[(i+h)*n : (i+h)*n+n]
		for j := range h {
			k := i*h + j
			top[j] = m1[k] + m4[k] - m5[k] + m7[k]
			top[j+h] = m3[k] + m5[k]
			bottom[j] = m2[k] + m4[k]
			bottom[j+h] = m1[k] - m2[k] + m3[k] + m6[k]
		}
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// nextPowerOfTwo returns the smallest power of two >= n, for n >= 1.
func nextPowerOfTwo(n int) int {
	if isPowerOfTwo(n) {
		return n
	}
	return 1 << bits.Len(uint(n))
}
