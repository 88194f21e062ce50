// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/samber/lo"
)

// checkDim panics on a non-positive dimension or a buffer shorter than n*n.
func checkDim(name string, m []float64, n int) {
	if n <= 0 {
		panic(fmt.Sprintf("gemm: non-positive dimension %d", n))
	}
	if len(m) < n*n {
		panic(fmt.Sprintf("gemm: %s slice too short: len=%d, need %d", name, len(m), n*n))
	}
}

// CheckOperands panics unless a, b and c each hold at least n*n elements
// and n > 0. Kernels call it on entry.
func CheckOperands(a, b, c []float64, n int) {
	checkDim("A", a, n)
	checkDim("B", b, n)
	checkDim("C", c, n)
}

// New returns a zeroed n×n matrix. It panics if n <= 0.
func New(n int) []float64 {
	if n <= 0 {
		panic(fmt.Sprintf("gemm: non-positive dimension %d", n))
	}
	return make([]float64, n*n)
}

// FillRandom fills m with uniform values in [0, 1) drawn from a PCG source
// seeded with seed, so equal seeds give equal matrices.
func FillRandom(m []float64, n int, seed uint64) {
	checkDim("M", m, n)
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := range m[:n*n] {
		m[i] = rng.Float64()
	}
}

// FillZero sets every element of m to 0.
func FillZero(m []float64, n int) {
	checkDim("M", m, n)
	clear(m[:n*n])
}

// FillIdentity overwrites m with the n×n identity.
func FillIdentity(m []float64, n int) {
	FillZero(m, n)
	for i := range n {
		m[i*n+i] = 1
	}
}

// Transpose writes srcᵀ into dst: dst[j*n+i] = src[i*n+j].
// dst and src must not overlap.
func Transpose(dst, src []float64, n int) {
	checkDim("dst", dst, n)
	checkDim("src", src, n)
	transposeRows(dst, src, 0, n, n)
}

// TransposeRows transposes rows [rowStart, rowEnd) of src into the matching
// columns of dst. Disjoint row ranges write disjoint columns, so strips can
// be transposed concurrently.
func TransposeRows(dst, src []float64, rowStart, rowEnd, n int) {
	checkDim("dst", dst, n)
	checkDim("src", src, n)
	transposeRows(dst, src, rowStart, rowEnd, n)
}

func transposeRows(dst, src []float64, rowStart, rowEnd, n int) {
	for i := rowStart; i < rowEnd; i++ {
		row := src[i*n : i*n+n]
		for j, v := range row {
			dst[j*n+i] = v
		}
	}
}

// Add computes c = a + b element-wise. c may alias a or b.
func Add(c, a, b []float64, n int) {
	CheckOperands(a, b, c, n)
	a, b, c = a[:n*n], b[:n*n], c[:n*n]
	for i := range c {
		c[i] = a[i] + b[i]
	}
}

// Sub computes c = a - b element-wise. c may alias a or b.
func Sub(c, a, b []float64, n int) {
	CheckOperands(a, b, c, n)
	a, b, c = a[:n*n], b[:n*n], c[:n*n]
	for i := range c {
		c[i] = a[i] - b[i]
	}
}

// MaxAbsDiff returns max |a[i]-b[i]| over the n×n elements.
// A NaN on either side yields +Inf so it never compares equal.
func MaxAbsDiff(a, b []float64, n int) float64 {
	checkDim("A", a, n)
	checkDim("B", b, n)
	var worst float64
	for i := range a[:n*n] {
		d := math.Abs(a[i] - b[i])
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		worst = max(worst, d)
	}
	return worst
}

// Compare reports whether a and b agree element-wise within tolerance
// (absolute difference).
func Compare(a, b []float64, n int, tolerance float64) bool {
	return MaxAbsDiff(a, b, n) <= tolerance
}

// Checksum returns the sum of all elements. It is a cheap fingerprint for
// diagnostics, not a correctness proof.
func Checksum(m []float64, n int) float64 {
	checkDim("M", m, n)
	return lo.Sum(m[:n*n])
}

// Format renders at most limit rows and columns of m, eliding the rest with
// "...".
func Format(m []float64, n, limit int) string {
	checkDim("M", m, n)
	show := min(n, max(limit, 1))
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matrix (%dx%d):\n", n, n)
	for i := range show {
		for j := range show {
			fmt.Fprintf(&sb, "%8.4f ", m[i*n+j])
		}
		if show < n {
			sb.WriteString("...")
		}
		sb.WriteByte('\n')
	}
	if show < n {
		sb.WriteString("...\n")
	}
	return sb.String()
}
