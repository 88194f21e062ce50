// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPanicsOnNonPositive(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-3) })
	assert.Len(t, New(3), 9)
}

func TestFillRandomReproducible(t *testing.T) {
	n := 16
	a, b, c := New(n), New(n), New(n)
	FillRandom(a, n, 42)
	FillRandom(b, n, 42)
	FillRandom(c, n, 123)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestFillIdentity(t *testing.T) {
	n := 5
	m := New(n)
	FillRandom(m, n, 1)
	FillIdentity(m, n)
	for i := range n {
		for j := range n {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.Equal(t, want, m[i*n+j], "m[%d][%d]", i, j)
		}
	}
}

func TestTranspose(t *testing.T) {
	n := 7
	src, dst, back := New(n), New(n), New(n)
	FillRandom(src, n, 9)
	Transpose(dst, src, n)
	for i := range n {
		for j := range n {
			require.Equal(t, src[i*n+j], dst[j*n+i])
		}
	}
	Transpose(back, dst, n)
	assert.Equal(t, src, back)
}

func TestTransposeRowsStrips(t *testing.T) {
	n := 10
	src, whole, strips := New(n), New(n), New(n)
	FillRandom(src, n, 3)
	Transpose(whole, src, n)
	for start := 0; start < n; start += 3 {
		TransposeRows(strips, src, start, min(start+3, n), n)
	}
	assert.Equal(t, whole, strips)
}

func TestAddSub(t *testing.T) {
	n := 4
	a, b, sum, diff := New(n), New(n), New(n), New(n)
	FillRandom(a, n, 1)
	FillRandom(b, n, 2)
	Add(sum, a, b, n)
	Sub(diff, sum, b, n)
	assert.True(t, Compare(diff, a, n, 1e-12))

	// In-place: a = a - a.
	Sub(a, a, a, n)
	assert.Zero(t, Checksum(a, n))
}

func TestCompareAndMaxAbsDiff(t *testing.T) {
	n := 3
	a, b := New(n), New(n)
	FillRandom(a, n, 5)
	copy(b, a)
	assert.True(t, Compare(a, b, n, 0))

	b[4] += 1e-7
	assert.InDelta(t, 1e-7, MaxAbsDiff(a, b, n), 1e-12)
	assert.True(t, Compare(a, b, n, 1e-6))
	assert.False(t, Compare(a, b, n, 1e-8))

	b[0] = math.NaN()
	assert.True(t, math.IsInf(MaxAbsDiff(a, b, n), 1))
	assert.False(t, Compare(a, b, n, 1e9))
}

func TestChecksum(t *testing.T) {
	n := 6
	m := New(n)
	FillIdentity(m, n)
	assert.Equal(t, 6.0, Checksum(m, n))
}

func TestShortSlicePanics(t *testing.T) {
	assert.PanicsWithValue(t, "gemm: C slice too short: len=3, need 4", func() {
		CheckOperands(make([]float64, 4), make([]float64, 4), make([]float64, 3), 2)
	})
}

func TestFormat(t *testing.T) {
	n := 4
	m := New(n)
	FillIdentity(m, n)

	full := Format(m, n, 10)
	assert.True(t, strings.HasPrefix(full, "Matrix (4x4):\n"))
	assert.NotContains(t, full, "...")

	cut := Format(m, n, 2)
	assert.Contains(t, cut, "...")
	assert.Equal(t, 4, strings.Count(cut, "\n"))
}
