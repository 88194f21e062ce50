// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package matmul

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/workerpool"
)

const tolerance = 1e-6

// operands returns A (seed 42), B (seed 123) and the naive product.
func operands(n int) (a, b, want []float64) {
	a, b, want = gemm.New(n), gemm.New(n), gemm.New(n)
	gemm.FillRandom(a, n, 42)
	gemm.FillRandom(b, n, 123)
	NaiveMatMul(a, b, want, n)
	return a, b, want
}

// smallConfig makes the recursive kernel recurse and fork at test sizes.
func smallConfig(threads int) gemm.Config {
	cfg := gemm.DefaultConfig()
	cfg.Threads = threads
	cfg.BaseCase = 8
	cfg.ParallelCutoff = 16
	cfg.TileSize = 16
	return cfg
}

// supported lists every (algorithm, model) pair New accepts.
func supported() [][2]int {
	var out [][2]int
	for _, alg := range gemm.Algorithms() {
		for _, model := range []gemm.Model{gemm.Serial, gemm.Parallel} {
			if alg == gemm.Reference && model == gemm.Parallel {
				continue
			}
			out = append(out, [2]int{int(alg), int(model)})
		}
	}
	return out
}

func TestNaiveMatMulIdentity(t *testing.T) {
	n := 9
	a, id, c := gemm.New(n), gemm.New(n), gemm.New(n)
	gemm.FillRandom(a, n, 7)
	gemm.FillIdentity(id, n)

	NaiveMatMul(a, id, c, n)
	assert.Equal(t, a, c)
	NaiveMatMul(id, a, c, n)
	assert.Equal(t, a, c)
}

func TestNaiveMatMulSmall(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	c := make([]float64, 4)
	NaiveMatMul(a, b, c, 2)
	assert.Equal(t, []float64{19, 22, 43, 50}, c)
}

func TestKernelsMatchNaive(t *testing.T) {
	for _, n := range []int{1, 2, 7, 16, 33, 64, 100, 128} {
		a, b, want := operands(n)
		for _, pair := range supported() {
			alg, model := gemm.Algorithm(pair[0]), gemm.Model(pair[1])
			t.Run(fmt.Sprintf("%s/%s/%d", alg, model, n), func(t *testing.T) {
				k, err := New(alg, model, smallConfig(4))
				require.NoError(t, err)
				defer k.Close()

				c := gemm.New(n)
				require.NoError(t, k.Apply(a, b, c, n))

				var maxErr float64
				for i := range c {
					maxErr = max(maxErr, math.Abs(c[i]-want[i]))
				}
				if maxErr > tolerance {
					t.Errorf("max error %v exceeds tolerance %v", maxErr, tolerance)
				}
			})
		}
	}
}

func TestDefaultConfigSeeds(t *testing.T) {
	n := 128
	a, b, want := operands(n)
	for _, pair := range supported() {
		alg, model := gemm.Algorithm(pair[0]), gemm.Model(pair[1])
		t.Run(fmt.Sprintf("%s/%s", alg, model), func(t *testing.T) {
			k := MustNew(alg, model, gemm.DefaultConfig())
			defer k.Close()

			c := gemm.New(n)
			require.NoError(t, k.Apply(a, b, c, n))
			assert.True(t, gemm.Compare(want, c, n, tolerance), "max diff %g", gemm.MaxAbsDiff(want, c, n))
		})
	}
}

func TestStrassenPadding(t *testing.T) {
	// 100 pads to 128; 65 pads to 128 with base case 64.
	for _, tc := range []struct{ n, base int }{{100, 16}, {65, 64}, {100, 64}, {17, 4}} {
		t.Run(fmt.Sprintf("n=%d/base=%d", tc.n, tc.base), func(t *testing.T) {
			a, b, want := operands(tc.n)
			cfg := gemm.DefaultConfig()
			cfg.BaseCase = tc.base
			cfg.ParallelCutoff = tc.base
			for _, model := range []gemm.Model{gemm.Serial, gemm.Parallel} {
				alloc := gemm.NewAllocator(0)
				k := MustNew(gemm.Strassen, model, cfg, WithAllocator(alloc))
				c := gemm.New(tc.n)
				require.NoError(t, k.Apply(a, b, c, tc.n))
				require.NoError(t, k.Close())

				assert.True(t, gemm.Compare(want, c, tc.n, tolerance), "%s: max diff %g", model, gemm.MaxAbsDiff(want, c, tc.n))
				assert.Zero(t, alloc.LiveBytes(), "%s leaked temporaries", model)
			}
		})
	}
}

func TestStrassenAtBaseCaseIsNaive(t *testing.T) {
	n := 48
	a, b, want := operands(n)
	k := MustNew(gemm.Strassen, gemm.Serial, gemm.DefaultConfig())
	c := gemm.New(n)
	require.NoError(t, k.Apply(a, b, c, n))
	assert.Equal(t, want, c)
}

func TestBlockedSingleTileIsNaive(t *testing.T) {
	// With one kk block each element is a single dot product, accumulated in
	// the naive order.
	n := 50
	a, b, want := operands(n)
	cfg := gemm.DefaultConfig()
	cfg.TileSize = 64
	k := MustNew(gemm.Blocked, gemm.Serial, cfg)
	c := gemm.New(n)
	require.NoError(t, k.Apply(a, b, c, n))
	assert.Equal(t, want, c)
}

func TestParallelBitIdenticalAcrossThreads(t *testing.T) {
	n := 96
	a, b, _ := operands(n)
	for _, alg := range []gemm.Algorithm{gemm.Naive, gemm.Strassen, gemm.Blocked} {
		t.Run(alg.String(), func(t *testing.T) {
			serial := gemm.New(n)
			require.NoError(t, MustNew(alg, gemm.Serial, smallConfig(1)).Apply(a, b, serial, n))

			for _, threads := range []int{1, 2, 3, 4, 8} {
				k := MustNew(alg, gemm.Parallel, smallConfig(threads))
				c := gemm.New(n)
				require.NoError(t, k.Apply(a, b, c, n))
				require.NoError(t, k.Close())
				assert.Equal(t, serial, c, "threads=%d", threads)
			}
		})
	}
}

func TestApplyOverwritesC(t *testing.T) {
	n := 40
	a, b, _ := operands(n)
	for _, pair := range supported() {
		alg, model := gemm.Algorithm(pair[0]), gemm.Model(pair[1])
		t.Run(fmt.Sprintf("%s/%s", alg, model), func(t *testing.T) {
			k := MustNew(alg, model, smallConfig(3))
			defer k.Close()

			clean := gemm.New(n)
			require.NoError(t, k.Apply(a, b, clean, n))

			dirty := gemm.New(n)
			gemm.FillRandom(dirty, n, 99)
			require.NoError(t, k.Apply(a, b, dirty, n))
			assert.Equal(t, clean, dirty)

			// Second application over its own output.
			require.NoError(t, k.Apply(a, b, dirty, n))
			assert.Equal(t, clean, dirty)
		})
	}
}

func TestApplyRows(t *testing.T) {
	n := 37
	a, b, want := operands(n)
	for _, pair := range supported() {
		alg, model := gemm.Algorithm(pair[0]), gemm.Model(pair[1])
		k := MustNew(alg, model, smallConfig(4))
		rk, ok := k.(gemm.RowKernel)
		require.True(t, ok, "%s/%s", alg, model)

		t.Run(gemm.KernelName(k), func(t *testing.T) {
			for _, part := range [][2]int{{0, 10}, {10, 27}, {27, 37}, {5, 5}} {
				rows := part[1] - part[0]
				c := make([]float64, rows*n)
				require.NoError(t, rk.ApplyRows(a[part[0]*n:], b, c, rows, n))
				for i := range rows * n {
					assert.InDelta(t, want[part[0]*n+i], c[i], tolerance)
				}
			}
		})
		k.Close()
	}
}

func TestOutOfMemory(t *testing.T) {
	n := 64
	a, b, _ := operands(n)
	for _, tc := range []struct {
		alg      gemm.Algorithm
		maxBytes int64
	}{
		// Room for a few quadrants, not a whole recursion frame.
		{gemm.Strassen, 4 * 32 * 32 * 8},
		// No room for the transposed B.
		{gemm.Blocked, 8},
	} {
		for _, model := range []gemm.Model{gemm.Serial, gemm.Parallel} {
			t.Run(fmt.Sprintf("%s/%s", tc.alg, model), func(t *testing.T) {
				alloc := gemm.NewAllocator(tc.maxBytes)
				k := MustNew(tc.alg, model, smallConfig(4), WithAllocator(alloc))
				defer k.Close()

				err := k.Apply(a, b, gemm.New(n), n)
				require.Error(t, err)
				assert.True(t, errors.Is(err, gemm.ErrOutOfMemory), "got %v", err)
				assert.Zero(t, alloc.LiveBytes())
			})
		}
	}
}

func TestStrassenTaskOutOfMemory(t *testing.T) {
	n := 64
	a, b, _ := operands(n)
	frame := int64(15 * 32 * 32 * 8)
	// Room for the top frame and a couple of operand scratches, none for the
	// recursion of a product.
	alloc := gemm.NewAllocator(frame + 4*32*32*8)
	k := MustNew(gemm.Strassen, gemm.Parallel, smallConfig(4), WithAllocator(alloc))
	defer k.Close()

	err := k.Apply(a, b, gemm.New(n), n)
	require.Error(t, err)
	assert.ErrorIs(t, err, gemm.ErrOutOfMemory)
	assert.Greater(t, alloc.PeakBytes(), frame, "failure must come from a product task")
	assert.Zero(t, alloc.LiveBytes())
}

func TestStrassenRowsBlocks(t *testing.T) {
	n := 100
	a, b, want := operands(n)
	for _, model := range []gemm.Model{gemm.Serial, gemm.Parallel} {
		alloc := gemm.NewAllocator(0)
		k := MustNew(gemm.Strassen, model, smallConfig(4), WithAllocator(alloc))
		rk := k.(gemm.RowKernel)

		// 40 rows make 64×64 blocks that overhang both the partition and
		// the 100 columns.
		rows, offset := 40, 30
		c := make([]float64, rows*n)
		for i := range c {
			c[i] = math.NaN()
		}
		require.NoError(t, rk.ApplyRows(a[offset*n:], b, c, rows, n))
		for i := range rows * n {
			require.InDelta(t, want[offset*n+i], c[i], tolerance, "%s: element %d", model, i)
		}
		assert.Positive(t, alloc.PeakBytes())
		assert.Zero(t, alloc.LiveBytes())
		k.Close()
	}
}

func TestNewUnsupported(t *testing.T) {
	cfg := gemm.DefaultConfig()
	for _, tc := range []struct {
		alg   gemm.Algorithm
		model gemm.Model
	}{
		{gemm.Reference, gemm.Parallel},
		{gemm.Naive, gemm.Distributed},
		{gemm.Blocked, gemm.Hybrid},
	} {
		_, err := New(tc.alg, tc.model, cfg)
		assert.ErrorIs(t, err, gemm.ErrUnsupported, "%s/%s", tc.alg, tc.model)
	}

	_, err := New(gemm.Algorithm(42), gemm.Serial, cfg)
	assert.ErrorIs(t, err, gemm.ErrUnknownAlgorithm)

	bad := cfg
	bad.TileSize = 0
	_, err = New(gemm.Blocked, gemm.Serial, bad)
	assert.ErrorIs(t, err, gemm.ErrInvalidConfig)
}

func TestKernelTags(t *testing.T) {
	k := MustNew(gemm.Blocked, gemm.Parallel, smallConfig(2))
	defer k.Close()
	assert.Equal(t, gemm.Blocked, k.Algorithm())
	assert.Equal(t, gemm.Parallel, k.Model())
	assert.True(t, k.SharedMemory())
	assert.Equal(t, "proposed/parallel", gemm.KernelName(k))

	s := MustNew(gemm.Naive, gemm.Serial, smallConfig(2))
	assert.False(t, s.SharedMemory())
	assert.NoError(t, s.Close())
}

func TestSharedPoolNotClosed(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	n := 20
	a, b, want := operands(n)
	for range 2 {
		k := MustNew(gemm.Naive, gemm.Parallel, smallConfig(2), WithPool(pool))
		c := gemm.New(n)
		require.NoError(t, k.Apply(a, b, c, n))
		require.NoError(t, k.Close())
		assert.Equal(t, want, c)
	}
}

func TestShortSlicePanics(t *testing.T) {
	k := MustNew(gemm.Blocked, gemm.Serial, gemm.DefaultConfig())
	assert.PanicsWithValue(t, "gemm: C slice too short: len=3, need 4", func() {
		_ = k.Apply(make([]float64, 4), make([]float64, 4), make([]float64, 3), 2)
	})
	assert.Panics(t, func() { NaiveMatMul(nil, nil, nil, 0) })
	assert.PanicsWithValue(t, "matmul: B slice too short", func() {
		NaiveRows(nil, make([]float64, 4), make([]float64, 3), make([]float64, 4), 2, 2)
	})
}

func TestNextPowerOfTwo(t *testing.T) {
	for _, tc := range []struct{ n, want int }{
		{1, 1}, {2, 2}, {3, 4}, {64, 64}, {65, 128}, {100, 128}, {1000, 1024},
	} {
		assert.Equal(t, tc.want, nextPowerOfTwo(tc.n), "n=%d", tc.n)
	}
}

func TestParallelTranspose(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Close()

	for _, n := range []int{3, 64, 130} {
		src, want, got := gemm.New(n), gemm.New(n), gemm.New(n)
		gemm.FillRandom(src, n, uint64(n))
		gemm.Transpose(want, src, n)
		ParallelTranspose(pool, got, src, n)
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func BenchmarkKernels(b *testing.B) {
	for _, n := range []int{128, 256} {
		a, bm, _ := operands(n)
		c := gemm.New(n)
		for _, pair := range supported() {
			alg, model := gemm.Algorithm(pair[0]), gemm.Model(pair[1])
			k := MustNew(alg, model, gemm.DefaultConfig())
			b.Run(fmt.Sprintf("%s/%d", gemm.KernelName(k), n), func(b *testing.B) {
				b.SetBytes(int64(3 * n * n * 8))
				for b.Loop() {
					if err := k.Apply(a, bm, c, n); err != nil {
						b.Fatal(err)
					}
				}
			})
			k.Close()
		}
	}
}
