// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.Workers() != runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want %d", pool.Workers(), runtime.GOMAXPROCS(0))
	}
}

func TestParallelForCoversEachIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 4, 16} {
		for _, n := range []int{1, 2, 7, 100, 101} {
			pool := New(workers)
			hits := make([]int32, n)
			pool.ParallelFor(n, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			pool.Close()

			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, h)
				}
			}
		}
	}
}

func TestParallelForAtomic(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 100
	results := make([]int, n)
	pool.ParallelForAtomic(n, func(i int) {
		results[i] = i * 2
	})

	for i := range n {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestParallelForBatched(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 103
	var count atomic.Int32
	pool.ParallelForBatched(n, 10, func(start, end int) {
		if end-start > 10 {
			t.Errorf("batch [%d,%d) larger than 10", start, end)
		}
		count.Add(int32(end - start))
	})

	if count.Load() != int32(n) {
		t.Errorf("count = %d, want %d", count.Load(), n)
	}
}

func TestParallelForZeroN(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	called := false
	pool.ParallelFor(0, func(start, end int) { called = true })
	pool.ParallelForAtomic(0, func(int) { called = true })
	if called {
		t.Error("zero-length loops should not call fn")
	}
}

func TestCloseIdempotent(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close()
}

func TestClosedPoolRunsInline(t *testing.T) {
	pool := New(4)
	pool.Close()

	n := 50
	results := make([]int, n)
	pool.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i + 1
		}
	})
	for i := range n {
		if results[i] != i+1 {
			t.Fatalf("results[%d] = %d, want %d", i, results[i], i+1)
		}
	}
}

func BenchmarkParallelFor(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	n := 1024
	sink := make([]float64, n)
	b.ResetTimer()
	for range b.N {
		pool.ParallelFor(n, func(start, end int) {
			for j := start; j < end; j++ {
				sink[j] = float64(j) * 0.5
			}
		})
	}
}
