// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const float64Bytes = 8

// Allocator hands out float64 buffers under an optional byte budget and
// recycles released buffers by size. It is safe for concurrent use.
//
// The budget turns resource exhaustion into an ErrOutOfMemory return instead
// of a runtime abort, so the kernels can report it to the caller.
type Allocator struct {
	maxBytes int64 // 0 = unlimited
	live     atomic.Int64
	peak     atomic.Int64

	pools sync.Map // int (elements) -> *sync.Pool of *[]float64
}

// NewAllocator returns an allocator that refuses to hold more than maxBytes
// at once. maxBytes <= 0 means unlimited.
func NewAllocator(maxBytes int64) *Allocator {
	return &Allocator{maxBytes: max(maxBytes, 0)}
}

// Alloc returns a zeroed n×n buffer.
func (al *Allocator) Alloc(n int) ([]float64, error) {
	if n <= 0 {
		panic(fmt.Sprintf("gemm: non-positive dimension %d", n))
	}
	p, err := al.alloc(n * n)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (al *Allocator) alloc(elems int) (*[]float64, error) {
	bytes := int64(elems) * float64Bytes
	live := al.live.Add(bytes)
	if al.maxBytes > 0 && live > al.maxBytes {
		al.live.Add(-bytes)
		return nil, fmt.Errorf("%w: %d elements need %d bytes, %d of %d in use",
			ErrOutOfMemory, elems, bytes, live-bytes, al.maxBytes)
	}
	for {
		peak := al.peak.Load()
		if live <= peak || al.peak.CompareAndSwap(peak, live) {
			break
		}
	}

	pool := al.pool(elems)
	if p, ok := pool.Get().(*[]float64); ok {
		clear(*p)
		return p, nil
	}
	buf := make([]float64, elems)
	return &buf, nil
}

func (al *Allocator) pool(elems int) *sync.Pool {
	if p, ok := al.pools.Load(elems); ok {
		return p.(*sync.Pool)
	}
	p, _ := al.pools.LoadOrStore(elems, &sync.Pool{})
	return p.(*sync.Pool)
}

// Free returns a buffer obtained from Alloc. The caller must not use it
// afterwards.
func (al *Allocator) Free(buf []float64) {
	if buf == nil {
		return
	}
	al.free(&buf)
}

func (al *Allocator) free(p *[]float64) {
	elems := len(*p)
	al.live.Add(-int64(elems) * float64Bytes)
	al.pool(elems).Put(p)
}

// LiveBytes reports the bytes currently handed out.
func (al *Allocator) LiveBytes() int64 { return al.live.Load() }

// PeakBytes reports the high-water mark of LiveBytes.
func (al *Allocator) PeakBytes() int64 { return al.peak.Load() }

// Arena groups the temporaries of one call frame so they can be released
// together on every exit path:
//
//	arena := alloc.NewArena()
//	defer arena.Release()
//
// An Arena is owned by a single goroutine.
type Arena struct {
	alloc *Allocator
	bufs  []*[]float64
}

// NewArena returns an empty arena backed by al.
func (al *Allocator) NewArena() *Arena {
	return &Arena{alloc: al}
}

// Alloc returns a zeroed n×n buffer owned by the arena.
func (a *Arena) Alloc(n int) ([]float64, error) {
	if n <= 0 {
		panic(fmt.Sprintf("gemm: non-positive dimension %d", n))
	}
	return a.allocElems(n * n)
}

// AllocRows returns a zeroed rows×n buffer owned by the arena, such as one
// rank's partition. rows may be 0.
func (a *Arena) AllocRows(rows, n int) ([]float64, error) {
	if n <= 0 || rows < 0 {
		panic(fmt.Sprintf("gemm: invalid partition %dx%d", rows, n))
	}
	if rows == 0 {
		return []float64{}, nil
	}
	return a.allocElems(rows * n)
}

func (a *Arena) allocElems(elems int) ([]float64, error) {
	p, err := a.alloc.alloc(elems)
	if err != nil {
		return nil, err
	}
	a.bufs = append(a.bufs, p)
	return *p, nil
}

// AllocN allocates count n×n buffers, stopping at the first failure. Buffers
// obtained before the failure stay owned by the arena.
func (a *Arena) AllocN(n, count int) ([][]float64, error) {
	out := make([][]float64, count)
	for i := range out {
		buf, err := a.Alloc(n)
		if err != nil {
			return nil, err
		}
		out[i] = buf
	}
	return out, nil
}

// Len returns the number of buffers the arena currently owns.
func (a *Arena) Len() int { return len(a.bufs) }

// Release frees every buffer. The arena can be reused afterwards.
func (a *Arena) Release() {
	for i, p := range a.bufs {
		a.alloc.free(p)
		a.bufs[i] = nil
	}
	a.bufs = a.bufs[:0]
}
