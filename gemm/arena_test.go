// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorBudget(t *testing.T) {
	// Room for exactly two 4x4 buffers.
	al := NewAllocator(2 * 16 * 8)

	a, err := al.Alloc(4)
	require.NoError(t, err)
	b, err := al.Alloc(4)
	require.NoError(t, err)

	_, err = al.Alloc(4)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(2*16*8), al.LiveBytes())

	al.Free(a)
	c, err := al.Alloc(4)
	require.NoError(t, err)
	al.Free(b)
	al.Free(c)
	assert.Zero(t, al.LiveBytes())
	assert.Equal(t, int64(2*16*8), al.PeakBytes())
}

func TestAllocatorReturnsZeroedBuffers(t *testing.T) {
	al := NewAllocator(0)
	for range 4 {
		buf, err := al.Alloc(3)
		require.NoError(t, err)
		for i, v := range buf {
			require.Zero(t, v, "buf[%d]", i)
			buf[i] = float64(i + 1)
		}
		al.Free(buf)
	}
}

func TestArenaReleaseOnErrorPath(t *testing.T) {
	al := NewAllocator(5 * 4 * 8) // five 2x2 buffers
	run := func() error {
		arena := al.NewArena()
		defer arena.Release()
		_, err := arena.AllocN(2, 8)
		return err
	}

	err := run()
	require.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Zero(t, al.LiveBytes(), "arena must release partial allocations")
}

func TestArenaReuse(t *testing.T) {
	al := NewAllocator(0)
	arena := al.NewArena()
	bufs, err := arena.AllocN(8, 3)
	require.NoError(t, err)
	require.Len(t, bufs, 3)
	assert.Equal(t, 3, arena.Len())

	arena.Release()
	assert.Zero(t, arena.Len())
	assert.Zero(t, al.LiveBytes())

	_, err = arena.Alloc(8)
	require.NoError(t, err)
	arena.Release()
}

func TestAllocatorConcurrent(t *testing.T) {
	al := NewAllocator(0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arena := al.NewArena()
			defer arena.Release()
			for range 10 {
				_, err := arena.Alloc(16)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, al.LiveBytes())
}

func TestArenaAllocRows(t *testing.T) {
	al := NewAllocator(3 * 10 * 8)
	arena := al.NewArena()
	defer arena.Release()

	empty, err := arena.AllocRows(0, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Zero(t, arena.Len())

	part, err := arena.AllocRows(3, 10)
	require.NoError(t, err)
	assert.Len(t, part, 30)
	assert.Equal(t, int64(240), al.LiveBytes())

	_, err = arena.AllocRows(1, 10)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Panics(t, func() { _, _ = arena.AllocRows(-1, 10) })
}
