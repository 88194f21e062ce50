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

package gemm

import (
	"fmt"
	"runtime"
)

// Default tuning parameters.
const (
	// DefaultBaseCase is the recursive kernel's dimension at or below which
	// it switches to the triple loop.
	DefaultBaseCase = 64

	// DefaultParallelCutoff is the dimension at or above which the parallel
	// recursive kernel dispatches its seven products as concurrent tasks.
	DefaultParallelCutoff = 256

	// DefaultTileSize is the cache-blocked kernel's tile edge.
	// 3 tiles of 64x64 float64 = 3 * 64 * 64 * 8 = 96KB, sized for L2 with
	// the active A and B' rows hot in L1.
	DefaultTileSize = 64
)

// Config carries the tuning and resource parameters consumed by kernels and
// the distributed coordinator. It is passed explicitly; nothing in the core
// reads process-wide state.
type Config struct {
	// Threads is the worker count for shared-memory kernels.
	// 0 means runtime.GOMAXPROCS(0).
	Threads int

	// BaseCase is the recursive kernel's triple-loop threshold.
	BaseCase int

	// ParallelCutoff is the recursive kernel's task-spawning threshold.
	ParallelCutoff int

	// TileSize is the cache-blocked kernel's tile edge.
	TileSize int

	// MaxBytes bounds the memory handed out by the Allocator built from this
	// Config. 0 means unlimited.
	MaxBytes int64
}

// DefaultConfig returns the recommended parameters with Threads set to the
// number of usable CPUs.
func DefaultConfig() Config {
	return Config{
		Threads:        runtime.GOMAXPROCS(0),
		BaseCase:       DefaultBaseCase,
		ParallelCutoff: DefaultParallelCutoff,
		TileSize:       DefaultTileSize,
	}
}

// Validate reports whether every field is usable.
func (c Config) Validate() error {
	switch {
	case c.Threads < 0:
		return fmt.Errorf("%w: threads=%d", ErrInvalidConfig, c.Threads)
	case c.BaseCase < 1:
		return fmt.Errorf("%w: base case=%d", ErrInvalidConfig, c.BaseCase)
	case c.ParallelCutoff < c.BaseCase:
		return fmt.Errorf("%w: parallel cutoff %d below base case %d", ErrInvalidConfig, c.ParallelCutoff, c.BaseCase)
	case c.TileSize < 1:
		return fmt.Errorf("%w: tile size=%d", ErrInvalidConfig, c.TileSize)
	case c.MaxBytes < 0:
		return fmt.Errorf("%w: max bytes=%d", ErrInvalidConfig, c.MaxBytes)
	}
	return nil
}

// EffectiveThreads returns Threads, or GOMAXPROCS when Threads is 0.
func (c Config) EffectiveThreads() int {
	if c.Threads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Threads
}

// NewAllocator returns an Allocator bounded by MaxBytes.
func (c Config) NewAllocator() *Allocator {
	return NewAllocator(c.MaxBytes)
}
