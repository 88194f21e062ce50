// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides the fixed-size, persistent worker pool behind
// the shared-memory kernels. Workers are started once and reused by every
// parallel loop, so a kernel call pays for channel sends, not goroutine
// spawns.
//
// Every loop is fork-join: the call returns only after all iterations have
// run. There is no cancellation; once entered a loop runs to completion.
//
//	pool := workerpool.New(cfg.EffectiveThreads())
//	defer pool.Close()
//
//	pool.ParallelFor(n, func(start, end int) {
//	    for i := start; i < end; i++ {
//	        computeRow(i)
//	    }
//	})
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool.
type Pool struct {
	workers int
	jobs    chan job
	once    sync.Once
	closed  atomic.Bool
}

type job struct {
	run  func()
	done *sync.WaitGroup
}

// New starts a pool with the given number of workers. workers <= 0 uses
// GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		jobs:    make(chan job, workers*2),
	}
	for range workers {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	for j := range p.jobs {
		j.run()
		j.done.Done()
	}
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the workers once queued jobs finish. It is idempotent. Loops
// issued after Close run on the calling goroutine.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
	})
}

// fanOut runs body on `count` workers and waits for all of them.
func (p *Pool) fanOut(count int, body func(worker int)) {
	var wg sync.WaitGroup
	wg.Add(count)
	for w := range count {
		p.jobs <- job{run: func() { body(w) }, done: &wg}
	}
	wg.Wait()
}

// ParallelFor splits [0, n) into one contiguous chunk per worker and calls
// fn(start, end) for each chunk. Chunks are disjoint, so fn may write the
// slots it owns without locking.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.workers, n)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	chunks := (n + chunk - 1) / chunk
	p.fanOut(chunks, func(w int) {
		start := w * chunk
		fn(start, min(start+chunk, n))
	})
}

// ParallelForAtomic calls fn(i) for every i in [0, n), handing out indices
// through an atomic counter so uneven iterations balance across workers.
// Each index is visited exactly once.
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := min(p.workers, n)
	if workers == 1 || p.closed.Load() {
		for i := range n {
			fn(i)
		}
		return
	}

	var next atomic.Int64
	p.fanOut(workers, func(int) {
		for {
			i := int(next.Add(1)) - 1
			if i >= n {
				return
			}
			fn(i)
		}
	})
}

// ParallelForBatched is ParallelForAtomic over batches of batchSize
// consecutive indices: fn(start, end) receives one batch at a time.
func (p *Pool) ParallelForBatched(n, batchSize int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	batchSize = max(batchSize, 1)
	batches := (n + batchSize - 1) / batchSize
	p.ParallelForAtomic(batches, func(b int) {
		start := b * batchSize
		fn(start, min(start+batchSize, n))
	})
}
