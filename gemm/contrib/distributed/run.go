// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RankFunc is the body executed by every rank of a world.
type RankFunc func(ctx context.Context, comm Comm) error

// Run executes fn on every rank of w concurrently and waits for all of
// them. The first rank to fail aborts the world, which unblocks the others,
// and its error is returned in preference to the ErrAborted errors it
// caused.
func Run(ctx context.Context, w *World, fn RankFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	for rank := range w.Size() {
		comm := w.Comm(rank)
		g.Go(func() error {
			if err := fn(ctx, comm); err != nil {
				w.Abort(err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	if cause := w.Err(); cause != nil {
		return cause
	}
	return err
}
