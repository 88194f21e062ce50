// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"fmt"

	"github.com/samber/lo"
)

// Partition is the contiguous block of rows of A and C owned by one rank.
type Partition struct {
	Rank   int
	Rows   int
	Offset int // first row
}

// Elems returns the number of matrix elements in the partition.
func (p Partition) Elems(n int) int { return p.Rows * n }

// ElemOffset returns the index of the partition's first element.
func (p Partition) ElemOffset(n int) int { return p.Offset * n }

// PartitionFor returns rank's share of n rows over procs ranks. Every rank
// gets n/procs rows and the first n%procs ranks one more.
func PartitionFor(n, procs, rank int) Partition {
	if n <= 0 || procs <= 0 || rank < 0 || rank >= procs {
		panic(fmt.Sprintf("distributed: invalid partition request n=%d procs=%d rank=%d", n, procs, rank))
	}
	base, rem := n/procs, n%procs
	rows := base
	if rank < rem {
		rows++
	}
	return Partition{
		Rank:   rank,
		Rows:   rows,
		Offset: rank*base + min(rank, rem),
	}
}

// Partitions returns the partitions of all ranks in rank order. They are
// disjoint and cover [0, n).
func Partitions(n, procs int) []Partition {
	return lo.Times(procs, func(rank int) Partition {
		return PartitionFor(n, procs, rank)
	})
}

// Layout returns the per-rank element counts and displacements used by
// Scatterv and Gatherv.
func Layout(parts []Partition, n int) (counts, displs []int) {
	counts = lo.Map(parts, func(p Partition, _ int) int { return p.Elems(n) })
	displs = lo.Map(parts, func(p Partition, _ int) int { return p.ElemOffset(n) })
	return counts, displs
}
