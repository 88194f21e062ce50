// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Algorithm names a multiplication algorithm.
type Algorithm int

const (
	// Naive is the reference triple loop.
	Naive Algorithm = iota

	// Strassen is the recursive seven-product decomposition with
	// power-of-two padding.
	Strassen

	// Blocked is the transpose-then-tile cache-blocked kernel.
	Blocked

	// Reference is the external BLAS baseline, used only for performance
	// comparison.
	Reference
)

var algorithmNames = map[Algorithm]string{
	Naive:     "naive",
	Strassen:  "strassen",
	Blocked:   "proposed",
	Reference: "blas",
}

var algorithmAliases = map[string]Algorithm{
	"naive":     Naive,
	"strassen":  Strassen,
	"recursive": Strassen,
	"proposed":  Blocked,
	"blocked":   Blocked,
	"blas":      Reference,
	"reference": Reference,
}

// String returns the canonical name used on the command line and in
// experiment records.
func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a name or alias to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	if a, ok := algorithmAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a, nil
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownAlgorithm, s, strings.Join(AlgorithmNames(), ", "))
}

// Algorithms lists every algorithm in declaration order.
func Algorithms() []Algorithm {
	return []Algorithm{Naive, Strassen, Blocked, Reference}
}

// AlgorithmNames lists the canonical algorithm names.
func AlgorithmNames() []string {
	return lo.Map(Algorithms(), func(a Algorithm, _ int) string { return a.String() })
}

// Model names an execution model.
type Model int

const (
	// Serial runs on the calling goroutine.
	Serial Model = iota

	// Parallel runs on a fixed-size shared-memory worker pool.
	Parallel

	// Distributed partitions rows over independent ranks, each computing
	// serially.
	Distributed

	// Hybrid partitions rows over ranks, each computing on its own worker
	// pool.
	Hybrid
)

var modelNames = map[Model]string{
	Serial:      "serial",
	Parallel:    "parallel",
	Distributed: "distributed",
	Hybrid:      "hybrid",
}

var modelAliases = map[string]Model{
	"serial":      Serial,
	"parallel":    Parallel,
	"openmp":      Parallel,
	"distributed": Distributed,
	"mpi":         Distributed,
	"hybrid":      Hybrid,
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel maps a name or alias to a Model.
func ParseModel(s string) (Model, error) {
	if m, ok := modelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownModel, s, strings.Join(ModelNames(), ", "))
}

// Models lists every execution model in declaration order.
func Models() []Model {
	return []Model{Serial, Parallel, Distributed, Hybrid}
}

// ModelNames lists the canonical model names.
func ModelNames() []string {
	return lo.Map(Models(), func(m Model, _ int) string { return m.String() })
}

// IsDistributed reports whether m partitions work across ranks.
func (m Model) IsDistributed() bool {
	return m == Distributed || m == Hybrid
}

// LocalModel returns the shared-memory model each rank uses under m:
// Hybrid ranks compute in parallel, every other model computes serially.
func (m Model) LocalModel() Model {
	switch m {
	case Parallel, Hybrid:
		return Parallel
	default:
		return Serial
	}
}

// Kernel computes C = A·B for n×n row-major matrices. Every
// (algorithm, model) variant implements it.
type Kernel interface {
	// Apply overwrites c with a·b. It returns ErrOutOfMemory (wrapped) when
	// temporaries cannot be allocated and panics on precondition
	// violations.
	Apply(a, b, c []float64, n int) error

	Algorithm() Algorithm
	Model() Model

	// SharedMemory reports whether the kernel runs on a worker pool.
	SharedMemory() bool

	// Close releases the kernel's worker pool, if it owns one.
	Close() error
}

// RowKernel is implemented by kernels that can compute a row partition: a is
// rows×n, b is n×n and c is rows×n.
type RowKernel interface {
	Kernel
	ApplyRows(a, b, c []float64, rows, n int) error
}

// KernelName returns "algorithm/model", e.g. "strassen/parallel".
func KernelName(k Kernel) string {
	return k.Algorithm().String() + "/" + k.Model().String()
}
