// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import "errors"

// Sentinel errors. Callers match them with errors.Is; kernels wrap them with
// call-site context.
//
// Precondition violations (n <= 0, short buffers) are programmer errors and
// panic instead of returning one of these.
var (
	// ErrInvalidDimension is returned when a dimension read from
	// configuration or user input is not positive.
	ErrInvalidDimension = errors.New("gemm: dimension must be > 0")

	// ErrOutOfMemory is returned when an allocation would exceed the
	// allocator budget.
	ErrOutOfMemory = errors.New("gemm: allocation exceeds memory budget")

	// ErrUnsupported is returned for (algorithm, model) pairs that have no
	// kernel, e.g. the reference baseline under the parallel model.
	ErrUnsupported = errors.New("gemm: unsupported algorithm/model combination")

	// ErrUnknownAlgorithm is returned by ParseAlgorithm.
	ErrUnknownAlgorithm = errors.New("gemm: unknown algorithm")

	// ErrUnknownModel is returned by ParseModel.
	ErrUnknownModel = errors.New("gemm: unknown execution model")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("gemm: invalid config")
)
