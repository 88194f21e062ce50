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

// Package gemm holds the shared pieces of the dense matrix multiplication
// engine: square row-major float64 storage, the budgeted allocator and
// per-call arenas used for temporaries, the tuning Config, and the Kernel
// interface implemented by every (algorithm, execution model) pair.
//
// A matrix is a plain []float64 of length n*n, element (i, j) at i*n+j.
// Every function takes n explicitly:
//
//	a := gemm.New(n)
//	b := gemm.New(n)
//	c := gemm.New(n)
//	gemm.FillRandom(a, n, 42)
//	gemm.FillRandom(b, n, 123)
//
//	k, _ := matmul.New(gemm.Blocked, gemm.Parallel, gemm.DefaultConfig())
//	_ = k.Apply(a, b, c, n)
//
// Kernels live in contrib/matmul; the row-partitioned distributed
// coordinator lives in contrib/distributed.
package gemm
