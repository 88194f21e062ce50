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

// Package matmul provides the square float64 matrix multiplication kernels.
//
// Three algorithms are available, each serial and parallel:
//
//   - Naive: the i-k-j triple loop. The ground truth for every comparison.
//   - Strassen: recursive seven-product decomposition with power-of-two
//     padding, O(n^2.807). The parallel variant forks the seven products as
//     structured tasks above a size cutoff. Row partitions are multiplied
//     block by block through the same recursion.
//   - Blocked: transposes B, then accumulates 64×64 tiles so both operands
//     stream row-major. The parallel variant distributes output tiles.
//
// A BLAS baseline (gonum) is available under the serial model for
// performance comparison.
//
// Example usage:
//
//	k, err := matmul.New(gemm.Strassen, gemm.Parallel, gemm.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer k.Close()
//
//	// C = A * B, all n×n row-major
//	err = k.Apply(a, b, c, n)
//
// Parallel kernels give bit-identical results for any thread count: every
// output element is produced by one worker with a fixed accumulation order.
package matmul
