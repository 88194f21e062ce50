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

// Command gemm runs, verifies and benchmarks the matrix multiplication
// kernels.
//
// Usage:
//
//	gemm run 1000 serial naive
//	gemm run 1000 parallel strassen --threads 8
//	gemm run 1000 distributed proposed --procs 4
//	gemm run 1000 hybrid proposed --procs 2 --threads 4
//	gemm verify --n 100
//	gemm bench --sizes 256,512,1024 --runs 5 --results-dir results
//
// Approaches: serial | parallel (openmp) | distributed (mpi) | hybrid.
// Algorithms: naive | strassen | proposed (blocked) | blas.
//
// Settings are read from the environment, optionally from a .env file in
// the working directory or one of its parents: RESULTS_DIR, RESULTS_FORMAT,
// RESULTS_FILE_BASENAME, MACHINE_ID, RESULTS_NOTE, GEMM_THREADS and
// GEMM_PROCS. Flags override them.
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		klog.ErrorS(err, "gemm failed")
		klog.Flush()
		os.Exit(1)
	}
}
