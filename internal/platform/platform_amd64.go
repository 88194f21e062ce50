// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64

package platform

import "golang.org/x/sys/cpu"

func cpuFeatures() []string {
	var f []string
	if cpu.X86.HasSSE41 {
		f = append(f, "sse4.1")
	}
	if cpu.X86.HasAVX {
		f = append(f, "avx")
	}
	if cpu.X86.HasAVX2 {
		f = append(f, "avx2")
	}
	if cpu.X86.HasFMA {
		f = append(f, "fma")
	}
	if cpu.X86.HasAVX512F {
		f = append(f, "avx512f")
	}
	return f
}
