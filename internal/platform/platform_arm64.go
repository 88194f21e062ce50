// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

//go:build arm64

package platform

import "golang.org/x/sys/cpu"

func cpuFeatures() []string {
	var f []string
	// ASIMD is part of the ARMv8-A base architecture.
	if cpu.ARM64.HasASIMD {
		f = append(f, "asimd")
	}
	if cpu.ARM64.HasFPHP {
		f = append(f, "fp16")
	}
	if cpu.ARM64.HasSVE {
		f = append(f, "sve")
	}
	if cpu.ARM64.HasSVE2 {
		f = append(f, "sve2")
	}
	return f
}
