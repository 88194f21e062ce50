// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

//go:build !amd64 && !arm64

package platform

func cpuFeatures() []string { return nil }
