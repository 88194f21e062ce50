// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package platform reports the host facts printed in run banners and used
// for default thread counts.
package platform

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Info describes the host.
type Info struct {
	OS, Arch string
	CPUs     int
	Threads  int // runtime.GOMAXPROCS(0)

	// Features lists the vector extensions the CPU reports, e.g. "avx2".
	Features []string
}

// Detect returns the host description.
func Detect() Info {
	return Info{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
		Threads:  DefaultThreads(),
		Features: cpuFeatures(),
	}
}

// DefaultThreads is the worker count used when none is configured.
func DefaultThreads() int {
	return runtime.GOMAXPROCS(0)
}

// HasFeature reports whether name is one of the detected features.
func (i Info) HasFeature(name string) bool {
	return slices.Contains(i.Features, name)
}

func (i Info) String() string {
	features := "none"
	if len(i.Features) > 0 {
		features = strings.Join(i.Features, ",")
	}
	return fmt.Sprintf("%s/%s, %d CPUs, %d threads, features: %s", i.OS, i.Arch, i.CPUs, i.Threads, features)
}
