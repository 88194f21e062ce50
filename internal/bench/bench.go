// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package bench times a kernel on seeded operands, verifies it against the
// naive serial product and summarizes the run as a results.Record.
package bench

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/gemm/contrib/distributed"
	"github.com/ajroetker/go-gemm/gemm/contrib/matmul"
	"github.com/ajroetker/go-gemm/internal/results"
)

// Operand seeds.
const (
	SeedA = 42
	SeedB = 123
)

// Tolerance is the absolute per-element tolerance of the verification.
const Tolerance = 1e-6

// Spec describes one benchmark.
type Spec struct {
	N         int
	Algorithm gemm.Algorithm
	Model     gemm.Model
	Config    gemm.Config

	// Procs is the rank count for the distributed models.
	Procs int

	// Runs is the number of timed repetitions, after one warm-up.
	Runs int

	MachineID string
	Note      string
}

// Report is the outcome of Run.
type Report struct {
	Record results.Record

	// Times are the timed repetitions in run order.
	Times []time.Duration

	// ReferenceTime is the duration of the naive serial reference.
	ReferenceTime time.Duration

	// MaxDiff is the largest absolute difference from the reference.
	MaxDiff float64

	// A, B and C are the operands and the last computed product.
	A, B, C []float64
}

// Run executes spec. A verification failure is reported in
// Record.Passed, not as an error.
func Run(ctx context.Context, spec Spec) (*Report, error) {
	if spec.N <= 0 {
		return nil, fmt.Errorf("%w: n=%d", gemm.ErrInvalidDimension, spec.N)
	}
	if spec.Runs <= 0 {
		return nil, fmt.Errorf("%w: runs=%d", gemm.ErrInvalidConfig, spec.Runs)
	}
	if err := spec.Config.Validate(); err != nil {
		return nil, err
	}
	n := spec.N
	a, b, c := gemm.New(n), gemm.New(n), gemm.New(n)
	gemm.FillRandom(a, n, SeedA)
	gemm.FillRandom(b, n, SeedB)

	multiply, closeFn, err := executor(spec)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	// Warm-up.
	if err := multiply(ctx, a, b, c); err != nil {
		return nil, err
	}

	times := make([]time.Duration, spec.Runs)
	for i := range times {
		gemm.FillZero(c, n)
		start := time.Now()
		if err := multiply(ctx, a, b, c); err != nil {
			return nil, err
		}
		times[i] = time.Since(start)
		klog.V(2).InfoS("Repetition finished", "algo", spec.Algorithm, "approach", spec.Model, "n", n, "run", i, "elapsed", times[i])
	}

	report := &Report{Times: times, A: a, B: b, C: c}
	secs := lo.Map(times, func(d time.Duration, _ int) float64 { return d.Seconds() })
	median := Median(secs)

	passed := true
	speedup := 1.0
	if !(spec.Algorithm == gemm.Naive && spec.Model == gemm.Serial) {
		ref := gemm.New(n)
		start := time.Now()
		matmul.NaiveMatMul(a, b, ref, n)
		report.ReferenceTime = time.Since(start)
		report.MaxDiff = gemm.MaxAbsDiff(ref, c, n)
		passed = report.MaxDiff <= Tolerance
		if median > 0 {
			speedup = report.ReferenceTime.Seconds() / median
		}
	}

	procs, threads := Parallelism(spec)
	report.Record = results.Record{
		Timestamp:      results.Timestamp(time.Now()),
		MachineID:      results.MachineID(spec.MachineID),
		Algo:           spec.Algorithm.String(),
		Approach:       spec.Model.String(),
		N:              n,
		NProcs:         procs,
		NThreads:       threads,
		Repetitions:    spec.Runs,
		TimeSec:        median,
		TimeMin:        lo.Min(secs),
		TimeMax:        lo.Max(secs),
		TimeMean:       lo.Sum(secs) / float64(len(secs)),
		GFLOPS:         GFLOPS(n, median),
		Passed:         passed,
		SpeedupVsNaive: speedup,
		Note:           spec.Note,
	}
	return report, nil
}

type multiplyFunc func(ctx context.Context, a, b, c []float64) error

// executor returns the function timed by Run and a cleanup.
func executor(spec Spec) (multiplyFunc, func(), error) {
	n := spec.N
	if spec.Model.IsDistributed() {
		procs := max(spec.Procs, 1)
		return func(ctx context.Context, a, b, c []float64) error {
			return distributed.Compute(ctx, procs, spec.Algorithm, spec.Model, spec.Config, a, b, c, n)
		}, func() {}, nil
	}

	k, err := matmul.New(spec.Algorithm, spec.Model, spec.Config)
	if err != nil {
		return nil, nil, err
	}
	return func(_ context.Context, a, b, c []float64) error {
		return k.Apply(a, b, c, n)
	}, func() { _ = k.Close() }, nil
}

// Parallelism returns the process and per-process thread counts recorded
// for spec.
func Parallelism(spec Spec) (procs, threads int) {
	procs, threads = 1, 1
	if spec.Model.IsDistributed() {
		procs = max(spec.Procs, 1)
	}
	if spec.Model.LocalModel() == gemm.Parallel {
		threads = spec.Config.EffectiveThreads()
	}
	return procs, threads
}

// GFLOPS is the GEMM-equivalent rate 2n³/t, in units of 10⁹ per second.
func GFLOPS(n int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	fn := float64(n)
	return 2 * fn * fn * fn / seconds / 1e9
}

// Median returns the median of xs, averaging the middle pair for even
// lengths. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
