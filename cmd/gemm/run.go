// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/internal/bench"
	"github.com/ajroetker/go-gemm/internal/platform"
)

// printLimit is the largest dimension whose matrices are printed.
const printLimit = 10

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <n> <approach> <algorithm>",
		Short: "Multiply two seeded n×n matrices and verify the product",
		Example: `  gemm run 100 serial naive
  gemm run 1000 openmp strassen --threads 8
  gemm run 1000 mpi proposed --procs 4`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: %q", gemm.ErrInvalidDimension, args[0])
			}
			model, err := gemm.ParseModel(args[1])
			if err != nil {
				return err
			}
			alg, err := gemm.ParseAlgorithm(args[2])
			if err != nil {
				return err
			}
			return o.run(cmd, n, model, alg)
		},
	}
}

func (o *options) run(cmd *cobra.Command, n int, model gemm.Model, alg gemm.Algorithm) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	logger, err := o.openLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	spec := bench.Spec{
		N: n, Algorithm: alg, Model: model, Config: cfg,
		Procs: o.procs, Runs: o.runs,
		MachineID: o.machineID, Note: o.note,
	}
	w := cmd.OutOrStdout()
	printBanner(w, spec)

	report, err := bench.Run(cmd.Context(), spec)
	if err != nil {
		return err
	}
	printReport(w, report)
	if err := logger.Write(report.Record); err != nil {
		return err
	}
	if !report.Record.Passed {
		return errVerification
	}
	return nil
}

func printBanner(w io.Writer, spec bench.Spec) {
	procs, threads := bench.Parallelism(spec)
	rule := strings.Repeat("=", 49)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Matrix Multiplication")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Matrix size    : %d x %d\n", spec.N, spec.N)
	fmt.Fprintf(w, "Approach       : %s\n", spec.Model)
	fmt.Fprintf(w, "Algorithm      : %s\n", spec.Algorithm)
	fmt.Fprintf(w, "Processes      : %d\n", procs)
	fmt.Fprintf(w, "Threads        : %d\n", threads)
	fmt.Fprintf(w, "Platform       : %s\n", platform.Detect())
	fmt.Fprintln(w, rule)
}

func printReport(w io.Writer, report *bench.Report) {
	rec := report.Record
	n := rec.N
	rule := strings.Repeat("=", 49)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Computation completed!")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Elapsed time   : %.6f seconds (median of %d)\n", rec.TimeSec, rec.Repetitions)
	fmt.Fprintf(w, "Performance    : %.2f GFLOPS\n", rec.GFLOPS)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	if n <= printLimit {
		fmt.Fprint(w, "Result ", gemm.Format(report.C, n, printLimit))
		fmt.Fprintln(w)
	}

	if report.ReferenceTime == 0 {
		fmt.Fprintln(w, "Baseline (serial naive) - no verification needed.")
		return
	}
	fmt.Fprintf(w, "Reference computed in %.6f seconds\n", report.ReferenceTime.Seconds())
	if rec.Passed {
		fmt.Fprintln(w, "✓ CORRECTNESS CHECK PASSED")
		return
	}
	fmt.Fprintf(w, "✗ CORRECTNESS CHECK FAILED (max difference %g)\n", report.MaxDiff)
}
