// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/internal/bench"
)

func newBenchCmd(o *options) *cobra.Command {
	var (
		sizes      []int
		algorithms []string
		approaches []string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time a grid of sizes, algorithms and approaches and record the results",
		Example: `  gemm bench --sizes 256,512,1024 --runs 5 --results-dir results
  gemm bench --algorithms proposed,strassen --approaches parallel,hybrid --procs 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			algs, err := parseAll(algorithms, gemm.ParseAlgorithm)
			if err != nil {
				return err
			}
			models, err := parseAll(approaches, gemm.ParseModel)
			if err != nil {
				return err
			}
			return o.bench(cmd, sizes, algs, models)
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{128, 256, 512}, "matrix dimensions")
	cmd.Flags().StringSliceVar(&algorithms, "algorithms", gemm.AlgorithmNames(), "algorithms to run")
	cmd.Flags().StringSliceVar(&approaches, "approaches", gemm.ModelNames(), "approaches to run")
	return cmd
}

func parseAll[T any](names []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(names))
	for _, name := range lo.Uniq(names) {
		v, err := parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (o *options) bench(cmd *cobra.Command, sizes []int, algs []gemm.Algorithm, models []gemm.Model) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	logger, err := o.openLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "N\tALGORITHM\tAPPROACH\tPROCS\tTHREADS\tMEDIAN (s)\tGFLOPS\tSPEEDUP\tPASSED\t")

	failed := 0
	for _, n := range sizes {
		for _, alg := range algs {
			for _, model := range models {
				if alg == gemm.Reference && model.LocalModel() == gemm.Parallel {
					continue
				}
				spec := bench.Spec{
					N: n, Algorithm: alg, Model: model, Config: cfg,
					Procs: o.procs, Runs: o.runs,
					MachineID: o.machineID, Note: o.note,
				}
				report, err := bench.Run(cmd.Context(), spec)
				if err != nil {
					return fmt.Errorf("%s/%s n=%d: %w", alg, model, n, err)
				}
				rec := report.Record
				if !rec.Passed {
					failed++
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.6f\t%.2f\t%.2f\t%t\t\n",
					n, rec.Algo, rec.Approach, rec.NProcs, rec.NThreads, rec.TimeSec, rec.GFLOPS, rec.SpeedupVsNaive, rec.Passed)
				if err := logger.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d runs", errVerification, failed)
	}
	return nil
}
