// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/internal/bench"
)

func newVerifyCmd(o *options) *cobra.Command {
	var sizes []int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every algorithm and approach against the naive serial product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.verify(cmd, sizes)
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "n", []int{100}, "matrix dimensions to verify")
	return cmd
}

// variants lists every (algorithm, approach) pair that can run.
func variants() [][2]int {
	var out [][2]int
	for _, alg := range gemm.Algorithms() {
		for _, model := range gemm.Models() {
			// The reference library has no threaded variant.
			if alg == gemm.Reference && model.LocalModel() == gemm.Parallel {
				continue
			}
			out = append(out, [2]int{int(alg), int(model)})
		}
	}
	return out
}

func (o *options) verify(cmd *cobra.Command, sizes []int) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "N\tALGORITHM\tAPPROACH\tMAX DIFF\tRESULT")

	failed := 0
	for _, n := range sizes {
		for _, v := range variants() {
			spec := bench.Spec{
				N: n, Algorithm: gemm.Algorithm(v[0]), Model: gemm.Model(v[1]), Config: cfg,
				Procs: o.procs, Runs: 1,
			}
			report, err := bench.Run(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("%s/%s n=%d: %w", spec.Algorithm, spec.Model, n, err)
			}
			result := "ok"
			if !report.Record.Passed {
				result = "FAILED"
				failed++
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.3g\t%s\n", n, spec.Algorithm, spec.Model, report.MaxDiff, result)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d variants", errVerification, failed)
	}
	return nil
}
