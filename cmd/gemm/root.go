// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/ajroetker/go-gemm/gemm"
	"github.com/ajroetker/go-gemm/internal/envconfig"
	"github.com/ajroetker/go-gemm/internal/results"
)

// errVerification is returned when a product disagrees with the reference.
var errVerification = errors.New("correctness check failed")

// options are the settings shared by every subcommand: the environment,
// overridden by flags.
type options struct {
	threads  int
	procs    int
	baseCase int
	cutoff   int
	tile     int
	maxBytes int64
	runs     int

	resultsDir string
	format     string
	basename   string
	machineID  string
	note       string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "gemm",
		Short:         "Dense square matrix multiplication: naive, Strassen and cache-blocked kernels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.loadEnv(cmd.Flags())
		},
	}

	o.addFlags(root.PersistentFlags())
	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)

	root.AddCommand(newRunCmd(o), newVerifyCmd(o), newBenchCmd(o))
	return root
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.threads, "threads", 0, "worker threads per process (default $GEMM_THREADS or GOMAXPROCS)")
	fs.IntVar(&o.procs, "procs", 0, "ranks for the distributed and hybrid approaches (default $GEMM_PROCS or 1)")
	fs.IntVar(&o.baseCase, "base-case", gemm.DefaultBaseCase, "Strassen base-case dimension")
	fs.IntVar(&o.cutoff, "cutoff", gemm.DefaultParallelCutoff, "Strassen parallel task cutoff")
	fs.IntVar(&o.tile, "tile", gemm.DefaultTileSize, "cache-blocked tile edge")
	fs.Int64Var(&o.maxBytes, "max-bytes", 0, "temporary memory budget in bytes per process (0 = unlimited)")
	fs.IntVar(&o.runs, "runs", 1, "timed repetitions after one warm-up")
	fs.StringVar(&o.resultsDir, "results-dir", "", "directory for experiment records (default $RESULTS_DIR, empty disables)")
	fs.StringVar(&o.format, "format", "", "record format, csv or json (default $RESULTS_FORMAT or csv)")
	fs.StringVar(&o.basename, "basename", "", "record file basename (default $RESULTS_FILE_BASENAME or gemm)")
	fs.StringVar(&o.machineID, "machine-id", "", "machine identifier (default $MACHINE_ID or unknown)")
	fs.StringVar(&o.note, "note", "", "free-form note stored with each record (default $RESULTS_NOTE)")
}

// loadEnv fills every option whose flag was not given from the
// environment.
func (o *options) loadEnv(fs *pflag.FlagSet) error {
	s, err := envconfig.Load()
	if err != nil {
		return err
	}
	if s.EnvFile != "" {
		klog.V(1).InfoS("Loaded environment file", "path", s.EnvFile)
	}
	fill := func(name string, dst *string, v string) {
		if !fs.Changed(name) {
			*dst = v
		}
	}
	fill("results-dir", &o.resultsDir, s.ResultsDir)
	fill("format", &o.format, s.ResultsFormat)
	fill("basename", &o.basename, s.ResultsBasename)
	fill("machine-id", &o.machineID, s.MachineID)
	fill("note", &o.note, s.Note)
	if !fs.Changed("threads") {
		o.threads = s.Threads
	}
	if !fs.Changed("procs") {
		o.procs = s.Procs
	}
	return nil
}

// config returns the kernel configuration selected by the options.
func (o *options) config() (gemm.Config, error) {
	cfg := gemm.Config{
		Threads:        o.threads,
		BaseCase:       o.baseCase,
		ParallelCutoff: o.cutoff,
		TileSize:       o.tile,
		MaxBytes:       o.maxBytes,
	}
	if o.procs < 1 {
		return cfg, fmt.Errorf("%w: procs=%d", gemm.ErrInvalidConfig, o.procs)
	}
	if o.runs < 1 {
		return cfg, fmt.Errorf("%w: runs=%d", gemm.ErrInvalidConfig, o.runs)
	}
	return cfg, cfg.Validate()
}

// openLogger opens the experiment record file, or a discarding logger when
// no results directory is configured.
func (o *options) openLogger(w io.Writer) (*results.Logger, error) {
	format, err := results.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	l, err := results.Open(o.resultsDir, o.basename, format)
	if err != nil {
		return nil, err
	}
	if l.Enabled() {
		fmt.Fprintf(w, "Recording results to %s\n", l.Path())
	}
	return l, nil
}
