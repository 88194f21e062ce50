// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package envconfig loads the experiment settings from the environment,
// optionally seeded from a .env file.
package envconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ajroetker/go-gemm/internal/platform"
)

// Environment variables.
const (
	EnvResultsDir      = "RESULTS_DIR"
	EnvResultsFormat   = "RESULTS_FORMAT"
	EnvResultsBasename = "RESULTS_FILE_BASENAME"
	EnvMachineID       = "MACHINE_ID"
	EnvNote            = "RESULTS_NOTE"
	EnvThreads         = "GEMM_THREADS"
	EnvProcs           = "GEMM_PROCS"
)

// Defaults for unset variables.
const (
	DefaultFormat   = "csv"
	DefaultBasename = "gemm"
	DefaultProcs    = 1
)

// maxParentDirs bounds the upward search for a .env file.
const maxParentDirs = 5

// Settings are the experiment parameters read from the environment.
type Settings struct {
	// ResultsDir is where records are appended. Empty disables logging.
	ResultsDir      string
	ResultsFormat   string // "csv" or "json"
	ResultsBasename string
	MachineID       string
	Note            string

	Threads int // workers per process
	Procs   int // ranks for the distributed models

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

// Load reads a .env file from the working directory or one of its
// parents, then the environment. Variables already set in the environment
// take precedence over the file.
func Load() (Settings, error) {
	dir, err := os.Getwd()
	if err != nil {
		return Settings{}, fmt.Errorf("envconfig: %w", err)
	}
	return LoadFrom(dir)
}

// LoadFrom is Load with the .env search starting at dir.
func LoadFrom(dir string) (Settings, error) {
	envFile, err := loadEnvFile(dir)
	if err != nil {
		return Settings{}, err
	}
	s, err := FromEnv()
	s.EnvFile = envFile
	return s, err
}

// loadEnvFile looks up to maxParentDirs levels above dir for a .env file
// and loads the first one found.
func loadEnvFile(dir string) (string, error) {
	for range maxParentDirs + 1 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return "", fmt.Errorf("envconfig: loading %s: %w", envPath, err)
			}
			return envPath, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// FromEnv reads the settings from the process environment only.
func FromEnv() (Settings, error) {
	s := Settings{
		ResultsDir:      os.Getenv(EnvResultsDir),
		ResultsFormat:   strings.ToLower(getenv(EnvResultsFormat, DefaultFormat)),
		ResultsBasename: getenv(EnvResultsBasename, DefaultBasename),
		MachineID:       os.Getenv(EnvMachineID),
		Note:            os.Getenv(EnvNote),
	}
	if s.ResultsFormat != "csv" && s.ResultsFormat != "json" {
		return s, fmt.Errorf("envconfig: %s=%q: want csv or json", EnvResultsFormat, s.ResultsFormat)
	}

	var err error
	if s.Threads, err = positiveInt(EnvThreads, platform.DefaultThreads()); err != nil {
		return s, err
	}
	if s.Procs, err = positiveInt(EnvProcs, DefaultProcs); err != nil {
		return s, err
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("envconfig: %s=%q: want a positive integer", key, v)
	}
	return n, nil
}
