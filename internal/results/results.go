// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

// Package results appends experiment records to CSV or JSON-lines files.
package results

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Format selects the on-disk encoding.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat accepts "csv" and "json"; the empty string means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("results: unknown format %q", s)
}

// Record is one measured configuration.
type Record struct {
	Timestamp      string  `json:"timestamp"`
	MachineID      string  `json:"machine_id"`
	Algo           string  `json:"algo"`
	Approach       string  `json:"approach"`
	N              int     `json:"n"`
	NProcs         int     `json:"nprocs"`
	NThreads       int     `json:"nthreads"`
	Repetitions    int     `json:"repetitions"`
	TimeSec        float64 `json:"time_sec"` // median
	TimeMin        float64 `json:"time_min"`
	TimeMax        float64 `json:"time_max"`
	TimeMean       float64 `json:"time_mean"`
	GFLOPS         float64 `json:"gflops_gemm_eq"`
	Passed         bool    `json:"passed"`
	SpeedupVsNaive float64 `json:"speedup_vs_naive"`
	Note           string  `json:"note"`
}

// Header is the CSV column list, in Record field order.
var Header = []string{
	"timestamp", "machine_id", "algo", "approach", "n", "nprocs", "nthreads", "repetitions",
	"time_sec", "time_min", "time_max", "time_mean", "gflops_gemm_eq", "passed",
	"speedup_vs_naive", "note",
}

// csvRow renders r with the precision of the published result tables.
func (r Record) csvRow() []string {
	f6 := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	f4 := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	return []string{
		r.Timestamp, r.MachineID, r.Algo, r.Approach,
		strconv.Itoa(r.N), strconv.Itoa(r.NProcs), strconv.Itoa(r.NThreads), strconv.Itoa(r.Repetitions),
		f6(r.TimeSec), f6(r.TimeMin), f6(r.TimeMax), f6(r.TimeMean),
		f4(r.GFLOPS), strconv.FormatBool(r.Passed), f4(r.SpeedupVsNaive), r.Note,
	}
}

// Logger appends records to one file. A Logger opened with an empty
// directory discards every record.
type Logger struct {
	path   string
	format Format
	file   *os.File
	csv    *csv.Writer
	json   *json.Encoder
}

// FileName returns the file a logger writes for basename and format.
func FileName(basename string, format Format) string {
	return fmt.Sprintf("%s_results.%s", basename, format)
}

// Open appends to <dir>/<basename>_results.<format>, creating dir as
// needed. A CSV header is written only when the file is empty. An empty dir
// returns a logger that discards records.
func Open(dir, basename string, format Format) (*Logger, error) {
	if dir == "" {
		return &Logger{}, nil
	}
	if basename == "" {
		basename = "results"
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if format == "" {
		format = CSV
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}

	path := filepath.Join(dir, FileName(basename, format))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	l := &Logger{path: path, format: format, file: f}
	if format == JSON {
		l.json = json.NewEncoder(f)
		return l, nil
	}

	l.csv = csv.NewWriter(f)
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("results: %w", err), f.Close())
	}
	if info.Size() == 0 {
		if err := l.writeCSV(Header); err != nil {
			return nil, errors.Join(err, f.Close())
		}
	}
	return l, nil
}

// Path returns the file being written, or "" for a discarding logger.
func (l *Logger) Path() string { return l.path }

// Enabled reports whether records are persisted.
func (l *Logger) Enabled() bool { return l.file != nil }

// Write appends r and flushes it to the file.
func (l *Logger) Write(r Record) error {
	switch {
	case l.file == nil:
		return nil
	case l.json != nil:
		if err := l.json.Encode(r); err != nil {
			return fmt.Errorf("results: %w", err)
		}
		return nil
	default:
		return l.writeCSV(r.csvRow())
	}
}

func (l *Logger) writeCSV(row []string) error {
	if err := l.csv.Write(row); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	l.csv.Flush()
	if err := l.csv.Error(); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return nil
}

// Close closes the file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadCSV parses a file written by a CSV Logger, header excluded.
func ReadCSV(r io.Reader) ([]Record, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("results: row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("%d columns, want %d", len(row), len(Header))
	}
	var errs []error
	atoi := func(s string) int {
		v, err := strconv.Atoi(s)
		errs = append(errs, err)
		return v
	}
	atof := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return v
	}
	passed, err := strconv.ParseBool(row[13])
	errs = append(errs, err)
	rec := Record{
		Timestamp: row[0], MachineID: row[1], Algo: row[2], Approach: row[3],
		N: atoi(row[4]), NProcs: atoi(row[5]), NThreads: atoi(row[6]), Repetitions: atoi(row[7]),
		TimeSec: atof(row[8]), TimeMin: atof(row[9]), TimeMax: atof(row[10]), TimeMean: atof(row[11]),
		GFLOPS: atof(row[12]), Passed: passed, SpeedupVsNaive: atof(row[14]), Note: row[15],
	}
	return rec, errors.Join(errs...)
}

// Timestamp formats t as ISO-8601 UTC with second precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// MachineID returns id, or "unknown" when it is empty.
func MachineID(id string) string {
	if id == "" {
		return "unknown"
	}
	return id
}
