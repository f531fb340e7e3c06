// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package results parses the raw files the benchmark and its profiling
// wrappers leave behind.
//
// Text logs (time -v, perf stat) are scraped with regular expressions;
// timing and hash-distribution files are YAML lists. Every parser reports
// how many result blocks it saw so callers can flag files that accumulated
// several runs.
package results

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNoData means a YAML file held no usable result. Cells become NaN.
	ErrNoData = errors.New("no data")

	// ErrMarkerNotFound means a text log lacked a required marker. Cells
	// become 0, matching how these logs have always been reported.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrMissingFile means the result file does not exist.
	ErrMissingFile = errors.New("result file missing")
)

// Parser is any of the Parse functions in this package.
type Parser[T any] func(io.Reader) (T, error)

// ReadFile opens path and runs parse on it.
func ReadFile[T any](path string, parse Parser[T]) (T, error) {
	var zero T
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
