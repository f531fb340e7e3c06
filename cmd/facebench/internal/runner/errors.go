// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSweepFailed is matched by the error Run returns when at least one
	// invocation failed.
	ErrSweepFailed = errors.New("sweep failed")
)

// CommandError describes a process that exited unsuccessfully.
//
// # Example
//
//	err := NewCommandError("perf stat -e cache-misses ...", 1, "", originalErr)
//	fmt.Println(err.Error()) // "perf stat -e cache-misses ... (exit 1): ..."
type CommandError struct {
	// Command is the command that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr contains the standard error output, when captured separately.
	Stderr string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError creates a CommandError. Stderr is trimmed.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// ExitCode extracts the exit code from an error chain: 0 for nil, the
// CommandError's code when present, -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// BenchmarkFailedError is one failed sweep invocation. The full output is
// still in OutputPath; OutputTail holds its last lines for the log.
type BenchmarkFailedError struct {
	OutputPath  string
	CommandLine string
	ExitCode    int
	OutputTail  string
	Wrapped     error
}

func (e *BenchmarkFailedError) Error() string {
	return fmt.Sprintf("benchmark failed (exit %d) writing %s: %v", e.ExitCode, e.OutputPath, e.Wrapped)
}

func (e *BenchmarkFailedError) Unwrap() error {
	return e.Wrapped
}

// SweepError aggregates the failures of one Run.
type SweepError struct {
	Total    int
	Failures []*BenchmarkFailedError
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("%d of %d invocations failed", len(e.Failures), e.Total)
}

// Unwrap exposes the individual failures to errors.As.
func (e *SweepError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Is reports ErrSweepFailed.
func (e *SweepError) Is(target error) bool {
	return target == ErrSweepFailed
}

// -----------------------------------------------------------------------------
// Output tail
// -----------------------------------------------------------------------------

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		return n, nil
	}
	if overflow := len(t.buf) + len(p) - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained bytes, starting at a line boundary when the
// buffer has been trimmed.
func (t *tailBuffer) String() string {
	s := string(t.buf)
	if len(t.buf) == t.limit {
		if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
			s = s[i+1:]
		}
	}
	return strings.TrimSpace(s)
}
