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
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager runs the benchmark and its profiling wrappers.
//
// All exec.Command calls in the run driver go through this interface so the
// sweep can be tested without the benchmark binary.
type ProcessManager interface {
	// Run executes name with args and waits for it to exit.
	//
	// # Description
	//
	// Standard output and standard error are both written to out, in the
	// order the process produces them. The process is killed when ctx is
	// done.
	//
	// # Outputs
	//
	//   - error: nil on exit status 0. A *CommandError carrying the exit code
	//     otherwise (-1 when the process could not be started or was killed).
	Run(ctx context.Context, out io.Writer, name string, args ...string) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager implements ProcessManager using os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a ProcessManager that runs real processes.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command, streaming combined output to out.
func (pm *DefaultProcessManager) Run(ctx context.Context, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		err = errors.Join(err, ctx.Err())
	}
	return NewCommandError(commandString(name, args), exitCode, "", err)
}

func commandString(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting RunFunc before use. If RunFunc is nil the
// call succeeds without output.
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, out io.Writer, name string, args ...string) error {
//	        _, err := io.WriteString(out, "dataset-memory-used: 1024\n")
//	        return err
//	    },
//	}
type MockProcessManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, out io.Writer, name string, args ...string) error

	// Calls records all invocations for verification
	Calls []ProcessManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ProcessManagerCall records a single Run invocation.
type ProcessManagerCall struct {
	Name string
	Args []string
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, out io.Writer, name string, args ...string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Name: name, Args: append([]string(nil), args...)})
	fn := m.RunFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, out, name, args...)
}

// CallCount returns the number of recorded calls.
func (m *MockProcessManager) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call, or false if none.
func (m *MockProcessManager) LastCall() (ProcessManagerCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return ProcessManagerCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
