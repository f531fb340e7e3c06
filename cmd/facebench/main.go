// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command facebench runs the external face-list benchmark sweeps and turns
// their raw output into tables and figures.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/runner"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitSweepFailed = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := executeRoot(ctx)
	stop()
	os.Exit(exitCode(err))
}

// executeRoot runs the command tree and then releases what setup acquired.
// Cobra skips post-run hooks when a command fails, so teardown runs here.
func executeRoot(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	teardown(err)
	return err
}

// exitCode maps a command error to the process exit status. A sweep with
// failed benchmarks is told apart from a harness error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, runner.ErrSweepFailed):
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitSweepFailed
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
}
