// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/runner"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
	"github.com/AleutianAI/facebench/pkg/ux"
)

// runSweep executes the sweep of the selected method.
//
// # Description
//
// Every invocation is recorded in the ledger. Failed benchmarks do not
// stop the sweep unless --fail-fast is set; they make the command return
// a SweepError after the last invocation, which exits with status 3.
// Metrics are written even when the sweep fails.
func runSweep(cmd *cobra.Command, args []string) error {
	method, err := sweep.ParseMethod(methodFlag)
	if err != nil {
		return err
	}
	if iterationsFlag < 0 {
		return fmt.Errorf("--iterations must be >= 0, got %d", iterationsFlag)
	}
	ctx := cmd.Context()
	printer := ux.NewPrinter(cmd.OutOrStdout())
	runLog := logger.With("configuration", cfg.Configuration, "method", method.String())

	shutdown, err := telemetry.Init(ctx, traceConfig())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			runLog.Warn("Trace shutdown failed", "error", err)
		}
	}()

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := led.Close(); err != nil {
			runLog.Warn("Ledger close failed", "error", err)
		}
	}()

	var metrics telemetry.Recorder = telemetry.NewNoOpRecorder()
	var prom *telemetry.PrometheusRecorder
	if cfg.Telemetry.Metrics {
		prom = telemetry.NewPrometheusRecorder()
		metrics = prom
	}

	opts := runner.Options{FailFast: failFast, Timeout: timeoutFlag}
	if appendOutput {
		opts.Mode = config.OutputAppend
	}
	invs := sweep.Plan(&cfg, method, iterationsFlag)

	printer.Title(fmt.Sprintf("facebench run: %s, %d invocations, configuration %s", method, len(invs), cfg.Configuration))
	r := runner.New(&cfg, processManager, led, metrics, runLog.Slog())
	summary, runErr := r.Run(ctx, invs, opts)

	if prom != nil {
		if err := prom.WriteTextfile(cfg.MetricsPath()); err != nil {
			runLog.Warn("Writing metrics failed", "path", cfg.MetricsPath(), "error", err)
		}
	}

	status := fmt.Sprintf("Run %s: %d of %d invocations executed, %d failed, %s",
		summary.RunID, summary.Executed, summary.Total, summary.Failed, summary.Duration.Round(time.Second))
	if runErr != nil {
		printer.Error(status)
		return runErr
	}
	printer.Success(status)
	return nil
}

// runPlan prints the invocations of a method without executing them.
func runPlan(cmd *cobra.Command, args []string) error {
	method, err := sweep.ParseMethod(methodFlag)
	if err != nil {
		return err
	}
	printer := ux.NewPrinter(cmd.OutOrStdout())
	invs := sweep.Plan(&cfg, method, iterationsFlag)

	rows := make([][]string, len(invs))
	for i, inv := range invs {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			inv.Method.String(),
			relToRoot(inv.OutputPath),
			inv.CommandLine(inv.Wrapper.Argv(cfg.Tools), cfg.Executable),
		}
	}
	printer.Title(fmt.Sprintf("%d invocations for %s (results under %s)", len(invs), method, cfg.Root()))
	printer.Table([]string{"#", "Method", "Output", "Command"}, rows)
	return nil
}
