// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner executes sweep invocations and captures their output.
//
// Invocations run one at a time, in plan order. Each writes its combined
// stdout and stderr to the invocation's output file, and each outcome is
// stored in the run ledger. A non-zero exit is a failure: it is logged,
// recorded and returned, but the output file is kept for post-mortem.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/ledger"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
)

// outputTailBytes bounds the output kept in a BenchmarkFailedError.
const outputTailBytes = 2048

// RecordStore persists invocation outcomes. *ledger.Ledger implements it.
type RecordStore interface {
	Put(rec ledger.Record) (ledger.Record, error)
}

// Options control one sweep.
type Options struct {
	// FailFast stops at the first failed invocation.
	FailFast bool

	// Timeout bounds each invocation. Zero means no limit.
	Timeout time.Duration

	// Mode overrides the configured output mode when set.
	Mode config.OutputMode
}

// Summary describes a finished sweep.
type Summary struct {
	RunID    string
	Total    int
	Executed int
	Failed   int
	Duration time.Duration
}

// Runner is the run-evaluation driver.
type Runner struct {
	cfg     *config.FacebenchConfig
	pm      ProcessManager
	store   RecordStore
	metrics telemetry.Recorder
	logger  *slog.Logger
	tracer  trace.Tracer

	// resolveTool finds profiling tools. Replaced in tests.
	resolveTool func(name string) (string, error)
	now         func() time.Time
}

// New creates a Runner. store, metrics and logger may be nil.
func New(cfg *config.FacebenchConfig, pm ProcessManager, store RecordStore, metrics telemetry.Recorder, logger *slog.Logger) *Runner {
	if metrics == nil {
		metrics = telemetry.NewNoOpRecorder()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		cfg:         cfg,
		pm:          pm,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer(telemetry.TracerName),
		resolveTool: config.ResolveTool,
		now:         time.Now,
	}
}

// wrapperResolution caches the argv prefix (or the lookup error) of a
// profiling wrapper for the duration of one sweep.
type wrapperResolution struct {
	argv []string
	err  error
}

// Run executes invs in order.
//
// # Description
//
// Every invocation is attempted unless opts.FailFast is set or ctx is
// cancelled. A profiling tool that cannot be found fails only the
// invocations that need it.
//
// # Outputs
//
//   - Summary: counts for the sweep, also on error.
//   - error: a *SweepError (matching ErrSweepFailed) when any invocation
//     failed, or the context error when the sweep was interrupted.
func (r *Runner) Run(ctx context.Context, invs []sweep.Invocation, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Total: len(invs)}
	start := r.now()
	mode := opts.Mode
	if mode == "" {
		mode = r.cfg.Output.Mode
	}

	ctx, span := r.tracer.Start(ctx, "facebench.run", trace.WithAttributes(
		attribute.String("facebench.run_id", summary.RunID),
		attribute.String("facebench.configuration", r.cfg.Configuration),
		attribute.Int("facebench.invocations", len(invs)),
	))
	defer span.End()

	r.logger.Info("Starting sweep",
		"run_id", summary.RunID,
		"invocations", len(invs),
		"output_mode", string(mode))

	wrappers := make(map[sweep.Wrapper]wrapperResolution)
	sweepErr := &SweepError{Total: len(invs)}

	for i, inv := range invs {
		if err := ctx.Err(); err != nil {
			summary.Duration = r.now().Sub(start)
			span.SetStatus(codes.Error, "interrupted")
			return summary, fmt.Errorf("sweep interrupted after %d of %d invocations: %w", summary.Executed, len(invs), err)
		}

		res, ok := wrappers[inv.Wrapper]
		if !ok {
			res = r.resolveWrapper(inv.Wrapper)
			wrappers[inv.Wrapper] = res
		}

		r.logger.Info("Running invocation",
			"index", i+1,
			"of", len(invs),
			"method", inv.Method.String(),
			"dataset", inv.DatasetName(),
			"output", inv.OutputPath)

		failure := r.runOne(ctx, summary.RunID, inv, res, mode, opts.Timeout)
		summary.Executed++
		if failure == nil {
			continue
		}

		summary.Failed++
		sweepErr.Failures = append(sweepErr.Failures, failure)
		r.logger.Error("Benchmark failed",
			"output", failure.OutputPath,
			"exit_code", failure.ExitCode,
			"command", failure.CommandLine,
			"tail", failure.OutputTail,
			"error", failure.Wrapped)

		if opts.FailFast {
			break
		}
	}

	summary.Duration = r.now().Sub(start)
	r.logger.Info("Sweep finished",
		"run_id", summary.RunID,
		"executed", summary.Executed,
		"failed", summary.Failed,
		"duration", summary.Duration.String())

	if len(sweepErr.Failures) > 0 {
		span.SetStatus(codes.Error, sweepErr.Error())
		return summary, sweepErr
	}
	span.SetStatus(codes.Ok, "")
	return summary, nil
}

func (r *Runner) resolveWrapper(w sweep.Wrapper) wrapperResolution {
	if w == sweep.WrapperNone {
		return wrapperResolution{}
	}
	argv := w.Argv(r.cfg.Tools)
	if len(argv) == 0 {
		return wrapperResolution{err: fmt.Errorf("unknown wrapper %q", w)}
	}

	path, err := r.resolveTool(argv[0])
	if err != nil {
		r.logger.Error("Profiling tool not found", "tool", argv[0], "error", err)
		return wrapperResolution{err: err}
	}
	argv[0] = path
	return wrapperResolution{argv: argv}
}

// runOne executes a single invocation and records the outcome. It returns
// nil on success.
func (r *Runner) runOne(ctx context.Context, runID string, inv sweep.Invocation, wrapper wrapperResolution, mode config.OutputMode, timeout time.Duration) *BenchmarkFailedError {
	cmdLine := inv.CommandLine(wrapper.argv, r.cfg.Executable)
	ctx, span := r.tracer.Start(ctx, "facebench.invocation", trace.WithAttributes(
		attribute.String("facebench.method", inv.Method.String()),
		attribute.String("facebench.table", inv.Table),
		attribute.String("facebench.dataset", inv.DatasetName()),
		attribute.String("facebench.output", inv.OutputPath),
		attribute.Int("facebench.threads", inv.Threads),
		attribute.String("facebench.command", cmdLine),
	))
	defer span.End()

	start := r.now()
	tail := newTailBuffer(outputTailBytes)
	err := wrapper.err
	if err == nil {
		err = r.execute(ctx, inv, wrapper.argv, mode, timeout, tail)
	}
	duration := r.now().Sub(start)

	rec := ledger.Record{
		OutputPath:  inv.OutputPath,
		RunID:       runID,
		Method:      inv.Method.String(),
		Table:       inv.Table,
		Dataset:     inv.DatasetName(),
		Label:       inv.Label,
		CommandLine: cmdLine,
		OutputMode:  string(mode),
		Start:       start,
		Duration:    duration,
		ExitCode:    ExitCode(err),
		Status:      ledger.StatusOK,
	}
	var failure *BenchmarkFailedError
	if err != nil {
		rec.Status = ledger.StatusFailed
		rec.Error = err.Error()
		failure = &BenchmarkFailedError{
			OutputPath:  inv.OutputPath,
			CommandLine: cmdLine,
			ExitCode:    rec.ExitCode,
			OutputTail:  tail.String(),
			Wrapped:     err,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Int("facebench.exit_code", rec.ExitCode))

	r.metrics.RecordInvocation(rec.Method, string(rec.Status), duration)
	if r.store != nil {
		if _, perr := r.store.Put(rec); perr != nil {
			r.logger.Warn("Failed to record invocation in ledger", "output", inv.OutputPath, "error", perr)
		}
	}
	return failure
}

// execute opens the output file and runs the command into it.
func (r *Runner) execute(ctx context.Context, inv sweep.Invocation, wrapper []string, mode config.OutputMode, timeout time.Duration, tail io.Writer) error {
	f, err := openOutput(inv.OutputPath, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name := r.cfg.Executable
	args := inv.Args()
	if len(wrapper) > 0 {
		name = wrapper[0]
		args = append(append(append([]string{}, wrapper[1:]...), r.cfg.Executable), args...)
	}

	runErr := r.pm.Run(ctx, io.MultiWriter(f, tail), name, args...)
	if cerr := f.Close(); cerr != nil && runErr == nil && !errors.Is(cerr, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", inv.OutputPath, cerr)
	}
	return runErr
}

// openOutput creates the parent directory and opens path for writing.
func openOutput(path string, mode config.OutputMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == config.OutputAppend {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0640)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return f, nil
}
