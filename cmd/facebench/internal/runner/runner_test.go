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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/ledger"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/results"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
)

const memoryLog = "dataset-memory-used: 1048576\n\tMaximum resident set size (kbytes): 2097152\n"

type testEnv struct {
	cfg     *config.FacebenchConfig
	pm      *MockProcessManager
	ledger  *ledger.Ledger
	metrics *telemetry.NoOpRecorder
	runner  *Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ResultsDir = t.TempDir()
	cfg.DataDir = "/data"

	l, err := ledger.Open(ledger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	env := &testEnv{
		cfg:     &cfg,
		pm:      &MockProcessManager{},
		ledger:  l,
		metrics: telemetry.NewNoOpRecorder(),
	}
	env.runner = New(env.cfg, env.pm, l, env.metrics, nil)
	env.runner.resolveTool = func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}
	return env
}

func writeOutput(s string) func(context.Context, io.Writer, string, ...string) error {
	return func(_ context.Context, out io.Writer, _ string, _ ...string) error {
		_, err := io.WriteString(out, s)
		return err
	}
}

func TestRun_WritesOutputAndLedger(t *testing.T) {
	env := newTestEnv(t)
	env.pm.RunFunc = writeOutput(memoryLog)
	invs := sweep.Plan(env.cfg, sweep.MethodMemoryFootprint, 0)

	summary, err := env.runner.Run(context.Background(), invs, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(invs), summary.Total)
	assert.Equal(t, len(invs), summary.Executed)
	assert.Equal(t, 0, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, len(invs), env.pm.CallCount())
	assert.Equal(t, int64(len(invs)), env.metrics.Invocations())

	first := env.pm.Calls[0]
	assert.Equal(t, "/usr/bin/time", first.Name)
	assert.Equal(t, append([]string{"-v", env.cfg.Executable}, invs[0].Args()...), first.Args)

	for _, inv := range invs {
		mem, err := results.ReadFile(inv.OutputPath, results.ParseMemoryFootprint)
		require.NoError(t, err, inv.OutputPath)
		assert.InDelta(t, 1.0, mem.AlgorithmGB(), 1e-12)

		rec, err := env.ledger.Get(inv.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusOK, rec.Status)
		assert.Equal(t, summary.RunID, rec.RunID)
		assert.Equal(t, "memory_footprint", rec.Method)
		assert.Equal(t, "truncate", rec.OutputMode)
		assert.True(t, strings.HasPrefix(rec.CommandLine, "/usr/bin/time -v "))
	}
}

func TestRun_NoWrapper(t *testing.T) {
	env := newTestEnv(t)
	invs := sweep.Plan(env.cfg, sweep.MethodCPUTime, 3)

	_, err := env.runner.Run(context.Background(), invs[:1], Options{})
	require.NoError(t, err)

	call, ok := env.pm.LastCall()
	require.True(t, ok)
	assert.Equal(t, env.cfg.Executable, call.Name)
	assert.Equal(t, invs[0].Args(), call.Args)
}

func TestRun_OutputModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   config.OutputMode
		blocks int
	}{
		{"truncate keeps one block", config.OutputTruncate, 1},
		{"append accumulates reruns", config.OutputAppend, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pm.RunFunc = writeOutput(memoryLog)
			invs := sweep.Plan(env.cfg, sweep.MethodMemoryFootprint, 0)[:1]

			for i := 0; i < 2; i++ {
				_, err := env.runner.Run(context.Background(), invs, Options{Mode: tt.mode})
				require.NoError(t, err)
			}

			mem, err := results.ReadFile(invs[0].OutputPath, results.ParseMemoryFootprint)
			require.NoError(t, err)
			assert.Equal(t, tt.blocks, mem.Blocks)

			rec, err := env.ledger.Get(invs[0].OutputPath)
			require.NoError(t, err)
			assert.Equal(t, 2, rec.Attempts)
		})
	}
}

func TestRun_FailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	invs := sweep.Plan(env.cfg, sweep.MethodCPUTime, 3)
	failing := invs[1].OutputPath

	env.pm.RunFunc = func(_ context.Context, out io.Writer, name string, args ...string) error {
		if strings.Contains(strings.Join(args, " "), invs[1].Dataset) && len(env.pm.Calls) == 2 {
			_, _ = io.WriteString(out, "terminate called after throwing an instance of 'std::bad_alloc'\n")
			return NewCommandError(commandString(name, args), 134, "", errors.New("signal: aborted"))
		}
		_, err := io.WriteString(out, "- experiments: []\n")
		return err
	}

	summary, err := env.runner.Run(context.Background(), invs, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSweepFailed))
	assert.Equal(t, len(invs), summary.Executed, "the sweep continues past a failure")
	assert.Equal(t, 1, summary.Failed)

	var failed *BenchmarkFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, failing, failed.OutputPath)
	assert.Equal(t, 134, failed.ExitCode)
	assert.Contains(t, failed.OutputTail, "std::bad_alloc")

	rec, err := env.ledger.Get(failing)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, rec.Status)
	assert.Equal(t, 134, rec.ExitCode)

	data, err := os.ReadFile(failing)
	require.NoError(t, err)
	assert.Contains(t, string(data), "std::bad_alloc", "output is kept for post-mortem")

	failedRecs, err := env.ledger.List(ledger.Failed)
	require.NoError(t, err)
	assert.Len(t, failedRecs, 1)
	assert.Equal(t, int64(1), env.metrics.Failures())
}

func TestRun_FailFast(t *testing.T) {
	env := newTestEnv(t)
	env.pm.RunFunc = func(context.Context, io.Writer, string, ...string) error {
		return NewCommandError("benchmark", 1, "", nil)
	}
	invs := sweep.Plan(env.cfg, sweep.MethodCPUTime, 3)

	summary, err := env.runner.Run(context.Background(), invs, Options{FailFast: true})
	require.Error(t, err)
	assert.Equal(t, 1, summary.Executed)
	assert.Equal(t, 1, env.pm.CallCount())
}

func TestRun_MissingToolFailsOnlyItsMethod(t *testing.T) {
	env := newTestEnv(t)
	env.runner.resolveTool = func(name string) (string, error) {
		return "", fmt.Errorf("%w: %s", config.ErrToolNotFound, name)
	}
	memory := sweep.Plan(env.cfg, sweep.MethodMemoryFootprint, 0)[:2]
	cpu := sweep.Plan(env.cfg, sweep.MethodCPUTime, 3)[:1]

	summary, err := env.runner.Run(context.Background(), append(memory, cpu...), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrToolNotFound))
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, env.pm.CallCount(), "only the unwrapped invocation runs")

	rec, err := env.ledger.Get(memory[0].OutputPath)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, rec.Status)
	assert.Equal(t, -1, rec.ExitCode)
}

func TestRun_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.runner.Run(ctx, sweep.Plan(env.cfg, sweep.MethodCPUTime, 3), Options{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, env.pm.CallCount())
}

func TestRun_Timeout(t *testing.T) {
	env := newTestEnv(t)
	env.pm.RunFunc = func(ctx context.Context, _ io.Writer, name string, args ...string) error {
		<-ctx.Done()
		return NewCommandError(commandString(name, args), -1, "", ctx.Err())
	}
	invs := sweep.Plan(env.cfg, sweep.MethodCPUTime, 3)[:1]

	_, err := env.runner.Run(context.Background(), invs, Options{Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(16)
	_, _ = tail.Write([]byte("first line\nsecond\n"))
	assert.Equal(t, "second", tail.String())

	tail = newTailBuffer(64)
	_, _ = tail.Write([]byte("short\n"))
	assert.Equal(t, "short", tail.String())

	tail = newTailBuffer(4)
	_, _ = tail.Write([]byte("ab"))
	_, _ = tail.Write([]byte("cdef"))
	assert.Equal(t, "cdef", tail.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("wrapped: %w", NewCommandError("x", 3, "", nil))))
	assert.Equal(t, -1, ExitCode(errors.New("plain")))
}

func TestDefaultProcessManager_Run(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	pm := NewDefaultProcessManager()
	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = pm.Run(context.Background(), f, "/bin/sh", "-c", "echo out; echo err >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "out")
	assert.Contains(t, string(data), "err")
}

func TestDefaultProcessManager_NotFound(t *testing.T) {
	err := NewDefaultProcessManager().Run(context.Background(), io.Discard, "/nonexistent/benchmark")
	require.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}
