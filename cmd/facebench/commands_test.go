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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/runner"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
)

// =============================================================================
// Harness
// =============================================================================

// resetFlags restores flag variables that persist between Execute calls.
func resetFlags() {
	methodFlag, iterationsFlag = 0, 10
	failFast, appendOutput, watchFlag, failedOnly, forceInit = false, false, false, false, false
	timeoutFlag = 0
	logLevel, logDir, jsonLogs = "info", "", false
	influxOrg, gcsCredentials, gcsPrefix = "", "", "facebench"
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--personality", "machine"}, args...))
	err := executeRoot(context.Background())
	return buf.String(), err
}

// writeTestConfig writes a two-dataset, two-thread configuration rooted in
// a temp directory and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.Configuration = "testhost_tbb"
	c.ResultsDir = filepath.Join(dir, "results")
	c.DataDir = filepath.Join(dir, "Data")
	c.Executable = "/opt/bench/vtk-external-facelist-evaluation"
	c.Datasets = []string{"JSM.vtu", "F-15.vtu"}
	c.Threads.Cap = 2
	c.Figures.Width, c.Figures.Height, c.Figures.DPI = 4, 3, 50

	data, err := config.Marshal(c)
	require.NoError(t, err)
	path := filepath.Join(dir, "facebench.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// useProcessManager swaps the benchmark runner for the test's duration.
func useProcessManager(t *testing.T, pm runner.ProcessManager) {
	t.Helper()
	prev := processManager
	processManager = pm
	t.Cleanup(func() { processManager = prev })
}

// fakeBenchmark answers every invocation with a one-experiment timing file.
func fakeBenchmark(ctx context.Context, out io.Writer, name string, args ...string) error {
	_, err := io.WriteString(out, "- device: TBB\n  experiments:\n"+
		"    - algorithm-name: P-Classifier\n      hash-name: None\n      trials:\n"+
		"        - trial-index: 0\n          seconds-total: 1.5\n")
	return err
}

// =============================================================================
// config
// =============================================================================

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "facebench.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: Wrote default configuration")
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorIs(t, err, config.ErrConfigExists)

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration: frontier_rocm6.2.4_tbb2022.0.0_kokkos4.5.00")
	assert.NotContains(t, out, "not found")
}

func TestConfigShow_Defaults(t *testing.T) {
	out, err := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "not found, showing defaults")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facebench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets: [only-one.vtu]\n"), 0644))

	_, err := execute(t, "plan", "--config", path)
	assert.Error(t, err)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "plan", "--config", writeTestConfig(t), "--log-level", "loud")
	assert.ErrorContains(t, err, "--log-level")
}

// =============================================================================
// plan and run
// =============================================================================

func TestPlan(t *testing.T) {
	out, err := execute(t, "plan", "--config", writeTestConfig(t), "--method", "2", "--iterations", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "# 6 invocations for cpu_time")
	assert.Contains(t, out, filepath.Join("data", "cpu_time", "JSM_1_threads_normal.yaml"))
	assert.Contains(t, out, "-n 3")
	assert.Contains(t, out, "-r -s 2639962142")
}

func TestPlan_ShowsWrappers(t *testing.T) {
	out, err := execute(t, "plan", "--config", writeTestConfig(t), "--method", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "time -v /opt/bench/vtk-external-facelist-evaluation")
}

func TestPlan_UnknownMethod(t *testing.T) {
	_, err := execute(t, "plan", "--config", writeTestConfig(t), "--method", "9")
	assert.ErrorIs(t, err, sweep.ErrUnknownMethod)
	assert.Equal(t, exitError, exitCode(err))
}

func TestRunThenFigures(t *testing.T) {
	path := writeTestConfig(t)
	pm := &runner.MockProcessManager{RunFunc: fakeBenchmark}
	useProcessManager(t, pm)

	out, err := execute(t, "run", "--config", path, "--method", "2", "--iterations", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: Run ")
	assert.Equal(t, 6, pm.CallCount())
	last, ok := pm.LastCall()
	require.True(t, ok)
	assert.Equal(t, "/opt/bench/vtk-external-facelist-evaluation", last.Name)

	root := filepath.Join(filepath.Dir(path), "results", "testhost_tbb")
	assert.FileExists(t, filepath.Join(root, "data", "cpu_time", "F-15_2_threads_normal.yaml"))
	assert.FileExists(t, filepath.Join(root, "metrics.prom"))
	assert.DirExists(t, filepath.Join(root, "ledger"))

	out, err = execute(t, "ledger", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# 6 invocations, 0 failed")

	out, err = execute(t, "figures", "--config", path, "--method", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 3 tables, 3 figures")
	assert.FileExists(t, filepath.Join(root, "figures", "cpu_time", "cpu_time_2_threads_normal.csv"))
	assert.FileExists(t, filepath.Join(root, "figures.prom"))
}

func TestRun_FailuresExitNonZero(t *testing.T) {
	path := writeTestConfig(t)
	useProcessManager(t, &runner.MockProcessManager{
		RunFunc: func(ctx context.Context, out io.Writer, name string, args ...string) error {
			if strings.Contains(strings.Join(args, " "), "F-15.vtu") {
				_, _ = io.WriteString(out, "terminate called after throwing an instance of 'std::bad_alloc'\n")
				return runner.NewCommandError(name, 134, "", errors.New("signal: aborted"))
			}
			return fakeBenchmark(ctx, out, name, args...)
		},
	})

	out, err := execute(t, "run", "--config", path, "--method", "2", "--iterations", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrSweepFailed)
	assert.Equal(t, exitSweepFailed, exitCode(err))
	assert.Contains(t, out, "ERROR: Run ")

	out, err = execute(t, "ledger", "--config", path, "--failed")
	require.NoError(t, err)
	assert.Contains(t, out, "# 3 invocations, 3 failed")
	assert.Contains(t, out, "134")
	assert.NotContains(t, out, "JSM_")
}

func TestRun_FailedSweepClosesLog(t *testing.T) {
	path := writeTestConfig(t)
	logs := filepath.Join(t.TempDir(), "logs")
	useProcessManager(t, &runner.MockProcessManager{
		RunFunc: func(context.Context, io.Writer, string, ...string) error {
			return runner.NewCommandError("bench", 134, "", nil)
		},
	})

	_, err := execute(t, "run", "--config", path, "--method", "2", "--fail-fast",
		"--log-dir", logs, "--log-level", "debug")
	require.ErrorIs(t, err, runner.ErrSweepFailed)

	files, err := filepath.Glob(filepath.Join(logs, "facebench_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, `"msg":"Benchmark failed"`)
	assert.Contains(t, log, `"configuration":"testhost_tbb"`)
	assert.Contains(t, log, `"method":"cpu_time"`)
	assert.Contains(t, log, `"msg":"Command finished"`, "teardown runs when the command fails")
}

func TestRun_FailFast(t *testing.T) {
	path := writeTestConfig(t)
	pm := &runner.MockProcessManager{
		RunFunc: func(context.Context, io.Writer, string, ...string) error {
			return runner.NewCommandError("bench", 1, "", nil)
		},
	}
	useProcessManager(t, pm)

	_, err := execute(t, "run", "--config", path, "--method", "2", "--fail-fast")
	assert.ErrorIs(t, err, runner.ErrSweepFailed)
	assert.Equal(t, 1, pm.CallCount())
}

func TestLedger_Empty(t *testing.T) {
	out, err := execute(t, "ledger", "--config", writeTestConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet for testhost_tbb")
}

// =============================================================================
// publish and archive
// =============================================================================

func TestPublish_RequiresToken(t *testing.T) {
	t.Setenv("INFLUXDB_TOKEN", "")
	_, err := execute(t, "publish", "--config", writeTestConfig(t), "--org", "lab")
	assert.ErrorContains(t, err, "INFLUXDB_TOKEN")
}

func TestPublish_RequiresOrg(t *testing.T) {
	t.Setenv("INFLUXDB_TOKEN", "secret")
	_, err := execute(t, "publish", "--config", writeTestConfig(t))
	assert.ErrorContains(t, err, "--org")
}

func TestArchive_RequiresCredentials(t *testing.T) {
	_, err := execute(t, "archive", "--config", writeTestConfig(t), "--bucket", "b")
	assert.ErrorContains(t, err, "--credentials")
}

func TestArchive_NothingToArchive(t *testing.T) {
	_, err := execute(t, "archive", "--config", writeTestConfig(t), "--bucket", "facebench-results", "--credentials", "/nonexistent/key.json")
	assert.ErrorContains(t, err, "nothing to archive")
}

func TestArchive_InvalidNames(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := execute(t, "archive", "--config", cfgPath, "--bucket", "Results", "--credentials", "/nonexistent/key.json")
	assert.ErrorContains(t, err, "invalid --bucket")

	_, err = execute(t, "archive", "--config", cfgPath, "--bucket", "facebench-results", "--prefix", "../up", "--credentials", "/nonexistent/key.json")
	assert.ErrorContains(t, err, "invalid --prefix")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitSweepFailed, exitCode(&runner.SweepError{Total: 2}))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}
