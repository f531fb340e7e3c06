// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
)

// mockWriteAPI records points the way a blocking write API would receive them.
type mockWriteAPI struct {
	WritePointFunc func(ctx context.Context, point ...*write.Point) error
	Calls          int
	Written        []*write.Point
}

func (m *mockWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	m.Calls++
	m.Written = append(m.Written, point...)
	if m.WritePointFunc != nil {
		return m.WritePointFunc(ctx, point...)
	}
	return nil
}

func lineProtocol(points []*write.Point) []string {
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = write.PointToLineProtocol(p, time.Second)
	}
	return lines
}

func testConfig(t *testing.T) *config.FacebenchConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ResultsDir = t.TempDir()
	cfg.Configuration = "testhost_gcc13"
	return &cfg
}

func writeTable(t *testing.T, cfg *config.FacebenchConfig, m sweep.Method, name string, tbl *table.Table) {
	t.Helper()
	dir := cfg.FiguresPath(m.Dir())
	require.NoError(t, os.MkdirAll(dir, 0750))
	f, err := os.Create(filepath.Join(dir, name+".csv"))
	require.NoError(t, err)
	require.NoError(t, tbl.WriteCSV(f))
	require.NoError(t, f.Close())
}

func TestPoints_AlgorithmIndex(t *testing.T) {
	tbl := table.New("Algorithm")
	tbl.Set("S-Classifier", "JSM", 3)
	tbl.SetMissing("S-Classifier", "F-15", "benchmark failed")
	ts := time.Unix(1736510400, 0)

	points, skipped := Points("host", sweep.MethodCPUTime, "cpu_time_1_threads_normal", tbl, ts)
	require.Len(t, points, 1)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, Measurement, points[0].Name())
	assert.Equal(t, ts, points[0].Time())
	line := lineProtocol(points)[0]
	assert.Contains(t, line, "algorithm=S-Classifier")
	assert.Contains(t, line, "configuration=host")
	assert.Contains(t, line, "dataset=JSM")
	assert.Contains(t, line, "method=cpu_time")
	assert.Contains(t, line, "table=cpu_time_1_threads_normal")
	assert.Contains(t, line, "value=3")
}

func TestPoints_ThreadsIndex(t *testing.T) {
	tbl := table.New("Threads")
	tbl.Set("4", "P-Classifier", 1.25)
	tbl.Set("8", "P-Classifier", math.Inf(1))

	points, skipped := Points("host", sweep.MethodSpeedUp, "JSM-tet_speed_up", tbl, time.Unix(0, 0))
	require.Len(t, points, 1)
	assert.Equal(t, 1, skipped)
	line := lineProtocol(points)[0]
	assert.Contains(t, line, "threads=4")
	assert.Contains(t, line, "algorithm=P-Classifier")
	assert.NotContains(t, line, "dataset=")
}

func TestPublish(t *testing.T) {
	cfg := testConfig(t)

	memory := table.New("Algorithm")
	memory.Set("S-Classifier", "JSM", 1)
	memory.Set("P-Classifier", "JSM", 0.5)
	writeTable(t, cfg, sweep.MethodMemoryFootprint, "memory_footprint", memory)

	empty := table.New("Algorithm")
	empty.SetMissing("S-Classifier", "JSM", "missing")
	writeTable(t, cfg, sweep.MethodCPUTime, "cpu_time_1_threads_normal", empty)

	mock := &mockWriteAPI{}
	sum, err := New(cfg, mock, nil).Publish(context.Background(), sweep.MethodAll)
	require.NoError(t, err)

	assert.Equal(t, Summary{Tables: 2, Points: 2, Skipped: 1}, sum)
	assert.Equal(t, 1, mock.Calls, "tables without values are not written")
	for _, line := range lineProtocol(mock.Written) {
		assert.Contains(t, line, "configuration=testhost_gcc13")
		assert.Contains(t, line, "table=memory_footprint")
	}
}

func TestPublish_SingleMethod(t *testing.T) {
	cfg := testConfig(t)
	tbl := table.New("Algorithm")
	tbl.Set("S-Classifier", "JSM", 1)
	writeTable(t, cfg, sweep.MethodMemoryFootprint, "memory_footprint", tbl)

	_, err := New(cfg, &mockWriteAPI{}, nil).Publish(context.Background(), sweep.MethodGPUTime)
	assert.ErrorIs(t, err, ErrNothingToPublish)
}

func TestPublish_WriteError(t *testing.T) {
	cfg := testConfig(t)
	tbl := table.New("Algorithm")
	tbl.Set("S-Classifier", "JSM", 1)
	writeTable(t, cfg, sweep.MethodMemoryFootprint, "memory_footprint", tbl)

	unauthorized := errors.New("unauthorized access")
	mock := &mockWriteAPI{WritePointFunc: func(context.Context, ...*write.Point) error { return unauthorized }}

	_, err := New(cfg, mock, nil).Publish(context.Background(), sweep.MethodMemoryFootprint)
	assert.ErrorIs(t, err, unauthorized)
}

func TestPublish_MalformedTable(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.FiguresPath(sweep.MethodMemoryFootprint.Dir())
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory_footprint.csv"), []byte("Algorithm,JSM\nS-Classifier,abc\n"), 0640))

	_, err := New(cfg, &mockWriteAPI{}, nil).Publish(context.Background(), sweep.MethodMemoryFootprint)
	assert.ErrorIs(t, err, table.ErrMalformedCSV)
}

func TestPublish_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	tbl := table.New("Algorithm")
	tbl.Set("S-Classifier", "JSM", 1)
	writeTable(t, cfg, sweep.MethodMemoryFootprint, "memory_footprint", tbl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(cfg, &mockWriteAPI{}, nil).Publish(ctx, sweep.MethodMemoryFootprint)
	assert.ErrorIs(t, err, context.Canceled)
}
