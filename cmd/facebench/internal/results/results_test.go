// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package results

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timingYAML = `- vtk-version: 9.4.1
  vtkm-version: 2.2.0
  hostname: frontier01
  date: 2025-01-10T12:00:00+0000
  device: TBB
  num-threads: 1
  input-file: /data/JSM.vtu
  topology-connections: regular
  num-input-points: 1000
  num-input-cells: 4000
  dataset-memory-used: 52428
  experiments:
    - algorithm-name: S-Classifier
      hash-name: None
      full-name: S-Classifier None
      first-run-time: 0.5
      num-output-points: 10
      trials:
        - trial-index: 0
          seconds-total: 2.0
          seconds-clean-grid: 0.1
        - trial-index: 1
          seconds-total: 4.0
          seconds-clean-grid: 0.1
    - algorithm-name: DP-Hash-Sort
      hash-name: FNV1A
      full-name: DP-Hash-Sort FNV1A
      first-run-time: 0.3
`

const distributionYAML = `- device: TBB
  num-threads: 1
  experiments:
    face-hash-distribution:
      FNV1A:
        2: 40
        0: 10
        1: 100
      MinPointID:
        0: 5
        3: 7
`

// =============================================================================
// Text logs
// =============================================================================

func TestParseMemoryFootprint(t *testing.T) {
	log := "dataset-memory-used: 1048576\n\tCommand being timed: \"bench\"\n" +
		"\tMaximum resident set size (kbytes): 2097152\n"

	m, err := ParseMemoryFootprint(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), m.DatasetKiB)
	assert.Equal(t, int64(2097152), m.MaxRSSKiB)
	assert.Equal(t, 1, m.Blocks)
	assert.InDelta(t, float64(2097152-1048576)/(1024*1024), m.AlgorithmGB(), 1e-12)
	assert.InDelta(t, 1.0, m.AlgorithmGB(), 1e-12)
}

func TestParseMemoryFootprint_MissingMarker(t *testing.T) {
	_, err := ParseMemoryFootprint(strings.NewReader("dataset-memory-used: 12\nKilled\n"))
	assert.True(t, errors.Is(err, ErrMarkerNotFound))
}

func TestParseMemoryFootprint_AppendedRuns(t *testing.T) {
	one := "dataset-memory-used: 100\nMaximum resident set size (kbytes): 300\n"
	two := "dataset-memory-used: 999\nMaximum resident set size (kbytes): 9999\n"

	m, err := ParseMemoryFootprint(strings.NewReader(one + two))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Blocks)
	assert.Equal(t, int64(100), m.DatasetKiB, "first block wins")
}

func TestParseCacheMisses(t *testing.T) {
	log := ` Performance counter stats for 'bench -i JSM.vtu':

         1,234,567      cache-misses

       1.002 seconds time elapsed
`
	c, err := ParseCacheMisses(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), c.Count)
	assert.Equal(t, 1, c.Blocks)
	assert.Equal(t, int64(234567), c.Count-1000000)
}

func TestParseCacheMisses_Missing(t *testing.T) {
	_, err := ParseCacheMisses(strings.NewReader("<not supported> cycles\n"))
	assert.True(t, errors.Is(err, ErrMarkerNotFound))
}

// =============================================================================
// YAML
// =============================================================================

func TestParseTimings(t *testing.T) {
	report, err := ParseTimings(strings.NewReader(timingYAML))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Blocks)
	assert.Equal(t, "frontier01", report.Header.Hostname)
	assert.Equal(t, int64(52428), report.Header.DatasetMemoryUsed)
	require.Len(t, report.Experiments, 2)

	first := report.Experiments[0]
	assert.Equal(t, "S-Classifier", first.Label())
	assert.InDelta(t, 3.0, first.Timing.Mean, 1e-12)
	assert.InDelta(t, 1.4142135623730951, first.Timing.StdDev, 1e-12)
	assert.Equal(t, 2, first.Timing.Trials)

	second := report.Experiments[1]
	assert.Equal(t, "DP-Hash-Sort-FNV1A", second.Label())
	assert.Zero(t, second.Timing.Mean, "no trials averages to 0")

	_, ok := report.Lookup("S-Classifier")
	assert.True(t, ok)
	_, ok = report.Lookup("P-Hash")
	assert.False(t, ok)
}

func TestParseTimings_NoData(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"malformed", "- experiments: [unterminated\n"},
		{"empty list", "[]\n"},
		{"not a list", "experiments: []\n"},
		{"no experiments", "- device: TBB\n"},
		{"distribution file", distributionYAML},
		{"crash output", "terminate called after throwing an instance of 'std::bad_alloc'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimings(strings.NewReader(tt.content))
			assert.True(t, errors.Is(err, ErrNoData), "got %v", err)
		})
	}
}

// trialErrorsYAML has trials that threw: the benchmark writes the error
// inside the trial and reports 0 seconds for it.
const trialErrorsYAML = `- device: KOKKOS
  num-threads: 64
  experiments:
    - algorithm-name: P-Hash-Fight
      hash-name: FNV1A
      first-run-time: 0.2
      trials:
        - trial-index: 0
          seconds-total: 1.0
        - trial-index: 1
          error: out of device memory
          seconds-total: 0
        - trial-index: 2
          seconds-total: 3.0
    - algorithm-name: P-Hash-Count
      hash-name: FNV1A
      first-run-time: 0.2
      trials:
        - trial-index: 0
          error: bad allocation
          seconds-total: 0
        - trial-index: 1
          error: out of device memory
          seconds-total: 0
`

func TestParseTimings_TrialErrors(t *testing.T) {
	report, err := ParseTimings(strings.NewReader(trialErrorsYAML))
	require.NoError(t, err)
	require.Len(t, report.Experiments, 2)

	partial := report.Experiments[0]
	assert.Empty(t, partial.Error)
	assert.InDelta(t, 2.0, partial.Timing.Mean, 1e-12, "failed trials are not averaged in")
	assert.Equal(t, 2, partial.Timing.Trials)
	assert.Equal(t, 1, partial.Timing.Failed)

	failed := report.Experiments[1]
	assert.Equal(t, "bad allocation", failed.Error)
	assert.Zero(t, failed.Timing.Trials)
	assert.Equal(t, 2, failed.Timing.Failed)
}

func TestParseTimings_EmptyExperiments(t *testing.T) {
	report, err := ParseTimings(strings.NewReader("- device: TBB\n  experiments:\n"))
	require.NoError(t, err)
	assert.Empty(t, report.Experiments)
}

func TestParseTimings_AppendedRuns(t *testing.T) {
	report, err := ParseTimings(strings.NewReader(timingYAML + timingYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Blocks)
	assert.Len(t, report.Experiments, 2)

	report, err = ParseTimings(strings.NewReader(timingYAML + "---\n" + timingYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Blocks)
}

func TestParseHashDistribution(t *testing.T) {
	dist, err := ParseHashDistribution(strings.NewReader(distributionYAML))
	require.NoError(t, err)

	assert.Equal(t, 1, dist.Blocks)
	assert.Equal(t, []Bin{{0, 10}, {1, 100}, {2, 40}}, dist.ByHash["FNV1A"])
	assert.Equal(t, []Bin{{0, 5}, {3, 7}}, dist.ByHash["MinPointID"])
}

func TestParseHashDistribution_TimingFile(t *testing.T) {
	_, err := ParseHashDistribution(strings.NewReader(timingYAML))
	assert.True(t, errors.Is(err, ErrNoData))
}

// =============================================================================
// Files
// =============================================================================

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "JSM_1_threads_normal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(timingYAML), 0644))

	report, err := ReadFile(path, ParseTimings)
	require.NoError(t, err)
	assert.Len(t, report.Experiments, 2)

	_, err = ReadFile(filepath.Join(dir, "absent.yaml"), ParseTimings)
	assert.True(t, errors.Is(err, ErrMissingFile))

	require.NoError(t, os.WriteFile(path, []byte("garbage: [\n"), 0644))
	_, err = ReadFile(path, ParseTimings)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), path)
}
