// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chart

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/palette"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/results"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func smallOptions() Options {
	return Options{Width: 4 * vg.Inch, Height: 3 * vg.Inch, DPI: 72}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func TestBarThickness(t *testing.T) {
	assert.InDelta(t, 0.10/1.2, barThickness(10, 10), 1e-12)
	assert.InDelta(t, 0.10*2/1.2, barThickness(10, 5), 1e-12)
}

func TestBarChart(t *testing.T) {
	tbl := table.New("Algorithm")
	tbl.Set("S-Classifier", "JSM", 1.5)
	tbl.Set("P-Classifier", "JSM", 0.5)
	tbl.Set("S-Classifier", "F-15", 3)
	tbl.SetMissing("P-Classifier", "F-15", "benchmark failed")

	colors := palette.Colors{"S-Classifier": color.Black}
	p, err := BarChart(tbl, colors, BarOptions{
		Options:       smallOptions(),
		XLabel:        "CPU time (seconds)",
		YLabel:        "Datasets",
		MaxAlgorithms: 10,
		ShiftMinLine:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "CPU time (seconds)", p.X.Label.Text)

	path := filepath.Join(t.TempDir(), "figures", "cpu_time.png")
	require.NoError(t, Save(p, smallOptions(), path))
	assertPNG(t, path)
}

func TestBarChart_CenterLegend(t *testing.T) {
	tbl := table.New("Algorithm")
	tbl.Set("P-Hash-Sort-FNV1A", "JSM", 0.1)

	p, err := BarChart(tbl, palette.Colors{}, BarOptions{Options: smallOptions(), Legend: LegendCenterRight})
	require.NoError(t, err)
	assert.Greater(t, float64(p.Legend.YOffs), 0.0)
}

func TestBarChart_Empty(t *testing.T) {
	_, err := BarChart(table.New("Algorithm"), palette.Colors{}, BarOptions{Options: smallOptions()})
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestSpeedUps(t *testing.T) {
	tbl := table.New("Threads")
	tbl.Set("1", "P-Classifier", 8)
	tbl.Set("1", "P-Hash", 4)
	tbl.Set("2", "P-Classifier", 4)
	tbl.Set("2", "P-Hash", 2)
	tbl.Set("4", "P-Classifier", 2)
	tbl.Set("4", "P-Hash", math.NaN())

	speedUps, err := SpeedUps(tbl)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 2}, speedUps.Col("P-Classifier"))
	hash := speedUps.Col("P-Hash")
	assert.Equal(t, []float64{1, 2}, hash[:2])
	assert.True(t, math.IsNaN(hash[2]))

	p, err := SpeedUpChart(speedUps, palette.Colors{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "JSM-tet_speed_up.png")
	require.NoError(t, Save(p, smallOptions(), path))
	assertPNG(t, path)
}

func TestSpeedUpChart_BadThreads(t *testing.T) {
	tbl := table.New("Threads")
	tbl.Set("many", "P-Hash", 1)
	_, err := SpeedUpChart(tbl, palette.Colors{})
	assert.Error(t, err)
}

func TestHashDistributions(t *testing.T) {
	dist := results.HashDistribution{ByHash: map[string][]results.Bin{
		"FNV1A":      {{FacesPerHash: 0, Count: 10}, {FacesPerHash: 1, Count: 100}},
		"MinPointID": {{FacesPerHash: 0, Count: 5}, {FacesPerHash: 3, Count: 7}},
	}}
	panels := []Panel{{Title: "JSM", Distribution: dist}, {Title: "F-15", Distribution: dist}, {Title: "JSM-tet", Distribution: dist}}
	colors := []color.Color{color.Black, color.Gray{Y: 100}}

	path := filepath.Join(t.TempDir(), "hash_distributions.png")
	require.NoError(t, HashDistributions(panels, []string{"MinPointID", "FNV1A"}, colors, smallOptions(), path))
	assertPNG(t, path)

	assert.True(t, errors.Is(HashDistributions(nil, nil, colors, smallOptions(), path), ErrEmptyTable))
}

func TestOptionsFrom(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 8*vg.Inch, opts.Width)
	assert.Equal(t, 6.5*vg.Inch, opts.Height)
	assert.Equal(t, 300, opts.DPI)
}
