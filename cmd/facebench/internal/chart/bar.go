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
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/palette"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
)

const (
	// datasetSpacing is the distance between dataset groups, in units where
	// a bar of the fullest chart is barUnit thick.
	datasetSpacing = 1.2
	barUnit        = 0.10
	minLineOffset  = 0.99
)

// LegendPosition places the bar chart legend.
type LegendPosition int

const (
	LegendLowerRight LegendPosition = iota
	LegendCenterRight
)

// BarOptions describes one grouped horizontal bar chart.
type BarOptions struct {
	Options
	XLabel string
	YLabel string

	// MaxAlgorithms is the row count of the fullest bar chart. Bars get
	// thicker as the row count drops below it.
	MaxAlgorithms int

	// ShiftMinLine draws the minimum marker at 99% of the minimum so it
	// does not hide the shortest bar's end.
	ShiftMinLine bool

	Legend LegendPosition
}

// barThickness returns the bar thickness as a fraction of the spacing
// between dataset groups.
func barThickness(maxAlgorithms, numAlgorithms int) float64 {
	ratio := float64(maxAlgorithms) / float64(numAlgorithms)
	return barUnit * ratio / datasetSpacing
}

// BarChart draws t (rows: algorithms, cols: datasets) as horizontal bars.
// The first row is drawn at the top of each group. NaN cells are drawn as
// empty bars.
func BarChart(t *table.Table, colors palette.Colors, opts BarOptions) (*plot.Plot, error) {
	rows, cols := t.Rows(), t.Cols()
	if len(rows) == 0 || len(cols) == 0 {
		return nil, ErrEmptyTable
	}
	maxAlgorithms := opts.MaxAlgorithms
	if maxAlgorithms < len(rows) {
		maxAlgorithms = len(rows)
	}

	p := newPlot(opts.XLabel, opts.YLabel)
	p.NominalY(cols...)
	p.Y.Min = -datasetSpacing / 2
	p.Y.Max = float64(len(cols)-1) + datasetSpacing/2

	grid := plotter.NewGrid()
	grid.Horizontal.Color = nil
	grid.Vertical.Color = gridColor
	grid.Vertical.Dashes = dashes
	p.Add(grid)

	// One data unit on the Y axis spans plotHeight/(Y.Max-Y.Min) of canvas.
	thickness := barThickness(maxAlgorithms, len(rows))
	unit := approxPlotHeight(opts.Height) / vg.Length(p.Y.Max-p.Y.Min)
	barWidth := vg.Length(thickness) * unit

	n := len(rows)
	for j, row := range rows {
		bars, err := plotter.NewBarChart(plotter.Values(zeroNaN(t.Row(row))), barWidth)
		if err != nil {
			return nil, fmt.Errorf("bars for %s: %w", row, err)
		}
		bars.Horizontal = true
		bars.Offset = vg.Length(float64(n-1-j)-float64(n-1)/2) * barWidth
		bars.Color = colors.For(row)
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(row, bars)
	}

	for i, col := range cols {
		minimum := t.ColMin(col)
		if math.IsNaN(minimum) {
			continue
		}
		if opts.ShiftMinLine {
			minimum *= minLineOffset
		}
		half := thickness * float64(n) / 2
		line, err := plotter.NewLine(plotter.XYs{
			{X: minimum, Y: float64(i) - half},
			{X: minimum, Y: float64(i) + half},
		})
		if err != nil {
			return nil, fmt.Errorf("minimum line for %s: %w", col, err)
		}
		line.LineStyle.Color = minLineColor
		line.LineStyle.Dashes = dashes
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
	}

	p.Legend.Top = false
	p.Legend.Left = false
	if opts.Legend == LegendCenterRight {
		p.Legend.YOffs = approxPlotHeight(opts.Height) / 2
	}
	return p, nil
}

// approxPlotHeight estimates the data area left after axes and labels.
func approxPlotHeight(height vg.Length) vg.Length {
	return height * 0.85
}
