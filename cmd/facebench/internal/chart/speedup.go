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
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/palette"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
)

// SpeedUps converts a time table (rows: thread counts, cols: algorithms)
// into speed-up over the best single-thread time, i.e. the minimum of the
// first row. The result has the same shape.
func SpeedUps(t *table.Table) (*table.Table, error) {
	rows, cols := t.Rows(), t.Cols()
	if len(rows) == 0 || len(cols) == 0 {
		return nil, ErrEmptyTable
	}
	best := table.NaNMin(t.Row(rows[0]))

	out := table.New(t.Index)
	for _, row := range rows {
		for _, col := range cols {
			v, _ := t.Get(row, col)
			out.Set(row, col, best/v)
		}
	}
	return out, nil
}

// SpeedUpChart draws one line per algorithm of a speed-up table whose rows
// are thread counts. The last segment is dashed: the highest thread count
// runs on hyper-threads.
func SpeedUpChart(speedUps *table.Table, colors palette.Colors) (*plot.Plot, error) {
	rows, cols := speedUps.Rows(), speedUps.Cols()
	if len(rows) == 0 || len(cols) == 0 {
		return nil, ErrEmptyTable
	}

	threads := make([]float64, len(rows))
	ticks := make([]plot.Tick, len(rows))
	for i, row := range rows {
		n, err := strconv.ParseFloat(row, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("thread count %q: not a positive number", row)
		}
		threads[i] = n
		ticks[i] = plot.Tick{Value: n, Label: row}
	}

	p := newPlot("Threads", "Speed-up")
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Add(plotter.NewGrid())

	for _, col := range cols {
		pts := make(plotter.XYs, 0, len(rows))
		for i, v := range speedUps.Col(col) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: threads[i], Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		c := withAlpha(colors.For(col), 0.8)

		solid := pts
		if len(pts) > 1 {
			solid = pts[:len(pts)-1]
		}
		line, points, err := plotter.NewLinePoints(solid)
		if err != nil {
			return nil, fmt.Errorf("speed-up line for %s: %w", col, err)
		}
		line.LineStyle.Color = c
		points.Shape = draw.CircleGlyph{}
		points.Color = c
		p.Add(line, points)
		p.Legend.Add(col, line, points)

		if len(pts) > 1 {
			tail, tailPoints, err := plotter.NewLinePoints(pts[len(pts)-2:])
			if err != nil {
				return nil, fmt.Errorf("speed-up tail for %s: %w", col, err)
			}
			tail.LineStyle.Color = c
			tail.LineStyle.Dashes = dashes
			tailPoints.Shape = draw.CircleGlyph{}
			tailPoints.Color = c
			p.Add(tail, tailPoints)
		}
	}

	// Pin the log axis to the thread range so an empty or single-point
	// chart never gets a non-positive bound.
	p.X.Min, p.X.Max = threads[0], threads[len(threads)-1]
	if p.X.Min == p.X.Max {
		p.X.Min, p.X.Max = p.X.Min/2, p.X.Max*2
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = vg.Millimeter
	return p, nil
}
