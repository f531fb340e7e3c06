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
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/results"
)

// Panel is one dataset's hash distribution.
type Panel struct {
	Title        string
	Distribution results.HashDistribution
}

// HashDistributions draws panels in a two-column grid and writes a PNG.
// Hash functions are drawn in the given order with growing line width so
// overlapping curves stay visible.
func HashDistributions(panels []Panel, hashNames []string, colors []color.Color, opts Options, path string) error {
	if len(panels) == 0 {
		return ErrEmptyTable
	}
	const cols = 2
	rows := (len(panels) + cols - 1) / cols

	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
	}
	for i, panel := range panels {
		p, err := distributionPlot(panel, hashNames, colors)
		if err != nil {
			return err
		}
		plots[i/cols][i%cols] = p
	}

	img := newCanvas(opts)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			if plots[r][c] != nil {
				plots[r][c].Draw(canvases[r][c])
			}
		}
	}
	return writePNG(img, path)
}

func distributionPlot(panel Panel, hashNames []string, colors []color.Color) (*plot.Plot, error) {
	p := newPlot("Number of faces per hash", "Count")
	p.Title.Text = panel.Title
	p.Title.TextStyle.Font.Size = axisLabelSize

	grid := plotter.NewGrid()
	grid.Vertical.Width = vg.Points(0.25)
	grid.Horizontal.Width = vg.Points(0.25)
	p.Add(grid)

	width := vg.Points(1)
	for i, hash := range hashNames {
		bins, ok := panel.Distribution.ByHash[hash]
		if !ok || len(bins) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(bins))
		for j, b := range bins {
			pts[j] = plotter.XY{X: float64(b.FacesPerHash), Y: float64(b.Count)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", panel.Title, hash, err)
		}
		line.LineStyle.Width = width
		line.LineStyle.Color = withAlpha(colors[i%len(colors)], 0.6)
		p.Add(line)
		p.Legend.Add(hash, line)
		width += vg.Points(0.5)
	}

	p.Legend.Top = true
	return p, nil
}
