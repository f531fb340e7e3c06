// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart renders the evaluation figures as PNG files with gonum/plot.
//
// Three figure shapes exist: grouped horizontal bars (one group per
// dataset, one bar per algorithm), speed-up lines on a log2 thread axis,
// and a grid of hash-distribution panels.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
)

// ErrEmptyTable is returned when there is nothing to draw.
var ErrEmptyTable = errors.New("table has no rows or columns")

var (
	axisLabelSize = vg.Points(14)
	legendSize    = vg.Points(11)
	minLineColor  = color.Gray{Y: 128}
	gridColor     = color.Gray{Y: 200}
	dashes        = []vg.Length{vg.Points(4), vg.Points(2)}
)

// Options sets the output size and resolution.
type Options struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
}

// OptionsFrom converts the figure settings (inches, dpi) to Options.
func OptionsFrom(cfg config.FiguresConfig) Options {
	return Options{
		Width:  vg.Length(cfg.Width) * vg.Inch,
		Height: vg.Length(cfg.Height) * vg.Inch,
		DPI:    cfg.DPI,
	}
}

// DefaultOptions is 8x6.5 inches at 300 dpi.
func DefaultOptions() Options {
	return OptionsFrom(config.DefaultConfig().Figures)
}

func newPlot(xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Label.TextStyle.Font.Size = axisLabelSize
	p.Y.Label.TextStyle.Font.Size = axisLabelSize
	p.Legend.TextStyle.Font.Size = legendSize
	p.Legend.Padding = vg.Millimeter
	return p
}

// newCanvas returns a raster canvas honoring the configured dpi.
func newCanvas(opts Options) *vgimg.Canvas {
	return vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
}

// Save draws p and writes it as PNG to path, creating the directory.
func Save(p *plot.Plot, opts Options, path string) error {
	c := newCanvas(opts)
	p.Draw(draw.New(c))
	return writePNG(c, path)
}

func writePNG(c *vgimg.Canvas, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create figure dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// zeroNaN replaces NaN and Inf with 0; plotters reject them.
func zeroNaN(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	return out
}

// withAlpha returns c with the given opacity in [0,1].
func withAlpha(c color.Color, alpha float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(alpha * 255))
	return n
}
