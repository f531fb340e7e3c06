// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package palette loads chart colors and assigns one to every algorithm
// label, so that an algorithm keeps its color across all figures.
package palette

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette/brewer"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
)

// ErrPaletteTooSmall is returned when a palette has fewer colors than labels.
var ErrPaletteTooSmall = errors.New("palette has too few colors")

// fallbackColor is used for labels that were never assigned a color.
var fallbackColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// LoadGPL parses a GIMP palette. Comment, blank and header lines without
// three leading integers are skipped; the trailing color name is ignored.
func LoadGPL(r io.Reader) ([]color.Color, error) {
	var colors []color.Color
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		var rgb [3]uint8
		ok := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				ok = false
				break
			}
			rgb[i] = uint8(v)
		}
		if ok {
			colors = append(colors, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return colors, nil
}

// Load reads a .gpl file, falling back to ColorBrewer "Paired" with n
// colors when path is empty or unreadable. usedFallback reports which.
func Load(path string, n int) (colors []color.Color, usedFallback bool, err error) {
	if path != "" {
		if f, openErr := os.Open(path); openErr == nil {
			defer f.Close()
			colors, err = LoadGPL(f)
			if err == nil && len(colors) >= n {
				return colors, false, nil
			}
		}
	}
	colors, err = Brewer(n)
	return colors, true, err
}

// Brewer returns n colors of the qualitative "Paired" scheme.
func Brewer(n int) ([]color.Color, error) {
	p, err := brewer.GetPalette(brewer.TypeQualitative, "Paired", n)
	if err != nil {
		return nil, fmt.Errorf("brewer Paired(%d): %w", n, err)
	}
	return p.Colors(), nil
}

// Colors maps an algorithm label to its chart color.
type Colors map[string]color.Color

// For returns the label's color, or grey for unknown labels.
func (c Colors) For(label string) color.Color {
	if col, ok := c[label]; ok {
		return col
	}
	return fallbackColor
}

// Assign gives VTK algorithm i color i and VTK-m algorithm i with hash id h
// color nHash*i + (h-1) + nVTK. The colors of the second and third VTK
// labels are then exchanged so that, once their table rows are swapped,
// S-Classifier and P-Classifier sit next to each other in matching shades.
func Assign(cfg *config.FacebenchConfig, colors []color.Color) (Colors, error) {
	labels := cfg.Labels()
	if len(colors) < len(labels) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrPaletteTooSmall, len(colors), len(labels))
	}

	vtk := cfg.VTKAlgorithms()
	hashIDs := cfg.HashIDs()
	out := make(Colors, len(labels))
	for i, a := range vtk {
		out[a.Label("")] = colors[i]
	}
	for i, a := range cfg.VTKmAlgorithms() {
		for _, id := range hashIDs {
			out[a.Label(cfg.HashName(id))] = colors[len(hashIDs)*i+(id-1)+len(vtk)]
		}
	}

	if len(vtk) >= 3 {
		second, third := vtk[1].Label(""), vtk[2].Label("")
		out[second], out[third] = out[third], out[second]
	}
	return out, nil
}
