// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package figures turns the raw result files of a sweep into CSV tables,
ratio summaries and PNG charts.

It walks the same invocation plan the run driver executed, reading each
output file instead of writing it. A cell with no usable value is NaN and
carries the reason: the ledger recorded a failed run, the file is missing,
or the file holds no data. Text logs without their marker report 0, as they
always have.
*/
package figures

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/chart"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/ledger"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/palette"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/results"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
	"github.com/AleutianAI/facebench/pkg/ux"
)

// Reasons recorded on NaN cells.
const (
	ReasonFailed     = "benchmark failed"
	ReasonMissing    = "missing"
	ReasonNoData     = "no data"
	ReasonNotInFile  = "not in results"
	ReasonUnreadable = "unreadable"
)

// RecordLookup finds the ledger record of an output file.
// *ledger.Ledger implements it.
type RecordLookup interface {
	Get(outputPath string) (ledger.Record, error)
}

// Deps are the Generator's optional collaborators.
type Deps struct {
	Records RecordLookup
	Metrics telemetry.Recorder
	Logger  *slog.Logger
	Printer *ux.Printer
}

// Report summarizes one Generate call.
type Report struct {
	CSVs      []string
	Figures   []string
	Ambiguous []string
	Missing   int
	Warnings  []string
}

func (r *Report) merge(o Report) {
	r.CSVs = append(r.CSVs, o.CSVs...)
	r.Figures = append(r.Figures, o.Figures...)
	r.Ambiguous = append(r.Ambiguous, o.Ambiguous...)
	r.Missing += o.Missing
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// Generator is the figure-generation driver.
type Generator struct {
	cfg        *config.FacebenchConfig
	colors     palette.Colors
	hashColors []color.Color
	opts       chart.Options

	records RecordLookup
	metrics telemetry.Recorder
	logger  *slog.Logger
	printer *ux.Printer
}

// New creates a Generator. colors maps algorithm labels to chart colors.
func New(cfg *config.FacebenchConfig, colors palette.Colors, deps Deps) *Generator {
	g := &Generator{
		cfg:     cfg,
		colors:  colors,
		opts:    chart.OptionsFrom(cfg.Figures),
		records: deps.Records,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		printer: deps.Printer,
	}
	if g.metrics == nil {
		g.metrics = telemetry.NewNoOpRecorder()
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	if g.printer == nil {
		g.printer = ux.NewPrinter(os.Stdout)
	}
	g.hashColors = distributionColors(len(cfg.HashIDs()))
	return g
}

// LoadColors builds the label-to-color map from the configured palette
// file, falling back to the built-in ColorBrewer palette.
func LoadColors(cfg *config.FacebenchConfig, logger *slog.Logger) (palette.Colors, error) {
	n := len(cfg.Labels())
	colors, fallback, err := palette.Load(cfg.Figures.Palette, n)
	if err != nil {
		return nil, fmt.Errorf("load palette: %w", err)
	}
	if fallback && logger != nil {
		logger.Info("Using built-in Paired palette", "palette_file", cfg.Figures.Palette)
	}
	return palette.Assign(cfg, colors)
}

// distributionColors takes the dark shades of the Paired palette, one per
// hash function.
func distributionColors(n int) []color.Color {
	all, err := palette.Brewer(max(3, 2*n))
	if err != nil || len(all) < 2*n {
		return []color.Color{color.Black}
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = all[2*i+1]
	}
	return out
}

// Generate renders every table and figure of the selected method(s).
// Data problems become NaN cells and warnings; only failures to write
// outputs are returned as errors.
func (g *Generator) Generate(ctx context.Context, method sweep.Method) (Report, error) {
	var report Report
	for _, m := range method.Expand() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := os.MkdirAll(g.cfg.FiguresPath(m.Dir()), 0750); err != nil {
			return report, fmt.Errorf("create figures directory: %w", err)
		}
		invs := sweep.Plan(g.cfg, m, 0)
		w := &work{g: g, method: m}

		var err error
		switch m {
		case sweep.MethodMemoryFootprint:
			err = w.memoryFootprint(invs)
		case sweep.MethodCPUTime:
			err = w.cpuTime(invs)
		case sweep.MethodHashPerformance:
			err = w.hashPerformance(invs)
		case sweep.MethodSpeedUp:
			err = w.speedUp(invs)
		case sweep.MethodGPUTime:
			err = w.gpuTime(invs)
		}
		report.merge(w.report)
		if err != nil {
			return report, fmt.Errorf("%s: %w", m, err)
		}
	}

	for _, path := range report.Ambiguous {
		g.printer.Warning("ambiguous result file (several runs appended, first used): " + path)
	}
	return report, nil
}

// -----------------------------------------------------------------------------
// Per-method work
// -----------------------------------------------------------------------------

// work carries the state of one method's figure generation.
type work struct {
	g      *Generator
	method sweep.Method
	report Report
}

func (w *work) warn(msg string, args ...any) {
	w.g.logger.Warn(msg, args...)
	w.report.Warnings = append(w.report.Warnings, fmt.Sprint(append([]any{msg}, args...)...))
}

// missing stores a NaN cell with its reason.
func (w *work) missing(t *table.Table, inv sweep.Invocation, row, col, reason string) {
	w.g.logger.Warn("Cell has no value",
		"method", w.method.String(),
		"algorithm", row,
		"column", col,
		"reason", reason,
		"output", inv.OutputPath)
	t.SetMissing(row, col, reason)
	w.report.Missing++
	w.g.metrics.RecordMissingCell(w.method.String())
}

// failedRun reports whether the ledger recorded inv as failed.
func (w *work) failedRun(inv sweep.Invocation) bool {
	if w.g.records == nil {
		return false
	}
	rec, err := w.g.records.Get(inv.OutputPath)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			w.g.logger.Debug("Ledger lookup failed", "output", inv.OutputPath, "error", err)
		}
		return false
	}
	return rec.Status == ledger.StatusFailed
}

// checkBlocks flags files that accumulated more than one run.
func (w *work) checkBlocks(inv sweep.Invocation, blocks int) {
	if blocks <= 1 {
		return
	}
	w.g.logger.Warn("Result file holds several runs, using the first",
		"output", inv.OutputPath,
		"blocks", blocks)
	w.report.Ambiguous = append(w.report.Ambiguous, inv.OutputPath)
	w.g.metrics.RecordAmbiguousFile(w.method.String())
}

// reasonFor maps a read error to a cell reason.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, results.ErrMissingFile):
		return ReasonMissing
	case errors.Is(err, results.ErrNoData):
		return ReasonNoData
	default:
		return ReasonUnreadable
	}
}

// export writes t as <name>.csv and prints it with the reasons behind its
// empty cells and its ratio summary.
func (w *work) export(t *table.Table, name string, ratios bool) error {
	path := filepath.Join(w.g.cfg.FiguresPath(w.method.Dir()), name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	w.report.CSVs = append(w.report.CSVs, path)

	records := t.Records()
	w.g.printer.Title(name)
	w.g.printer.Table(records[0], records[1:])
	for _, m := range t.Missing() {
		if m.Reason != "" {
			w.g.printer.Warning(fmt.Sprintf("%s/%s: %s", m.Row, m.Col, m.Reason))
		}
	}
	if ratios {
		printRatios(w.g.printer, t)
	}
	return nil
}

func (w *work) figurePath(name string) string {
	return filepath.Join(w.g.cfg.FiguresPath(w.method.Dir()), name+".png")
}

func (w *work) wrote(path string) {
	w.report.Figures = append(w.report.Figures, path)
	w.g.metrics.RecordFigure(w.method.String())
	w.g.printer.Success("wrote " + path)
}

// save writes a chart as <name>.png.
func (w *work) save(p *plot.Plot, name string) error {
	path := w.figurePath(name)
	if err := chart.Save(p, w.g.opts, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	w.wrote(path)
	return nil
}

// barChart renders t as a grouped bar chart named name.
func (w *work) barChart(t *table.Table, name, xLabel string, gpu bool) error {
	opts := chart.BarOptions{
		Options:       w.g.opts,
		XLabel:        xLabel,
		YLabel:        "Datasets",
		MaxAlgorithms: len(w.g.cfg.Labels()),
		ShiftMinLine:  !gpu,
		Legend:        chart.LegendLowerRight,
	}
	if gpu {
		opts.Legend = chart.LegendCenterRight
	}
	p, err := chart.BarChart(t, w.g.colors, opts)
	if errors.Is(err, chart.ErrEmptyTable) {
		w.warn("Nothing to plot", "figure", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return w.save(p, name)
}
