// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package figures

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/chart"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/results"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
	"github.com/AleutianAI/facebench/pkg/ux"
)

// -----------------------------------------------------------------------------
// Memory footprint
// -----------------------------------------------------------------------------

func (w *work) memoryFootprint(invs []sweep.Invocation) error {
	t := table.New("Algorithm")
	for _, inv := range invs {
		t.AddRow(inv.Label)
	}
	for _, inv := range invs {
		row, col := inv.Label, inv.DatasetName()
		if w.failedRun(inv) {
			w.missing(t, inv, row, col, ReasonFailed)
			continue
		}
		mem, err := results.ReadFile(inv.OutputPath, results.ParseMemoryFootprint)
		switch {
		case errors.Is(err, results.ErrMarkerNotFound):
			w.warn("Memory markers not found, reporting 0", "output", inv.OutputPath)
			t.Set(row, col, 0)
		case err != nil:
			w.warn("Memory footprint unavailable", "output", inv.OutputPath, "error", err)
			w.missing(t, inv, row, col, reasonFor(err))
		default:
			w.checkBlocks(inv, mem.Blocks)
			t.Set(row, col, mem.AlgorithmGB())
		}
	}

	pairClassifiers(w.g.cfg, t)

	const name = "memory_footprint"
	if err := w.export(t, name, true); err != nil {
		return err
	}
	return w.barChart(t, name, "Memory footprint (gigabytes)", false)
}

// -----------------------------------------------------------------------------
// CPU time
// -----------------------------------------------------------------------------

func (w *work) cpuTime(invs []sweep.Invocation) error {
	for _, name := range sweep.Tables(invs) {
		t := w.timingTable(sweep.Filter(invs, name), datasetColumn)
		pairClassifiers(w.g.cfg, t)
		if err := w.export(t, name, true); err != nil {
			return err
		}
		if err := w.barChart(t, name, "CPU time (seconds)", false); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Hash performance
// -----------------------------------------------------------------------------

func (w *work) hashPerformance(invs []sweep.Invocation) error {
	if err := w.hashDistributions(sweep.Filter(invs, "hash_distributions")); err != nil {
		return err
	}
	return w.cacheMisses(sweep.Filter(invs, "cache_misses"))
}

func (w *work) hashDistributions(invs []sweep.Invocation) error {
	var panels []chart.Panel
	for _, inv := range invs {
		if w.failedRun(inv) {
			w.warn("Skipping hash distribution of failed run", "output", inv.OutputPath)
			continue
		}
		dist, err := results.ReadFile(inv.OutputPath, results.ParseHashDistribution)
		if err != nil {
			w.warn("Hash distribution unavailable", "output", inv.OutputPath, "error", err)
			continue
		}
		w.checkBlocks(inv, dist.Blocks)
		panels = append(panels, chart.Panel{Title: inv.DatasetName(), Distribution: dist})
	}
	if len(panels) == 0 {
		w.warn("Nothing to plot", "figure", "hash_distributions")
		return nil
	}

	// Drawn last hash first so the thinnest line ends up underneath.
	ids := w.g.cfg.HashIDs()
	hashNames := make([]string, 0, len(ids))
	colors := make([]color.Color, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		hashNames = append(hashNames, w.g.cfg.HashName(ids[i]))
		colors = append(colors, w.g.hashColors[i%len(w.g.hashColors)])
	}

	path := w.figurePath("hash_distributions")
	if err := chart.HashDistributions(panels, hashNames, colors, w.g.opts, path); err != nil {
		return fmt.Errorf("hash_distributions: %w", err)
	}
	w.wrote(path)
	return nil
}

// cacheCount reads one perf log. ok is false when the cell must be NaN.
func (w *work) cacheCount(inv sweep.Invocation) (count float64, reason string, ok bool) {
	if w.failedRun(inv) {
		return 0, ReasonFailed, false
	}
	misses, err := results.ReadFile(inv.OutputPath, results.ParseCacheMisses)
	switch {
	case errors.Is(err, results.ErrMarkerNotFound):
		w.warn("Cache-miss counter not found, reporting 0", "output", inv.OutputPath)
		return 0, "", true
	case err != nil:
		w.warn("Cache misses unavailable", "output", inv.OutputPath, "error", err)
		return 0, reasonFor(err), false
	}
	w.checkBlocks(inv, misses.Blocks)
	return float64(misses.Count), "", true
}

func (w *work) cacheMisses(invs []sweep.Invocation) error {
	t := table.New("Algorithm")
	type baseline struct {
		count  float64
		reason string
		ok     bool
	}
	baselines := make(map[string]baseline)

	for _, inv := range invs {
		col := inv.DatasetName()
		if inv.Baseline {
			count, reason, ok := w.cacheCount(inv)
			baselines[col] = baseline{count: count, reason: reason, ok: ok}
			t.AddCol(col)
			continue
		}
		base, seen := baselines[col]
		if !seen {
			base = baseline{reason: ReasonMissing}
		}
		count, reason, ok := w.cacheCount(inv)
		switch {
		case !ok:
			w.missing(t, inv, inv.Label, col, reason)
		case !base.ok:
			w.missing(t, inv, inv.Label, col, "baseline "+base.reason)
		default:
			t.Set(inv.Label, col, count-base.count)
		}
	}

	const name = "cache_misses"
	if err := w.export(t, name, true); err != nil {
		return err
	}
	return w.barChart(t, name, "CPU L3 cache misses (count)", false)
}

// -----------------------------------------------------------------------------
// Speed-up
// -----------------------------------------------------------------------------

func (w *work) speedUp(invs []sweep.Invocation) error {
	for _, name := range sweep.Tables(invs) {
		times := w.timingTable(sweep.Filter(invs, name), threadsColumn).Transpose("Threads")
		if err := w.export(times, name, false); err != nil {
			return err
		}

		speedUps, err := chart.SpeedUps(times)
		if errors.Is(err, chart.ErrEmptyTable) {
			w.warn("Nothing to plot", "figure", name)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		p, err := chart.SpeedUpChart(speedUps, w.g.colors)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := w.save(p, name); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// GPU time
// -----------------------------------------------------------------------------

func (w *work) gpuTime(invs []sweep.Invocation) error {
	for _, name := range sweep.Tables(invs) {
		t := w.timingTable(sweep.Filter(invs, name), datasetColumn)
		if err := w.export(t, name, true); err != nil {
			return err
		}
		if err := w.barChart(t, name, "GPU time (seconds)", true); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Timing tables
// -----------------------------------------------------------------------------

func datasetColumn(inv sweep.Invocation) string { return inv.DatasetName() }
func threadsColumn(inv sweep.Invocation) string { return strconv.Itoa(inv.Threads) }

// timingTable reads YAML timing files into rows of algorithm labels. Rows
// follow the configured algorithm order whatever order the files list
// them in; labels an invocation should have produced but did not are NaN.
func (w *work) timingTable(invs []sweep.Invocation, column func(sweep.Invocation) string) *table.Table {
	t := table.New("Algorithm")
	for _, inv := range invs {
		for _, label := range expectedLabels(w.g.cfg, inv) {
			t.AddRow(label)
		}
	}
	for _, inv := range invs {
		col := column(inv)
		t.AddCol(col)
		expected := expectedLabels(w.g.cfg, inv)

		if w.failedRun(inv) {
			for _, label := range expected {
				w.missing(t, inv, label, col, ReasonFailed)
			}
			continue
		}
		report, err := results.ReadFile(inv.OutputPath, results.ParseTimings)
		if err != nil {
			w.warn("Timing unavailable", "output", inv.OutputPath, "error", err)
			for _, label := range expected {
				w.missing(t, inv, label, col, reasonFor(err))
			}
			continue
		}
		w.checkBlocks(inv, report.Blocks)

		found := make(map[string]bool, len(report.Experiments))
		for _, e := range report.Experiments {
			label := experimentLabel(w.g.cfg, e)
			if inv.Label != "" && label != inv.Label {
				continue
			}
			found[label] = true
			if e.Error != "" {
				w.warn("Experiment reported an error", "output", inv.OutputPath, "label", label, "error", e.Error)
				w.missing(t, inv, label, col, e.Error)
				continue
			}
			if e.Timing.Failed > 0 {
				w.warn("Some trials failed, averaging the rest", "output", inv.OutputPath, "label", label,
					"failed", e.Timing.Failed, "trials", e.Timing.Trials)
			}
			t.Set(label, col, e.Timing.Mean)
		}
		for _, label := range expected {
			if !found[label] {
				w.warn("Algorithm label not found in results", "output", inv.OutputPath, "label", label)
				w.missing(t, inv, label, col, ReasonNotInFile)
			}
		}
	}
	return t
}

// pairClassifiers moves the parallel classifier row directly below the
// sequential one so the baseline sits next to its parallel counterpart.
// Tables without both rows are left alone.
func pairClassifiers(cfg *config.FacebenchConfig, t *table.Table) {
	var sequential, parallel string
	for _, a := range cfg.VTKAlgorithms() {
		if a.FixedHash != "" {
			continue
		}
		switch {
		case a.Parallel && parallel == "":
			parallel = a.Label("")
		case !a.Parallel && sequential == "":
			sequential = a.Label("")
		}
	}
	i, ok := t.RowIndex(sequential)
	if !ok {
		return
	}
	j, ok := t.RowIndex(parallel)
	if !ok || j <= i+1 {
		return
	}
	t.SwapRows(i+1, j)
}

// expectedLabels lists the row labels a timing invocation should produce.
func expectedLabels(cfg *config.FacebenchConfig, inv sweep.Invocation) []string {
	if inv.Label != "" {
		return []string{inv.Label}
	}
	var labels []string
	for _, a := range inv.Algorithms {
		switch {
		case a.Backend != config.BackendVTKm:
			labels = append(labels, a.Label(""))
		case inv.HashID > 0:
			labels = append(labels, a.Label(cfg.HashName(inv.HashID)))
		default:
			for _, id := range cfg.HashIDs() {
				labels = append(labels, a.Label(cfg.HashName(id)))
			}
		}
	}
	return labels
}

// experimentLabel is the experiment's label with its algorithm name mapped
// to the configured display name.
func experimentLabel(cfg *config.FacebenchConfig, e results.Experiment) string {
	e.AlgorithmName = cfg.CanonicalName(e.AlgorithmName)
	return e.Label()
}

// -----------------------------------------------------------------------------
// Ratios
// -----------------------------------------------------------------------------

// printRatios prints every cell over its column minimum, then each row's
// range of ratios across columns.
func printRatios(p *ux.Printer, t *table.Table) {
	for _, r := range t.Ratios() {
		p.Info(fmt.Sprintf("Dataset: %s, Algorithm: %s, Value/Min Ratio: %s", r.Col, r.Row, formatRatio(r.Value)))
	}
	for _, r := range t.RatioRanges() {
		p.Info(fmt.Sprintf("Algorithm: %s, Min - Max Ratios: %sx - %sx", r.Row, formatRatio(r.Min), formatRatio(r.Max)))
	}
}

func formatRatio(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
