// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/figures"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/palette"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
	"github.com/AleutianAI/facebench/pkg/ux"
)

func runFigures(cmd *cobra.Command, args []string) error {
	method, err := sweep.ParseMethod(methodFlag)
	if err != nil {
		return err
	}
	printer := ux.NewPrinter(cmd.OutOrStdout())

	colors, err := figures.LoadColors(&cfg, logger.Slog())
	if err != nil {
		return err
	}

	render := func(ctx context.Context) error {
		return renderFigures(ctx, method, colors, printer)
	}
	if err := render(cmd.Context()); err != nil {
		return err
	}
	if !watchFlag {
		return nil
	}

	var dirs []string
	for _, m := range method.Expand() {
		dirs = append(dirs, cfg.DataPath(m.Dir()))
	}
	printer.Info("Watching for new results, press Ctrl-C to stop")
	return figures.Watch(cmd.Context(), dirs, figures.DefaultDebounce, logger.Slog(), render)
}

// renderFigures runs one figure generation pass. The ledger is reopened
// each pass so a sweep running alongside --watch is seen as it progresses.
func renderFigures(ctx context.Context, method sweep.Method, colors palette.Colors, printer *ux.Printer) error {
	deps := figures.Deps{Logger: logger.Slog(), Printer: printer}

	led, found, err := openLedgerReadOnly()
	switch {
	case err != nil:
		// Most likely held by a running sweep; failures then show as missing.
		logger.Warn("Ledger unavailable, failed runs will not be marked", "error", err)
	case !found:
		logger.Info("No ledger yet, failed runs will not be marked", "path", cfg.LedgerPath())
	default:
		defer led.Close()
		deps.Records = led
	}

	var prom *telemetry.PrometheusRecorder
	if cfg.Telemetry.Metrics {
		prom = telemetry.NewPrometheusRecorder()
		deps.Metrics = prom
	}

	report, err := figures.New(&cfg, colors, deps).Generate(ctx, method)
	if prom != nil {
		if werr := prom.WriteTextfile(cfg.FiguresMetricsPath()); werr != nil {
			logger.Warn("Writing metrics failed", "path", cfg.FiguresMetricsPath(), "error", werr)
		}
	}
	if err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("%d tables, %d figures, %d empty cells, %d ambiguous files",
		len(report.CSVs), len(report.Figures), report.Missing, len(report.Ambiguous)))
	return nil
}
