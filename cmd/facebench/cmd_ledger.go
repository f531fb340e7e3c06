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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/internal/ledger"
	"github.com/AleutianAI/facebench/pkg/ux"
)

func runLedger(cmd *cobra.Command, args []string) error {
	printer := ux.NewPrinter(cmd.OutOrStdout())

	led, found, err := openLedgerReadOnly()
	if err != nil {
		return err
	}
	if !found {
		printer.Info("No runs recorded yet for " + cfg.Configuration)
		return nil
	}
	defer led.Close()

	var keep func(ledger.Record) bool
	if failedOnly {
		keep = ledger.Failed
	}
	records, err := led.List(keep)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		if failedOnly {
			printer.Success("No failed invocations")
		} else {
			printer.Info("Ledger is empty")
		}
		return nil
	}

	rows := make([][]string, len(records))
	failed := 0
	for i, rec := range records {
		if rec.Status == ledger.StatusFailed {
			failed++
		}
		rows[i] = []string{
			string(rec.Status),
			strconv.Itoa(rec.ExitCode),
			strconv.Itoa(rec.Attempts),
			rec.Duration.Round(time.Millisecond).String(),
			rec.Start.Local().Format(time.DateTime),
			relToRoot(rec.OutputPath),
			rec.Error,
		}
	}
	printer.Title(fmt.Sprintf("%d invocations, %d failed (%s)", len(records), failed, cfg.Configuration))
	printer.Table([]string{"Status", "Exit", "Attempts", "Duration", "Started", "Output", "Error"}, rows)
	return nil
}
