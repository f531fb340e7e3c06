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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/ledger"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/runner"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/telemetry"
	"github.com/AleutianAI/facebench/pkg/logging"
)

var (
	// cfg is the effective configuration, loaded before every command.
	cfg      config.FacebenchConfig
	cfgFound bool

	logger = logging.Default()

	// processManager runs the benchmark. Replaced in tests.
	processManager runner.ProcessManager = &runner.DefaultProcessManager{}
)

// setup creates the logger and loads the configuration.
func setup(cmd *cobra.Command) error {
	level, ok := logging.ParseLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown --log-level %q (want debug, info, warn or error)", logLevel)
	}
	logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "facebench",
		JSON:    jsonLogs,
	})

	// "config init" must work without (or with a broken) config file.
	if cmd == configInitCmd {
		return nil
	}

	var err error
	cfg, cfgFound, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfgFound {
		logger.Debug("No config file, using defaults", "path", configPath)
	}
	return nil
}

// teardown records how the command ended and closes the log file.
func teardown(cmdErr error) {
	if cmdErr != nil {
		logger.Debug("Command finished", "error", cmdErr)
	} else {
		logger.Debug("Command finished")
	}
	if err := logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "closing log file:", err)
	}
}

// traceConfig merges the telemetry section of the config with the OTEL_*
// environment. A config value other than "none" wins.
func traceConfig() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Configuration = cfg.Configuration
	tc.TracePath = cfg.TracePath()
	if e := cfg.Telemetry.TraceExporter; e != "" && e != "none" {
		tc.TraceExporter = e
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	return tc
}

// openLedger opens the run ledger for writing.
func openLedger() (*ledger.Ledger, error) {
	lc := ledger.DefaultConfig(cfg.LedgerPath())
	lc.Logger = logger.Slog()
	return ledger.Open(lc)
}

// openLedgerReadOnly opens the ledger for lookups. found is false when no
// run has been recorded yet.
func openLedgerReadOnly() (l *ledger.Ledger, found bool, err error) {
	lc := ledger.ReadOnlyConfig(cfg.LedgerPath())
	lc.Logger = logger.Slog()
	l, err = ledger.Open(lc)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// relToRoot shortens paths under results/<configuration> for display.
func relToRoot(path string) string {
	rel, err := filepath.Rel(cfg.Root(), path)
	if err != nil {
		return path
	}
	return rel
}
