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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	logLevel         string
	logDir           string
	jsonLogs         bool
	personalityLevel string

	methodFlag     int
	iterationsFlag int
	failFast       bool
	timeoutFlag    time.Duration
	appendOutput   bool
	watchFlag      bool
	failedOnly     bool
	forceInit      bool

	influxURL    string
	influxOrg    string
	influxBucket string

	gcpProject     string
	gcsBucket      string
	gcsCredentials string
	gcsPrefix      string

	rootCmd = &cobra.Command{
		Use:   "facebench",
		Short: "Run and plot the external face-list evaluation benchmarks",
		Long: `facebench drives vtk-external-facelist-evaluation through its
measurement sweeps (memory footprint, CPU time, hash performance,
parallel speed-up and GPU time) and turns the raw results into CSV
tables and PNG figures under results/<configuration>/.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			return setup(cmd)
		},
	}

	// --- Sweeps ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark sweep of a method (0 runs all)",
		Args:  cobra.NoArgs,
		RunE:  runSweep, // Defined in cmd_run.go
	}
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the invocations a run would execute without running them",
		Args:  cobra.NoArgs,
		RunE:  runPlan, // Defined in cmd_run.go
	}

	// --- Figures ---
	figuresCmd = &cobra.Command{
		Use:   "figures",
		Short: "Generate CSV tables and figures from the raw results",
		Args:  cobra.NoArgs,
		RunE:  runFigures, // Defined in cmd_figures.go
	}

	// --- Ledger ---
	ledgerCmd = &cobra.Command{
		Use:   "ledger",
		Short: "List recorded benchmark invocations and their outcome",
		Args:  cobra.NoArgs,
		RunE:  runLedger, // Defined in cmd_ledger.go
	}

	// --- Sharing ---
	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Write the figure tables to InfluxDB (token from INFLUXDB_TOKEN)",
		Args:  cobra.NoArgs,
		RunE:  runPublish, // Defined in cmd_share.go
	}
	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Upload results/<configuration> to a Google Cloud Storage bucket",
		Args:  cobra.NoArgs,
		RunE:  runArchive, // Defined in cmd_share.go
	}

	// --- Configuration ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the facebench configuration file",
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit, // Defined in cmd_config.go
	}
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow, // Defined in cmd_config.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write JSON logs to this directory")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log to stderr as JSON")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&methodFlag, "method", 0, "Method: 0 all, 1 memory, 2 CPU time, 3 hash performance, 4 speed-up, 5 GPU time")
	runCmd.Flags().IntVar(&iterationsFlag, "iterations", 10, "Timed iterations per benchmark (-n)")
	runCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed benchmark")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Per-invocation time limit, e.g. 30m (0 for none)")
	runCmd.Flags().BoolVar(&appendOutput, "append", false, "Append to existing result files instead of truncating them")

	rootCmd.AddCommand(planCmd)
	planCmd.Flags().IntVar(&methodFlag, "method", 0, "Method: 0 all, 1 memory, 2 CPU time, 3 hash performance, 4 speed-up, 5 GPU time")
	planCmd.Flags().IntVar(&iterationsFlag, "iterations", 10, "Timed iterations per benchmark (-n)")

	rootCmd.AddCommand(figuresCmd)
	figuresCmd.Flags().IntVar(&methodFlag, "method", 0, "Method: 0 all, 1 memory, 2 CPU time, 3 hash performance, 4 speed-up, 5 GPU time")
	figuresCmd.Flags().BoolVar(&watchFlag, "watch", false, "Regenerate whenever result files change")

	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().BoolVar(&failedOnly, "failed", false, "Only list failed invocations")

	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().IntVar(&methodFlag, "method", 0, "Method whose tables to publish (0 for all)")
	publishCmd.Flags().StringVar(&influxURL, "influx-url", envOr("INFLUXDB_URL", "http://localhost:8086"), "InfluxDB URL")
	publishCmd.Flags().StringVar(&influxOrg, "org", envOr("INFLUXDB_ORG", ""), "InfluxDB organization")
	publishCmd.Flags().StringVar(&influxBucket, "bucket", envOr("INFLUXDB_BUCKET", "facebench"), "InfluxDB bucket")

	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVar(&gcpProject, "project", "", "Google Cloud project id")
	archiveCmd.Flags().StringVar(&gcsBucket, "bucket", "", "Destination bucket")
	archiveCmd.Flags().StringVar(&gcsCredentials, "credentials", envOr("GOOGLE_APPLICATION_CREDENTIALS", ""), "Service account key file")
	archiveCmd.Flags().StringVar(&gcsPrefix, "prefix", "facebench", "Object name prefix")
	_ = archiveCmd.MarkFlagRequired("bucket")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
