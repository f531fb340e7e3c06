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
	"path"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/facebench/cmd/facebench/gcs"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/publish"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/pkg/ux"
	"github.com/AleutianAI/facebench/pkg/validation"
)

// archiveSkip lists result subdirectories archive never uploads. The ledger
// is a live database tied to this machine.
var archiveSkip = map[string]bool{"ledger": true}

func runPublish(cmd *cobra.Command, args []string) error {
	method, err := sweep.ParseMethod(methodFlag)
	if err != nil {
		return err
	}
	token := os.Getenv("INFLUXDB_TOKEN")
	if token == "" {
		return errors.New("INFLUXDB_TOKEN is not set")
	}
	if influxOrg == "" {
		return errors.New("--org (or INFLUXDB_ORG) is required")
	}
	ctx := cmd.Context()
	printer := ux.NewPrinter(cmd.OutOrStdout())

	client := influxdb2.NewClient(influxURL, token)
	defer client.Close()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("InfluxDB at %s is not reachable: %w", influxURL, err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		msg := string(health.Status)
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("InfluxDB at %s is not healthy: %s", influxURL, msg)
	}

	pub := publish.New(&cfg, client.WriteAPIBlocking(influxOrg, influxBucket), logger.Slog())
	sum, err := pub.Publish(ctx, method)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Published %d points from %d tables to %s (bucket %s), %d empty cells skipped",
		sum.Points, sum.Tables, influxURL, influxBucket, sum.Skipped))
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	if gcsCredentials == "" {
		return errors.New("--credentials (or GOOGLE_APPLICATION_CREDENTIALS) is required")
	}
	if err := validation.ValidateBucketName(gcsBucket); err != nil {
		return fmt.Errorf("invalid --bucket: %w", err)
	}
	if err := validation.ValidateObjectPrefix(gcsPrefix); err != nil {
		return fmt.Errorf("invalid --prefix: %w", err)
	}
	root := cfg.Root()
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("nothing to archive: %w", err)
	}
	ctx := cmd.Context()
	printer := ux.NewPrinter(cmd.OutOrStdout())

	client, err := gcs.NewClient(ctx, gcpProject, gcsBucket, gcsCredentials)
	if err != nil {
		return err
	}
	defer client.Close()

	prefix := path.Join(gcsPrefix, cfg.Configuration)
	names, err := client.UploadDir(ctx, root, prefix, func(rel string) bool { return archiveSkip[rel] })
	if err != nil {
		return fmt.Errorf("archive %s: %w", root, err)
	}
	logger.Info("Archived results", "files", len(names), "destination", client.URL(prefix))
	printer.Success(fmt.Sprintf("Archived %d files to %s", len(names), client.URL(prefix)))
	return nil
}
