// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package publish pushes the figure tables of a configuration to InfluxDB
// so results from several machines can be compared on one dashboard.
//
// Every non-NaN cell of every CSV under figures/<method>/ becomes one point
// in the "facebench" measurement, timestamped with the CSV's modification
// time.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/sweep"
	"github.com/AleutianAI/facebench/cmd/facebench/internal/table"
)

// Measurement is the InfluxDB measurement every point is written to.
const Measurement = "facebench"

// ErrNothingToPublish is returned when no figure table exists yet.
var ErrNothingToPublish = errors.New("no figure tables to publish")

// PointWriter is the part of api.WriteAPIBlocking the publisher needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Summary counts what Publish wrote.
type Summary struct {
	Tables  int
	Points  int
	Skipped int // NaN cells
}

// Publisher converts figure tables into points.
type Publisher struct {
	cfg    *config.FacebenchConfig
	writer PointWriter
	logger *slog.Logger
}

// New creates a Publisher. A nil logger discards log output.
func New(cfg *config.FacebenchConfig, writer PointWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{cfg: cfg, writer: writer, logger: logger}
}

// Publish writes the tables of the selected method(s), one WritePoint call
// per table.
func (p *Publisher) Publish(ctx context.Context, method sweep.Method) (Summary, error) {
	var sum Summary
	for _, m := range method.Expand() {
		paths, err := filepath.Glob(filepath.Join(p.cfg.FiguresPath(m.Dir()), "*.csv"))
		if err != nil {
			return sum, fmt.Errorf("list %s tables: %w", m, err)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			points, skipped, err := p.tablePoints(m, path)
			if err != nil {
				return sum, err
			}
			sum.Tables++
			sum.Skipped += skipped
			if len(points) == 0 {
				p.logger.Warn("Table has no values", "table", path)
				continue
			}
			if err := p.writer.WritePoint(ctx, points...); err != nil {
				return sum, fmt.Errorf("write %s: %w", path, err)
			}
			sum.Points += len(points)
			p.logger.Info("Published table", "table", path, "points", len(points))
		}
	}
	if sum.Tables == 0 {
		return sum, ErrNothingToPublish
	}
	return sum, nil
}

// tablePoints reads one CSV and returns its points and NaN cell count.
func (p *Publisher) tablePoints(m sweep.Method, path string) ([]*write.Point, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	points, skipped := Points(p.cfg.Configuration, m, name, t, info.ModTime())
	return points, skipped, nil
}

// Points converts a table to points. Tables indexed by "Threads" carry
// algorithms in their columns; all others carry datasets.
func Points(configuration string, m sweep.Method, tableName string, t *table.Table, ts time.Time) ([]*write.Point, int) {
	rowTag, colTag := "algorithm", "dataset"
	if t.Index == "Threads" {
		rowTag, colTag = "threads", "algorithm"
	}

	var points []*write.Point
	skipped := 0
	for _, row := range t.Rows() {
		for _, col := range t.Cols() {
			v, _ := t.Get(row, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				skipped++
				continue
			}
			points = append(points, influxdb2.NewPoint(
				Measurement,
				map[string]string{
					"configuration": configuration,
					"method":        m.String(),
					"table":         tableName,
					rowTag:          row,
					colTag:          col,
				},
				map[string]interface{}{"value": v},
				ts,
			))
		}
	}
	return points, skipped
}
