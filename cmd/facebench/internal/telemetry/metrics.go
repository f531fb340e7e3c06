// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric Inventory:
//
//	facebench_run_invocations_total{method, status}
//	facebench_run_invocation_duration_seconds{method}
//	facebench_figures_ambiguous_files_total{method}
//	facebench_figures_missing_cells_total{method}
//	facebench_figures_written_total{method}
const (
	metricsNamespace       = "facebench"
	metricsSubsystemRun    = "run"
	metricsSubsystemFigure = "figures"
)

// Recorder records harness metrics.
type Recorder interface {
	// RecordInvocation records one benchmark invocation.
	RecordInvocation(method, status string, d time.Duration)

	// RecordAmbiguousFile records a result file holding more than one run.
	RecordAmbiguousFile(method string)

	// RecordMissingCell records a table cell left empty.
	RecordMissingCell(method string)

	// RecordFigure records a written figure.
	RecordFigure(method string)
}

// -----------------------------------------------------------------------------
// NoOpRecorder
// -----------------------------------------------------------------------------

// NoOpRecorder counts in memory and exports nothing. Used when metrics are
// disabled and in tests.
type NoOpRecorder struct {
	invocations atomic.Int64
	failures    atomic.Int64
	ambiguous   atomic.Int64
	missing     atomic.Int64
	figures     atomic.Int64
}

// NewNoOpRecorder creates an in-memory recorder.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (m *NoOpRecorder) RecordInvocation(_, status string, _ time.Duration) {
	m.invocations.Add(1)
	if status != "ok" {
		m.failures.Add(1)
	}
}

func (m *NoOpRecorder) RecordAmbiguousFile(string) { m.ambiguous.Add(1) }
func (m *NoOpRecorder) RecordMissingCell(string)   { m.missing.Add(1) }
func (m *NoOpRecorder) RecordFigure(string)        { m.figures.Add(1) }

// Invocations returns the number of recorded invocations.
func (m *NoOpRecorder) Invocations() int64 { return m.invocations.Load() }

// Failures returns the number of invocations with a status other than ok.
func (m *NoOpRecorder) Failures() int64 { return m.failures.Load() }

// AmbiguousFiles returns the number of ambiguous files seen.
func (m *NoOpRecorder) AmbiguousFiles() int64 { return m.ambiguous.Load() }

// MissingCells returns the number of empty cells.
func (m *NoOpRecorder) MissingCells() int64 { return m.missing.Load() }

// Figures returns the number of figures written.
func (m *NoOpRecorder) Figures() int64 { return m.figures.Load() }

// -----------------------------------------------------------------------------
// PrometheusRecorder
// -----------------------------------------------------------------------------

// PrometheusRecorder records into a private registry that can be dumped as
// a textfile for node_exporter's textfile collector.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	ambiguousTotal     *prometheus.CounterVec
	missingTotal       *prometheus.CounterVec
	figuresTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder creates and registers the harness metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	m := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystemRun,
				Name:      "invocations_total",
				Help:      "Benchmark invocations by method and status",
			},
			[]string{"method", "status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystemRun,
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of benchmark invocations",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
			},
			[]string{"method"},
		),
		ambiguousTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystemFigure,
				Name:      "ambiguous_files_total",
				Help:      "Result files holding more than one appended run",
			},
			[]string{"method"},
		),
		missingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystemFigure,
				Name:      "missing_cells_total",
				Help:      "Table cells left empty for lack of data",
			},
			[]string{"method"},
		),
		figuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystemFigure,
				Name:      "written_total",
				Help:      "Figures written",
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(
		m.invocationsTotal,
		m.invocationDuration,
		m.ambiguousTotal,
		m.missingTotal,
		m.figuresTotal,
	)
	return m
}

func (m *PrometheusRecorder) RecordInvocation(method, status string, d time.Duration) {
	m.invocationsTotal.WithLabelValues(method, status).Inc()
	m.invocationDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *PrometheusRecorder) RecordAmbiguousFile(method string) {
	m.ambiguousTotal.WithLabelValues(method).Inc()
}

func (m *PrometheusRecorder) RecordMissingCell(method string) {
	m.missingTotal.WithLabelValues(method).Inc()
}

func (m *PrometheusRecorder) RecordFigure(method string) {
	m.figuresTotal.WithLabelValues(method).Inc()
}

// Registry exposes the private registry.
func (m *PrometheusRecorder) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
