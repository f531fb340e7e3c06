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
Package sweep enumerates the benchmark invocations of each measurement method.

The run driver executes the invocations Plan returns and the figure driver
reads the files those same invocations name. Both stages call Plan with the
same configuration, so the file a run writes is always the file a figure
reads.

# Output file names

	memory_footprint:  <ds>_<Name>.txt, <ds>_<Name>-<Hash>.txt
	cpu_time:          <ds>_1_threads_normal.yaml, <ds>_<max>_threads_normal.yaml,
	                   <ds>_<max>_threads_random_<seed>.yaml
	hash_performance:  <ds>_hash_distribution.yaml, <ds>_cache_misses.txt,
	                   <ds>_<Name>-<Hash>_cache_misses.txt
	speed_up:          <ds>_<t>_threads.yaml
	gpu_time:          <ds>_<Name>-<Hash>_normal.yaml, <ds>_<Name>-<Hash>_random_<seed>.yaml
*/
package sweep

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/facebench/cmd/facebench/config"
)

// Kind is the format of a raw result file.
type Kind string

const (
	KindText Kind = "text"
	KindYAML Kind = "yaml"
)

// Wrapper is the profiling tool an invocation runs under.
type Wrapper string

const (
	WrapperNone Wrapper = ""
	WrapperTime Wrapper = "time"
	WrapperPerf Wrapper = "perf"
)

// Argv is the wrapper's unresolved command prefix, e.g. ["time", "-v"].
// WrapperNone and unknown wrappers return nil.
func (w Wrapper) Argv(tools config.ToolsConfig) []string {
	switch w {
	case WrapperTime:
		return append([]string{tools.Time}, tools.TimeArgs...)
	case WrapperPerf:
		return append([]string{tools.Perf}, tools.PerfArgs...)
	}
	return nil
}

// Ordering is the cell ordering passed to the benchmark.
type Ordering string

const (
	OrderingNormal Ordering = "normal"
	OrderingRandom Ordering = "random"
)

// Point is one coordinate of the sweep space.
type Point struct {
	Dataset    string // full path
	Algorithms []config.Algorithm
	HashID     int // 0 omits -f, which makes the benchmark run all hash functions
	Threads    int // 0 omits -t
	Ordering   Ordering
	Seed       uint64
	Device     string
}

// Invocation is a sweep point bound to a method, an argv and an output file.
type Invocation struct {
	Method Method
	Point

	// Table is the figure table this file feeds, e.g. "cpu_time_1_threads_normal".
	Table string

	// Label is the row label for files holding a single algorithm.
	Label string

	// Baseline marks the dataset-loading cache-miss measurement.
	Baseline bool

	// HashDistribution runs --hash-distribution instead of algorithms.
	HashDistribution bool

	Iterations int
	Wrapper    Wrapper
	Kind       Kind
	OutputPath string
}

// DatasetName is the dataset's display name, e.g. "JSM".
func (inv Invocation) DatasetName() string {
	return config.DatasetName(inv.Dataset)
}

// Args returns the benchmark arguments, without the executable.
func (inv Invocation) Args() []string {
	args := []string{"-i", inv.Dataset, "-d", inv.Device}
	if inv.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(inv.Threads))
	}
	if inv.HashDistribution {
		return append(args, "--hash-distribution")
	}
	for _, a := range inv.Algorithms {
		args = append(args, a.Flag)
	}
	if inv.HashID > 0 {
		args = append(args, "-f", strconv.Itoa(inv.HashID))
	}
	args = append(args, "-n", strconv.Itoa(inv.Iterations))
	if inv.Ordering == OrderingRandom {
		args = append(args, "-r", "-s", strconv.FormatUint(inv.Seed, 10))
	}
	return args
}

// CommandLine renders the full command for logs and dry runs.
func (inv Invocation) CommandLine(wrapper []string, executable string) string {
	parts := append(append([]string{}, wrapper...), executable)
	return strings.Join(append(parts, inv.Args()...), " ")
}

// -----------------------------------------------------------------------------
// Enumeration
// -----------------------------------------------------------------------------

// Plan returns every invocation of the selected method(s) in execution
// order. iterations is the -n value for timing methods; memory and cache
// measurements always use -n 0.
func Plan(cfg *config.FacebenchConfig, method Method, iterations int) []Invocation {
	p := planner{cfg: cfg, iterations: iterations}
	var out []Invocation
	for _, m := range method.Expand() {
		switch m {
		case MethodMemoryFootprint:
			out = append(out, p.memoryFootprint()...)
		case MethodCPUTime:
			out = append(out, p.cpuTime()...)
		case MethodHashPerformance:
			out = append(out, p.hashPerformance()...)
		case MethodSpeedUp:
			out = append(out, p.speedUp()...)
		case MethodGPUTime:
			out = append(out, p.gpuTime()...)
		}
	}
	return out
}

// Filter returns the invocations feeding one table, in plan order.
func Filter(invs []Invocation, table string) []Invocation {
	var out []Invocation
	for _, inv := range invs {
		if inv.Table == table {
			out = append(out, inv)
		}
	}
	return out
}

// Tables returns the distinct table names in first-appearance order.
func Tables(invs []Invocation) []string {
	var tables []string
	seen := make(map[string]bool)
	for _, inv := range invs {
		if !seen[inv.Table] {
			seen[inv.Table] = true
			tables = append(tables, inv.Table)
		}
	}
	return tables
}

type planner struct {
	cfg        *config.FacebenchConfig
	iterations int
}

func (p planner) path(m Method, name string) string {
	return filepath.Join(p.cfg.DataPath(m.Dir()), name)
}

func (p planner) memoryFootprint() []Invocation {
	const m = MethodMemoryFootprint
	var out []Invocation
	for _, ds := range p.cfg.DatasetPaths() {
		name := config.DatasetName(ds)
		for _, a := range p.cfg.VTKAlgorithms() {
			out = append(out, Invocation{
				Method:     m,
				Point:      Point{Dataset: ds, Algorithms: []config.Algorithm{a}, Threads: 1, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
				Table:      "memory_footprint",
				Label:      a.Label(""),
				Wrapper:    WrapperTime,
				Kind:       KindText,
				OutputPath: p.path(m, fmt.Sprintf("%s_%s.txt", name, a.Name)),
			})
		}
		for _, a := range p.cfg.VTKmAlgorithms() {
			for _, id := range p.cfg.HashIDs() {
				label := a.Label(p.cfg.HashName(id))
				out = append(out, Invocation{
					Method:     m,
					Point:      Point{Dataset: ds, Algorithms: []config.Algorithm{a}, HashID: id, Threads: 1, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
					Table:      "memory_footprint",
					Label:      label,
					Wrapper:    WrapperTime,
					Kind:       KindText,
					OutputPath: p.path(m, fmt.Sprintf("%s_%s.txt", name, label)),
				})
			}
		}
	}
	return out
}

func (p planner) cpuTime() []Invocation {
	const m = MethodCPUTime
	maxThreads := p.cfg.MaxThreads()
	seed := p.cfg.RandomSeed
	oneNormal := "1_threads_normal"
	maxNormal := fmt.Sprintf("%d_threads_normal", maxThreads)
	maxRandom := fmt.Sprintf("%d_threads_random_%d", maxThreads, seed)

	var out []Invocation
	for _, ds := range p.cfg.DatasetPaths() {
		name := config.DatasetName(ds)
		out = append(out,
			Invocation{
				Method:     m,
				Point:      Point{Dataset: ds, Algorithms: p.cfg.Algorithms, Threads: 1, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
				Table:      "cpu_time_" + oneNormal,
				Iterations: p.iterations,
				Kind:       KindYAML,
				OutputPath: p.path(m, fmt.Sprintf("%s_%s.yaml", name, oneNormal)),
			},
			Invocation{
				Method:     m,
				Point:      Point{Dataset: ds, Algorithms: p.cfg.ParallelAlgorithms(), Threads: maxThreads, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
				Table:      "cpu_time_" + maxNormal,
				Iterations: p.iterations,
				Kind:       KindYAML,
				OutputPath: p.path(m, fmt.Sprintf("%s_%s.yaml", name, maxNormal)),
			},
			Invocation{
				Method:     m,
				Point:      Point{Dataset: ds, Algorithms: p.cfg.ParallelAlgorithms(), Threads: maxThreads, Ordering: OrderingRandom, Seed: seed, Device: p.cfg.Devices.CPU},
				Table:      "cpu_time_" + maxRandom,
				Iterations: p.iterations,
				Kind:       KindYAML,
				OutputPath: p.path(m, fmt.Sprintf("%s_%s.yaml", name, maxRandom)),
			},
		)
	}
	return out
}

func (p planner) hashPerformance() []Invocation {
	const m = MethodHashPerformance
	var out []Invocation
	for _, ds := range p.cfg.DatasetPaths() {
		out = append(out, Invocation{
			Method:           m,
			Point:            Point{Dataset: ds, Threads: 1, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
			Table:            "hash_distributions",
			HashDistribution: true,
			Kind:             KindYAML,
			OutputPath:       p.path(m, config.DatasetName(ds)+"_hash_distribution.yaml"),
		})
	}
	for _, ds := range p.cfg.DatasetPaths() {
		name := config.DatasetName(ds)
		out = append(out, Invocation{
			Method:     m,
			Point:      Point{Dataset: ds, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
			Table:      "cache_misses",
			Baseline:   true,
			Wrapper:    WrapperPerf,
			Kind:       KindText,
			OutputPath: p.path(m, name+"_cache_misses.txt"),
		})
		for _, a := range p.cfg.VTKmAlgorithms() {
			for _, id := range p.cfg.HashIDs() {
				label := a.Label(p.cfg.HashName(id))
				out = append(out, Invocation{
					Method:     m,
					Point:      Point{Dataset: ds, Algorithms: []config.Algorithm{a}, HashID: id, Threads: 1, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
					Table:      "cache_misses",
					Label:      label,
					Wrapper:    WrapperPerf,
					Kind:       KindText,
					OutputPath: p.path(m, fmt.Sprintf("%s_%s_cache_misses.txt", name, label)),
				})
			}
		}
	}
	return out
}

func (p planner) speedUp() []Invocation {
	const m = MethodSpeedUp
	var out []Invocation
	for _, ds := range p.cfg.LargestDatasets() {
		name := config.DatasetName(ds)
		for _, t := range p.cfg.ThreadCounts() {
			out = append(out, Invocation{
				Method:     m,
				Point:      Point{Dataset: ds, Algorithms: p.cfg.ParallelAlgorithms(), Threads: t, Ordering: OrderingNormal, Device: p.cfg.Devices.CPU},
				Table:      name + "_speed_up",
				Iterations: p.iterations,
				Kind:       KindYAML,
				OutputPath: p.path(m, fmt.Sprintf("%s_%d_threads.yaml", name, t)),
			})
		}
	}
	return out
}

func (p planner) gpuTime() []Invocation {
	const m = MethodGPUTime
	seed := p.cfg.RandomSeed
	randomSuffix := fmt.Sprintf("random_%d", seed)

	var out []Invocation
	for _, ds := range p.cfg.DatasetPaths() {
		name := config.DatasetName(ds)
		for _, a := range p.cfg.VTKmAlgorithms() {
			for _, id := range p.cfg.HashIDs() {
				label := a.Label(p.cfg.HashName(id))
				point := Point{
					Dataset:    ds,
					Algorithms: []config.Algorithm{a},
					HashID:     id,
					Threads:    p.cfg.MaxThreads(),
					Ordering:   OrderingNormal,
					Device:     p.cfg.Devices.GPU,
				}
				out = append(out, Invocation{
					Method:     m,
					Point:      point,
					Table:      "gpu_time_normal",
					Label:      label,
					Iterations: p.iterations,
					Kind:       KindYAML,
					OutputPath: p.path(m, fmt.Sprintf("%s_%s_normal.yaml", name, label)),
				})

				point.Ordering = OrderingRandom
				point.Seed = seed
				out = append(out, Invocation{
					Method:     m,
					Point:      point,
					Table:      "gpu_time_" + randomSuffix,
					Label:      label,
					Iterations: p.iterations,
					Kind:       KindYAML,
					OutputPath: p.path(m, fmt.Sprintf("%s_%s_%s.yaml", name, label, randomSuffix)),
				})
			}
		}
	}
	return out
}
