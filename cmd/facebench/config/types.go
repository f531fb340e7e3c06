// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the sweep space of the face-list evaluation and the
// path layout derived from it. Every other facebench package imports it; it
// imports nothing from facebench.
package config

import (
	"math/bits"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Backend identifies which library implements an algorithm.
type Backend string

const (
	// BackendVTK algorithms take no hash-function flag.
	BackendVTK Backend = "vtk"

	// BackendVTKm algorithms are swept over every concrete hash function.
	BackendVTKm Backend = "vtkm"
)

// ThreadPolicy selects how the maximum thread count is derived.
type ThreadPolicy string

const (
	// ThreadPolicyFixed caps threads at ThreadsConfig.Cap.
	ThreadPolicyFixed ThreadPolicy = "fixed"

	// ThreadPolicyDetected uses the host processor count.
	ThreadPolicyDetected ThreadPolicy = "detected"
)

// OutputMode selects how raw result files are opened by the run driver.
type OutputMode string

const (
	// OutputTruncate rewrites each result file once per run.
	OutputTruncate OutputMode = "truncate"

	// OutputAppend accumulates reruns in the same file.
	OutputAppend OutputMode = "append"
)

// FacebenchConfig is the single configuration object shared by the run and
// figure drivers.
type FacebenchConfig struct {
	// Configuration names the machine/toolchain combination, e.g.
	// "frontier_rocm6.2.4_tbb2022.0.0_kokkos4.5.00". Results are keyed by it.
	Configuration string `yaml:"configuration" validate:"required,excludes=/"`

	// ResultsDir is the root for data, figures, ledger and metrics.
	ResultsDir string `yaml:"results_dir" validate:"required"`

	// DataDir holds the input datasets. Supports "~".
	DataDir string `yaml:"data_dir" validate:"required"`

	// Executable is the benchmark binary.
	Executable string `yaml:"executable" validate:"required"`

	// Datasets are file names inside DataDir, smallest to largest.
	Datasets []string `yaml:"datasets" validate:"min=2,dive,required"`

	// Algorithms in canonical order: VTK algorithms first, then VTK-m.
	Algorithms []Algorithm `yaml:"algorithms" validate:"min=1,dive"`

	// HashFunctions is indexed by hash-function id. Id 0 means all hash
	// functions together and is never swept.
	HashFunctions []string `yaml:"hash_functions" validate:"min=2,dive,required"`

	Threads   ThreadsConfig   `yaml:"threads"`
	Devices   DevicesConfig   `yaml:"devices"`
	Tools     ToolsConfig     `yaml:"tools"`
	Output    OutputConfig    `yaml:"output"`
	Figures   FiguresConfig   `yaml:"figures"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// RandomSeed is passed with -r -s for randomized-order runs.
	RandomSeed uint64 `yaml:"random_seed"`
}

// Algorithm is one benchmarked face-list algorithm.
type Algorithm struct {
	Flag     string  `yaml:"flag" validate:"required,startswith=--"`
	Name     string  `yaml:"name" validate:"required"`
	Parallel bool    `yaml:"parallel"`
	Backend  Backend `yaml:"backend" validate:"required,oneof=vtk vtkm"`

	// FixedHash is the hash a VTK hash algorithm always uses.
	FixedHash string `yaml:"fixed_hash,omitempty"`

	// Aliases are other names the benchmark may print as algorithm-name.
	Aliases []string `yaml:"aliases,omitempty"`
}

type ThreadsConfig struct {
	Policy ThreadPolicy `yaml:"policy" validate:"required,oneof=fixed detected"`
	Cap    int          `yaml:"cap" validate:"min=1"`
}

type DevicesConfig struct {
	CPU string `yaml:"cpu" validate:"required"` // e.g. TBB
	GPU string `yaml:"gpu" validate:"required"` // e.g. KOKKOS
}

// ToolsConfig names the profiling wrappers. Bare names are resolved on PATH.
type ToolsConfig struct {
	Time     string   `yaml:"time" validate:"required"`
	TimeArgs []string `yaml:"time_args"`
	Perf     string   `yaml:"perf" validate:"required"`
	PerfArgs []string `yaml:"perf_args"`
}

type OutputConfig struct {
	Mode OutputMode `yaml:"mode" validate:"required,oneof=truncate append"`
}

type FiguresConfig struct {
	// Palette is a GIMP .gpl file. Empty or missing falls back to the
	// built-in ColorBrewer "Paired" palette.
	Palette string `yaml:"palette"`

	Width  float64 `yaml:"width" validate:"gt=0"`  // inches
	Height float64 `yaml:"height" validate:"gt=0"` // inches
	DPI    int     `yaml:"dpi" validate:"min=50"`
}

type TelemetryConfig struct {
	// TraceExporter is "none", "stdout" (trace.json) or "otlp".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint,omitempty"`

	// Metrics writes metrics.prom after each run.
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig returns the sweep used on Frontier.
func DefaultConfig() FacebenchConfig {
	dataDir := "~/Data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, "Data")
	}
	return FacebenchConfig{
		Configuration: "frontier_rocm6.2.4_tbb2022.0.0_kokkos4.5.00",
		ResultsDir:    "results",
		DataDir:       dataDir,
		Executable:    filepath.Join("build", "vtk-external-facelist-evaluation"),
		Datasets:      []string{"JSM.vtu", "F-15.vtu", "JSM-tet.vtu", "F-15-tet.vtu"},
		Algorithms: []Algorithm{
			{Flag: "--s-classifier", Name: "S-Classifier", Backend: BackendVTK},
			{Flag: "--s-hash", Name: "S-Hash", Backend: BackendVTK, FixedHash: "MinPointID"},
			{Flag: "--p-classifier", Name: "P-Classifier", Parallel: true, Backend: BackendVTK},
			{Flag: "--p-hash", Name: "P-Hash", Parallel: true, Backend: BackendVTK, FixedHash: "MinPointID"},
			{Flag: "--p-hash-sort", Name: "P-Hash-Sort", Parallel: true, Backend: BackendVTKm, Aliases: []string{"DP-Hash-Sort"}},
			{Flag: "--p-hash-fight", Name: "P-Hash-Fight", Parallel: true, Backend: BackendVTKm, Aliases: []string{"DP-Hash-Fight"}},
			{Flag: "--p-hash-count", Name: "P-Hash-Count", Parallel: true, Backend: BackendVTKm, Aliases: []string{"DP-Hash-Count"}},
		},
		HashFunctions: []string{"All", "FNV1A", "MinPointID"},
		Threads:       ThreadsConfig{Policy: ThreadPolicyFixed, Cap: 128},
		Devices:       DevicesConfig{CPU: "TBB", GPU: "KOKKOS"},
		Tools: ToolsConfig{
			Time:     "time",
			TimeArgs: []string{"-v"},
			Perf:     "perf",
			PerfArgs: []string{"stat", "-e", "cache-misses"},
		},
		Output:    OutputConfig{Mode: OutputTruncate},
		Figures:   FiguresConfig{Palette: "Paired_10.gpl", Width: 8, Height: 6.5, DPI: 300},
		Telemetry: TelemetryConfig{TraceExporter: "none", Metrics: true},
		// Fixed so randomized orderings are comparable across machines.
		RandomSeed: 2639962142,
	}
}

// -----------------------------------------------------------------------------
// Algorithms
// -----------------------------------------------------------------------------

// Label is the display name used for file names, table rows and colors.
//
// Classifiers are labelled by name. VTK hash algorithms append their fixed
// hash; VTK-m algorithms append the hash function they ran with.
func (a Algorithm) Label(hash string) string {
	switch {
	case a.Backend == BackendVTKm:
		return a.Name + "-" + hash
	case a.FixedHash != "":
		return a.Name + "-" + a.FixedHash
	default:
		return a.Name
	}
}

// CanonicalName maps a name printed by the benchmark to the configured
// algorithm name. Unknown names are returned unchanged.
func (c *FacebenchConfig) CanonicalName(name string) string {
	for _, a := range c.Algorithms {
		if a.Name == name || slices.Contains(a.Aliases, name) {
			return a.Name
		}
	}
	return name
}

// VTKAlgorithms returns the VTK-backed algorithms in canonical order.
func (c *FacebenchConfig) VTKAlgorithms() []Algorithm {
	return c.filterAlgorithms(func(a Algorithm) bool { return a.Backend == BackendVTK })
}

// VTKmAlgorithms returns the VTK-m-backed algorithms in canonical order.
func (c *FacebenchConfig) VTKmAlgorithms() []Algorithm {
	return c.filterAlgorithms(func(a Algorithm) bool { return a.Backend == BackendVTKm })
}

// ParallelAlgorithms returns the algorithms that honor -t.
func (c *FacebenchConfig) ParallelAlgorithms() []Algorithm {
	return c.filterAlgorithms(func(a Algorithm) bool { return a.Parallel })
}

func (c *FacebenchConfig) filterAlgorithms(keep func(Algorithm) bool) []Algorithm {
	var out []Algorithm
	for _, a := range c.Algorithms {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// HashIDs returns the concrete hash-function ids swept for VTK-m
// algorithms: every id except 0.
func (c *FacebenchConfig) HashIDs() []int {
	ids := make([]int, 0, len(c.HashFunctions))
	for id := 1; id < len(c.HashFunctions); id++ {
		ids = append(ids, id)
	}
	return ids
}

// HashName returns the name for a hash-function id, or "" if out of range.
func (c *FacebenchConfig) HashName(id int) string {
	if id < 0 || id >= len(c.HashFunctions) {
		return ""
	}
	return c.HashFunctions[id]
}

// Labels returns every algorithm label in canonical order: VTK algorithms
// first, then each VTK-m algorithm once per hash id.
func (c *FacebenchConfig) Labels() []string {
	var labels []string
	for _, a := range c.VTKAlgorithms() {
		labels = append(labels, a.Label(""))
	}
	for _, a := range c.VTKmAlgorithms() {
		for _, id := range c.HashIDs() {
			labels = append(labels, a.Label(c.HashName(id)))
		}
	}
	return labels
}

// -----------------------------------------------------------------------------
// Threads
// -----------------------------------------------------------------------------

// MaxThreadsPower returns floor(log2(limit)) where limit comes from the
// thread policy.
func (c *FacebenchConfig) MaxThreadsPower() int {
	limit := c.Threads.Cap
	if c.Threads.Policy == ThreadPolicyDetected {
		limit = runtime.NumCPU()
	}
	if limit < 1 {
		limit = 1
	}
	return bits.Len(uint(limit)) - 1
}

// MaxThreads is the largest power of two allowed by the thread policy.
func (c *FacebenchConfig) MaxThreads() int {
	return 1 << c.MaxThreadsPower()
}

// ThreadCounts returns 1, 2, 4, ... MaxThreads.
func (c *FacebenchConfig) ThreadCounts() []int {
	counts := make([]int, 0, c.MaxThreadsPower()+1)
	for p := 0; p <= c.MaxThreadsPower(); p++ {
		counts = append(counts, 1<<p)
	}
	return counts
}

// -----------------------------------------------------------------------------
// Datasets and paths
// -----------------------------------------------------------------------------

// DatasetPath joins a dataset file name with the data directory.
func (c *FacebenchConfig) DatasetPath(dataset string) string {
	return filepath.Join(expandPath(c.DataDir), dataset)
}

// DatasetPaths returns every dataset path, smallest to largest.
func (c *FacebenchConfig) DatasetPaths() []string {
	paths := make([]string, len(c.Datasets))
	for i, ds := range c.Datasets {
		paths[i] = c.DatasetPath(ds)
	}
	return paths
}

// LargestDatasets returns the paths of the last two datasets.
func (c *FacebenchConfig) LargestDatasets() []string {
	paths := c.DatasetPaths()
	if len(paths) <= 2 {
		return paths
	}
	return paths[len(paths)-2:]
}

// DatasetName strips a dataset path to its display name: "~/Data/JSM.vtu"
// becomes "JSM".
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Root is results/<configuration>.
func (c *FacebenchConfig) Root() string {
	return filepath.Join(c.ResultsDir, c.Configuration)
}

// DataPath is the raw-result directory for one method, e.g. "cpu_time".
func (c *FacebenchConfig) DataPath(method string) string {
	return filepath.Join(c.Root(), "data", method)
}

// FiguresPath is the CSV/PNG directory for one method.
func (c *FacebenchConfig) FiguresPath(method string) string {
	return filepath.Join(c.Root(), "figures", method)
}

// LedgerPath is the run ledger's database directory.
func (c *FacebenchConfig) LedgerPath() string {
	return filepath.Join(c.Root(), "ledger")
}

// MetricsPath is the Prometheus text file written after each run.
func (c *FacebenchConfig) MetricsPath() string {
	return filepath.Join(c.Root(), "metrics.prom")
}

// FiguresMetricsPath is the Prometheus text file written after figure
// generation. It sits next to MetricsPath so one textfile collector picks
// up both.
func (c *FacebenchConfig) FiguresMetricsPath() string {
	return filepath.Join(c.Root(), "figures.prom")
}

// TracePath is where the stdout trace exporter writes spans.
func (c *FacebenchConfig) TracePath() string {
	return filepath.Join(c.Root(), "trace.json")
}

// expandPath expands a leading "~" to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
