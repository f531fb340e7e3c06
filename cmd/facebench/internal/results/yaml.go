// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package results

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Header is the per-run metadata the benchmark prints before experiments.
type Header struct {
	VTKVersion          string `yaml:"vtk-version"`
	VTKmVersion         string `yaml:"vtkm-version"`
	Hostname            string `yaml:"hostname"`
	Date                string `yaml:"date"`
	Device              string `yaml:"device"`
	NumThreads          int    `yaml:"num-threads"`
	InputFile           string `yaml:"input-file"`
	TopologyConnections string `yaml:"topology-connections"`
	RandomizeSeed       uint64 `yaml:"randomize-seed"`
	NumInputPoints      int64  `yaml:"num-input-points"`
	NumInputCells       int64  `yaml:"num-input-cells"`
	DatasetMemoryUsed   int64  `yaml:"dataset-memory-used"`
}

type block struct {
	Header      `yaml:",inline"`
	Experiments yaml.Node `yaml:"experiments"`
}

type rawTrial struct {
	Index        int     `yaml:"trial-index"`
	SecondsTotal float64 `yaml:"seconds-total"`
	Error        string  `yaml:"error"`
}

type rawExperiment struct {
	AlgorithmName string     `yaml:"algorithm-name"`
	HashName      string     `yaml:"hash-name"`
	FullName      string     `yaml:"full-name"`
	FirstRunTime  float64    `yaml:"first-run-time"`
	Error         string     `yaml:"error"`
	Trials        []rawTrial `yaml:"trials"`
}

// Timing summarizes an experiment's successful trials. Trials that
// reported an error are counted in Failed and left out of Mean and StdDev.
type Timing struct {
	Mean   float64 // 0 when there are no trials
	StdDev float64 // 0 with fewer than two trials
	Trials int
	Failed int
}

// Experiment is one algorithm run inside a timing file.
type Experiment struct {
	AlgorithmName string
	HashName      string
	FirstRunTime  float64
	Error         string
	Timing        Timing
}

// Label is "<algorithm-name>-<hash-name>", or the algorithm name alone for
// hash-less algorithms ("None").
func (e Experiment) Label() string {
	if e.HashName == "None" || e.HashName == "" {
		return e.AlgorithmName
	}
	return e.AlgorithmName + "-" + e.HashName
}

// TimingReport is the first result block of a timing file.
type TimingReport struct {
	Header      Header
	Experiments []Experiment
	Blocks      int
}

// Lookup returns the experiment with the given label.
func (r TimingReport) Lookup(label string) (Experiment, bool) {
	for _, e := range r.Experiments {
		if e.Label() == label {
			return e, true
		}
	}
	return Experiment{}, false
}

// Bin is one point of a hash distribution: Count hashes received
// FacesPerHash faces.
type Bin struct {
	FacesPerHash int
	Count        int
}

// HashDistribution maps a hash-function name to its bins, sorted by
// FacesPerHash.
type HashDistribution struct {
	Header Header
	ByHash map[string][]Bin
	Blocks int
}

// decodeBlocks reads every YAML document and returns the top-level list
// items across all of them. Reruns appended to the same file show up as
// extra items.
func decodeBlocks(r io.Reader) ([]yaml.Node, error) {
	dec := yaml.NewDecoder(r)
	var items []yaml.Node
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: top level is not a list", ErrNoData)
		}
		for _, item := range root.Content {
			items = append(items, *item)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty result list", ErrNoData)
	}
	return items, nil
}

func decodeFirstBlock(r io.Reader) (block, int, error) {
	items, err := decodeBlocks(r)
	if err != nil {
		return block{}, 0, err
	}
	var b block
	if err := items[0].Decode(&b); err != nil {
		return block{}, 0, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if b.Experiments.Kind == 0 {
		return block{}, 0, fmt.Errorf("%w: no experiments", ErrNoData)
	}
	return b, len(items), nil
}

// ParseTimings reads a timing file. Malformed YAML, an empty list or a
// missing experiments key return ErrNoData.
func ParseTimings(r io.Reader) (TimingReport, error) {
	b, blocks, err := decodeFirstBlock(r)
	if err != nil {
		return TimingReport{}, err
	}

	var raw []rawExperiment
	switch b.Experiments.Kind {
	case yaml.SequenceNode:
		if err := b.Experiments.Decode(&raw); err != nil {
			return TimingReport{}, fmt.Errorf("%w: %v", ErrNoData, err)
		}
	case yaml.ScalarNode:
		// "experiments:" with nothing under it.
	default:
		return TimingReport{}, fmt.Errorf("%w: experiments is not a list", ErrNoData)
	}

	report := TimingReport{Header: b.Header, Blocks: blocks}
	for _, e := range raw {
		timing, trialErr := summarize(e.Trials)
		exp := Experiment{
			AlgorithmName: e.AlgorithmName,
			HashName:      e.HashName,
			FirstRunTime:  e.FirstRunTime,
			Error:         e.Error,
			Timing:        timing,
		}
		// Every trial failed: there is no time to report.
		if exp.Error == "" && timing.Failed > 0 && timing.Trials == 0 {
			exp.Error = trialErr
		}
		report.Experiments = append(report.Experiments, exp)
	}
	return report, nil
}

// summarize averages the trials without an error. It also returns the
// first trial error seen.
func summarize(trials []rawTrial) (Timing, string) {
	var (
		seconds  []float64
		timing   Timing
		firstErr string
	)
	for _, t := range trials {
		if t.Error != "" {
			timing.Failed++
			if firstErr == "" {
				firstErr = t.Error
			}
			continue
		}
		seconds = append(seconds, t.SecondsTotal)
	}
	timing.Trials = len(seconds)
	if len(seconds) == 0 {
		return timing, firstErr
	}
	timing.Mean, timing.StdDev = stat.MeanStdDev(seconds, nil)
	if len(seconds) < 2 {
		timing.StdDev = 0
	}
	return timing, firstErr
}

// ParseHashDistribution reads a --hash-distribution file.
func ParseHashDistribution(r io.Reader) (HashDistribution, error) {
	b, blocks, err := decodeFirstBlock(r)
	if err != nil {
		return HashDistribution{}, err
	}

	var experiments struct {
		Distribution map[string]map[int]int `yaml:"face-hash-distribution"`
	}
	if err := b.Experiments.Decode(&experiments); err != nil {
		return HashDistribution{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if len(experiments.Distribution) == 0 {
		return HashDistribution{}, fmt.Errorf("%w: no face-hash-distribution", ErrNoData)
	}

	dist := HashDistribution{Header: b.Header, ByHash: make(map[string][]Bin), Blocks: blocks}
	for hash, counts := range experiments.Distribution {
		bins := make([]Bin, 0, len(counts))
		for faces, count := range counts {
			bins = append(bins, Bin{FacesPerHash: faces, Count: count})
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i].FacesPerHash < bins[j].FacesPerHash })
		dist.ByHash[hash] = bins
	}
	return dist, nil
}
