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
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	datasetMemoryPattern = regexp.MustCompile(`dataset-memory-used:\s*(\d+)`)
	maxRSSPattern        = regexp.MustCompile(`Maximum resident set size \(kbytes\):\s*(\d+)`)
	cacheMissesPattern   = regexp.MustCompile(`([\d,]+)\s+cache-misses`)
)

// kibPerGiB converts KiB (what both markers report) to GiB.
const kibPerGiB = 1024 * 1024

// MemoryFootprint is the content of a "time -v" wrapped benchmark log.
type MemoryFootprint struct {
	DatasetKiB int64 // printed by the benchmark after loading the dataset
	MaxRSSKiB  int64 // printed by time -v
	Blocks     int
}

// AlgorithmGB is the memory the algorithm used on top of the dataset.
func (m MemoryFootprint) AlgorithmGB() float64 {
	return float64(m.MaxRSSKiB-m.DatasetKiB) / kibPerGiB
}

// ParseMemoryFootprint extracts both memory markers. When either is missing
// it returns ErrMarkerNotFound; the caller reports the cell as 0.
func ParseMemoryFootprint(r io.Reader) (MemoryFootprint, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return MemoryFootprint{}, fmt.Errorf("read memory log: %w", err)
	}

	datasetMatches := datasetMemoryPattern.FindAllSubmatch(content, -1)
	rssMatches := maxRSSPattern.FindAllSubmatch(content, -1)
	if len(datasetMatches) == 0 || len(rssMatches) == 0 {
		return MemoryFootprint{}, fmt.Errorf("%w: dataset-memory-used=%d, max-rss=%d",
			ErrMarkerNotFound, len(datasetMatches), len(rssMatches))
	}

	datasetKiB, err := strconv.ParseInt(string(datasetMatches[0][1]), 10, 64)
	if err != nil {
		return MemoryFootprint{}, fmt.Errorf("parse dataset-memory-used: %w", err)
	}
	rssKiB, err := strconv.ParseInt(string(rssMatches[0][1]), 10, 64)
	if err != nil {
		return MemoryFootprint{}, fmt.Errorf("parse max resident set size: %w", err)
	}

	return MemoryFootprint{
		DatasetKiB: datasetKiB,
		MaxRSSKiB:  rssKiB,
		Blocks:     max(len(datasetMatches), len(rssMatches)),
	}, nil
}

// CacheMisses is the content of a "perf stat -e cache-misses" wrapped log.
type CacheMisses struct {
	Count  int64
	Blocks int
}

// ParseCacheMisses extracts the cache-miss counter, thousands separators
// removed. A missing counter returns ErrMarkerNotFound.
func ParseCacheMisses(r io.Reader) (CacheMisses, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return CacheMisses{}, fmt.Errorf("read perf log: %w", err)
	}

	matches := cacheMissesPattern.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return CacheMisses{}, fmt.Errorf("%w: cache-misses", ErrMarkerNotFound)
	}

	digits := strings.ReplaceAll(string(matches[0][1]), ",", "")
	count, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return CacheMisses{}, fmt.Errorf("parse cache-misses %q: %w", matches[0][1], err)
	}
	return CacheMisses{Count: count, Blocks: len(matches)}, nil
}
