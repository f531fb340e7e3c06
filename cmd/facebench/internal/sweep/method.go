// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import (
	"errors"
	"fmt"
)

// Method selects one family of measurements. MethodAll runs every family.
type Method int

const (
	MethodAll Method = iota
	MethodMemoryFootprint
	MethodCPUTime
	MethodHashPerformance
	MethodSpeedUp
	MethodGPUTime
)

// ErrUnknownMethod is returned for method numbers outside 0..5.
var ErrUnknownMethod = errors.New("unknown method")

var methodDirs = map[Method]string{
	MethodMemoryFootprint: "memory_footprint",
	MethodCPUTime:         "cpu_time",
	MethodHashPerformance: "hash_performance",
	MethodSpeedUp:         "speed_up",
	MethodGPUTime:         "gpu_time",
}

// ParseMethod validates a --method value.
func ParseMethod(n int) (Method, error) {
	m := Method(n)
	if m == MethodAll {
		return m, nil
	}
	if _, ok := methodDirs[m]; !ok {
		return 0, fmt.Errorf("%w: %d (want 0-5)", ErrUnknownMethod, n)
	}
	return m, nil
}

// Dir is the data/figure subdirectory name, e.g. "cpu_time".
func (m Method) Dir() string {
	return methodDirs[m]
}

func (m Method) String() string {
	if m == MethodAll {
		return "all"
	}
	if d, ok := methodDirs[m]; ok {
		return d
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Expand returns the concrete methods a selection stands for, in run order.
func (m Method) Expand() []Method {
	if m != MethodAll {
		return []Method{m}
	}
	return []Method{MethodMemoryFootprint, MethodCPUTime, MethodHashPerformance, MethodSpeedUp, MethodGPUTime}
}
