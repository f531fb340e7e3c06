// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "conf", "facebench.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg FacebenchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.RandomSeed != 2639962142 {
		t.Errorf("RandomSeed = %d, want 2639962142", cfg.RandomSeed)
	}
	if len(cfg.Algorithms) != 7 {
		t.Errorf("len(Algorithms) = %d, want 7", len(cfg.Algorithms))
	}
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "facebench.yaml")
	if err := os.WriteFile(configPath, []byte("configuration: mine\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteDefault(configPath, false)
	if !errors.Is(err, ErrConfigExists) {
		t.Fatalf("WriteDefault() error = %v, want ErrConfigExists", err)
	}

	if err := WriteDefault(configPath, true); err != nil {
		t.Fatalf("WriteDefault(force) error = %v", err)
	}
	cfg, found, err := Load(configPath)
	if err != nil || !found {
		t.Fatalf("Load() = found %v, err %v", found, err)
	}
	if cfg.Configuration != DefaultConfig().Configuration {
		t.Errorf("Configuration = %q after forced overwrite", cfg.Configuration)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, found, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Threads.Cap != 128 {
		t.Errorf("Threads.Cap = %d, want 128", cfg.Threads.Cap)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "facebench.yaml")
	content := "configuration: laptop\nthreads:\n  policy: fixed\n  cap: 12\noutput:\n  mode: append\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, found, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Error("found = false")
	}
	if cfg.Configuration != "laptop" {
		t.Errorf("Configuration = %q", cfg.Configuration)
	}
	if cfg.MaxThreads() != 8 {
		t.Errorf("MaxThreads() = %d, want 8", cfg.MaxThreads())
	}
	if cfg.Output.Mode != OutputAppend {
		t.Errorf("Output.Mode = %q", cfg.Output.Mode)
	}
	if len(cfg.Datasets) != 4 {
		t.Errorf("datasets should keep their defaults, got %v", cfg.Datasets)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "configuration: [unterminated\n"},
		{"bad policy", "threads:\n  policy: guess\n  cap: 4\n"},
		{"bad output mode", "output:\n  mode: overwrite\n"},
		{"one dataset", "datasets: [JSM.vtu]\n"},
		{"slash in configuration", "configuration: a/b\n"},
		{"unknown fixed hash", "algorithms:\n  - {flag: --s-hash, name: S-Hash, backend: vtk, fixed_hash: CRC}\n"},
		{"duplicate labels", "algorithms:\n  - {flag: --a, name: A, backend: vtk}\n  - {flag: --b, name: A, backend: vtk}\n"},
		{"flag without dashes", "algorithms:\n  - {flag: s-hash, name: S-Hash, backend: vtk}\n"},
		{"otlp without endpoint", "telemetry:\n  trace_exporter: otlp\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "facebench.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := Load(configPath); err == nil {
				t.Errorf("Load() accepted %q", tt.content)
			}
		})
	}
}

func TestValidate_Default(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestResolveTool(t *testing.T) {
	if _, err := ResolveTool("facebench-no-such-tool-xyz"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("ResolveTool() error = %v, want ErrToolNotFound", err)
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-perf")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveTool(tool)
	if err != nil {
		t.Fatalf("ResolveTool(%s) error = %v", tool, err)
	}
	if got != tool {
		t.Errorf("ResolveTool() = %q, want %q", got, tool)
	}
}
