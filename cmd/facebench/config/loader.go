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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when --config is not given.
const DefaultPath = "facebench.yaml"

var (
	// ErrToolNotFound is returned when a profiling tool is not on PATH.
	ErrToolNotFound = errors.New("profiling tool not found")

	// ErrConfigExists is returned by WriteDefault when the file exists.
	ErrConfigExists = errors.New("config file already exists")
)

// configValidate is the validator for FacebenchConfig. Struct-level rules
// cover constraints between fields that tags cannot express.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterStructValidation(validateSweep, FacebenchConfig{})
}

// validateSweep checks that labels are unique and that every fixed hash
// names a known hash function.
func validateSweep(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(FacebenchConfig)

	seen := make(map[string]bool)
	for _, label := range cfg.Labels() {
		if seen[label] {
			sl.ReportError(cfg.Algorithms, "Algorithms", "algorithms", "uniquelabel", label)
			return
		}
		seen[label] = true
	}
	for _, a := range cfg.Algorithms {
		if a.FixedHash != "" && !slices.Contains(cfg.HashFunctions, a.FixedHash) {
			sl.ReportError(a.FixedHash, "FixedHash", "fixed_hash", "knownhash", a.FixedHash)
		}
	}
	if cfg.Telemetry.TraceExporter == "otlp" && cfg.Telemetry.OTLPEndpoint == "" {
		sl.ReportError(cfg.Telemetry.OTLPEndpoint, "OTLPEndpoint", "otlp_endpoint", "required_with_otlp", "")
	}
}

// Load reads and validates the config at path.
//
// A missing file is not an error: the defaults are returned and found is
// false, so callers can tell the user to run "facebench config init".
// Fields absent from the file keep their default values.
func Load(path string) (cfg FacebenchConfig, found bool, err error) {
	cfg = DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, true, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, true, nil
}

// Validate runs tag and struct-level validation.
func Validate(cfg FacebenchConfig) error {
	return configValidate.Struct(cfg)
}

// WriteDefault writes DefaultConfig to path, creating parent directories.
// It refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	return createDefault(path)
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory: %w", err)
		}
	}
	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal renders a config as YAML, the format "config show" prints.
func Marshal(cfg FacebenchConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the config: %w", err)
	}
	return data, nil
}

// ResolveTool finds a profiling tool on PATH. Paths containing a separator
// are checked as-is.
func ResolveTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, name, err)
	}
	return path, nil
}
