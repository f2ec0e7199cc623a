// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads crucible-trace configuration from YAML files with
// environment variable overrides.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// CRUCIBLE_* environment variables. Loading never partially applies: a
// malformed file or a config that fails validation returns an error and
// no Config.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level crucible-trace configuration.
//
// Thread Safety: safe to read concurrently; not safe to modify after
// creation.
type Config struct {
	// Storage contains chain store settings.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains structured logging settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Extraction contains LLM output extraction settings.
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
}

// StorageConfig contains chain store settings.
type StorageConfig struct {
	// Dir is the BadgerDB directory. Required unless InMemory is set.
	Dir string `json:"dir" yaml:"dir" validate:"required_unless=InMemory true"`

	// InMemory disables disk persistence. Intended for tests.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// SearchWorkers bounds the fan-out of Search. Must be positive.
	SearchWorkers int `json:"search_workers" yaml:"search_workers" validate:"gt=0"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when non-empty.
	Dir string `json:"dir" yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `json:"json" yaml:"json"`
}

// ExtractionConfig contains LLM output extraction settings.
type ExtractionConfig struct {
	// Tag is the element name wrapping reasoning traces in LLM output.
	Tag string `json:"tag" yaml:"tag" validate:"required,alphanumunicode|containsany=_-"`
}

// Default returns the built-in configuration: on-disk store under
// ~/.crucible/chains, info-level text logging, the standard trace tag.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Dir:           "~/.crucible/chains",
			SyncWrites:    true,
			SearchWorkers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Extraction: ExtractionConfig{
			Tag: "reasoning_trace",
		},
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. An empty path skips the file and loads defaults
// plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints on an assembled Config.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from CRUCIBLE_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("CRUCIBLE_STORAGE_DIR"); ok {
		cfg.Storage.Dir = v
	}
	if v, ok := os.LookupEnv("CRUCIBLE_STORAGE_IN_MEMORY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.InMemory = b
		}
	}
	if v, ok := os.LookupEnv("CRUCIBLE_STORAGE_SEARCH_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.SearchWorkers = n
		}
	}
	if v, ok := os.LookupEnv("CRUCIBLE_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("CRUCIBLE_LOG_DIR"); ok {
		cfg.Logging.Dir = v
	}
	if v, ok := os.LookupEnv("CRUCIBLE_EXTRACTION_TAG"); ok {
		cfg.Extraction.Tag = v
	}
}
