// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"", LevelInfo},
		{"garbage", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestNew_StderrOnly(t *testing.T) {
	logger, err := New(Config{Level: LevelDebug})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NoError(t, logger.Close(), "Close on stderr-only logger must be a no-op")
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   LevelInfo,
		LogDir:  filepath.Join(dir, "nested", "logs"),
		Service: "trace-store",
		Quiet:   true,
	})
	require.NoError(t, err)

	logger.Info("chain saved", "chain_id", "c1")
	require.NoError(t, logger.Close())
	assert.NoError(t, logger.Close(), "double Close must be safe")

	name := "trace-store_" + time.Now().UTC().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, "nested", "logs", name))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "file sink must be JSON")
	assert.Equal(t, "chain saved", entry["msg"])
	assert.Equal(t, "c1", entry["chain_id"])
	assert.Equal(t, "trace-store", entry["service"])
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter",
		Quiet:   true,
	})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	name := "filter_" + time.Now().UTC().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nobody hears this")
	assert.NoError(t, logger.Close())
}
