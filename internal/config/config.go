// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the optional TOML configuration file cindex reads
// with -config, layering writer limit overrides and walk/watch options on
// top of package-level defaults.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/csearch-go/csearch/index"
)

// Config is the root of a cindex configuration file.
type Config struct {
	Limits  index.WriterLimits `toml:"limits"`
	Exclude []string           `toml:"exclude"`  // doublestar glob patterns
	Watch   WatchConfig        `toml:"watch"`
}

// WatchConfig controls -watch incremental reindexing.
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMS int  `toml:"debounce_ms"`
}

// Default returns the configuration cindex uses when -config is not given.
func Default() Config {
	return Config{
		Limits: index.DefaultWriterLimits(),
		Watch:  WatchConfig{DebounceMS: 500},
	}
}

// Load reads and parses a TOML configuration file, starting from Default
// so the file only needs to mention the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
