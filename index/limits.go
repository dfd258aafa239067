// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// WriterLimits controls when Writer.Add decides a file is not text and
// should be skipped rather than indexed. The original indexer hardcoded
// these as package constants; promoting them to a struct lets a config file
// or a CLI flag override them per run.
type WriterLimits struct {
	MaxFileLen      int64   `toml:"max_file_len"`
	MaxLineLen      int     `toml:"max_line_len"`
	MaxTrigrams     int     `toml:"max_trigrams"`
	MaxInvalidUTF8  float64 `toml:"max_invalid_utf8_ratio"`
}

// DefaultWriterLimits returns the limits the indexer uses when no config
// file is given.
func DefaultWriterLimits() WriterLimits {
	return WriterLimits{
		MaxFileLen:     1 << 30,
		MaxLineLen:     2000,
		MaxTrigrams:    30000,
		MaxInvalidUTF8: 0.10,
	}
}

// LoadWriterLimits reads a WriterLimits from a TOML file, starting from
// DefaultWriterLimits so that a config file only needs to mention the
// fields it overrides.
func LoadWriterLimits(path string) (WriterLimits, error) {
	limits := DefaultWriterLimits()
	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("parsing %s: %w", path, err)
	}
	return limits, nil
}
