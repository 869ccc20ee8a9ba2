// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Representation of the fixtures configuration file, parsed from JSON.
// The configuration file maps tables to directories of JSON files holding the
// rows to insert into them.

package fixtures

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
)

// Description of the fixtures configuration file format.
const ConfigFileDescription = `File must contain a JSON object of the following form:
   {
    "fixtures": [ <Fixture> ... ] (array of Fixture descriptors, loaded in order)
   }
Fixture descriptors have the form:
   {
   	"table": "<table>", (table to insert the rows into)
   	"path": "<path/to/fixture/dir>", (path to directory containing fixture files)
   	"patterns": [ "<pattern>" ... ] (list of glob patterns, with syntax as accepted by github.com/bmatcuk/doublestar;
   		files from the fixture directory with path suffix matching at least one pattern are loaded in path order;
   		each pattern must match at least one file for loading to succeed)
   }
Each fixture file must contain a JSON array of objects, one per row, mapping column names to values.
Nested objects and arrays are stored as JSON text.
Non-absolute paths are interpreted relative to a configurable directory, usually the configuration file directory.`

// Parsed fixtures configuration. See ConfigFileDescription for details.
type Config struct {
	Fixtures []*Fixture `json:"fixtures"`
}

// Represents a directory of row files for a single table.
type Fixture struct {
	Table string `json:"table"`
	// Path to fixture directory.
	Path string `json:"path"`
	// Glob patterns selecting files in the directory.
	Patterns []string `json:"patterns"`
}

// Parses configuration from file and normalizes non-absolute paths relative to
// baseDir. Doesn't do consistency verification.
func ParseConfigFromFile(configPath, baseDir string) (*Config, error) {
	cfgJson, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed reading fixtures config from %q: %v", configPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(cfgJson, &cfg); err != nil {
		return nil, fmt.Errorf("failed parsing fixtures config: %v", err)
	}
	cfg.NormalizePaths(baseDir)
	return &cfg, nil
}

// Canonicalizes fixture paths and resolves them relative to baseDir.
func (c *Config) NormalizePaths(baseDir string) {
	for _, f := range c.Fixtures {
		f.Path = normalizePath(f.Path, baseDir)
	}
}

// If path is not absolute, resolves path relative to baseDir. Otherwise,
// canonicalizes path.
func normalizePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
