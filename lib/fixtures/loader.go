// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixtures

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/amm0nite/ammonite-mysql/lib/log"
	"github.com/amm0nite/ammonite-mysql/lib/query"
	"github.com/amm0nite/ammonite-mysql/lib/storage"
)

// Inserter adds a single row to a table. *storage.Store implements it.
type Inserter interface {
	Insert(ctx context.Context, table string, values query.Values) (storage.Row, error)
}

var _ Inserter = (*storage.Store)(nil)

// MatchFiles returns the sorted slash-separated paths, relative to dir, of
// the regular files under dir whose path ends with a match of one of
// patterns. A pattern matching nothing is an error, since it usually means a
// misspelled fixture.
func MatchFiles(dir string, patterns []string) ([]string, error) {
	dir = filepath.Clean(dir)
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture directory: %v", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("fixture directory %s is a file", dir)
	}

	var candidates []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		candidates = append(candidates, filepath.ToSlash(rel))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing fixtures in %s: %v", dir, err)
	}

	selected := map[string]bool{}
	var unused []string
	for _, pattern := range patterns {
		n := 0
		for _, c := range candidates {
			ok, err := doublestar.Match("**/"+pattern, c)
			if err != nil {
				return nil, fmt.Errorf("fixture pattern %q: %v", pattern, err)
			}
			if ok {
				selected[c] = true
				n++
			}
		}
		if n == 0 {
			unused = append(unused, pattern)
		}
	}
	if len(unused) > 0 {
		return nil, fmt.Errorf("no fixture files in %s match %s", dir, strings.Join(unused, ", "))
	}

	files := make([]string, 0, len(selected))
	for f := range selected {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// ReadRows parses a fixture file: a JSON array of row objects.
func ReadRows(path string) ([]query.Values, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading fixture %q: %v", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var objs []map[string]interface{}
	if err := dec.Decode(&objs); err != nil {
		return nil, fmt.Errorf("error parsing fixture %q: %v", path, err)
	}
	rows := make([]query.Values, 0, len(objs))
	for i, obj := range objs {
		if obj == nil {
			return nil, fmt.Errorf("error parsing fixture %q: row %d is not an object", path, i)
		}
		vs := make(query.Values, len(obj))
		for col, x := range obj {
			switch x.(type) {
			case map[string]interface{}, []interface{}:
				js, err := json.Marshal(x)
				if err != nil {
					return nil, fmt.Errorf("error encoding %s of row %d in %q: %v", col, i, path, err)
				}
				vs[col] = query.Text(string(js))
			default:
				vs[col] = query.FromInterface(x)
			}
		}
		rows = append(rows, vs)
	}
	return rows, nil
}

// Load inserts the rows of every fixture in cfg, in order, and returns the
// number of rows. With dryRun set, files are read and counted but nothing is
// inserted. Loading stops at the first error.
func Load(ctx context.Context, ins Inserter, cfg *Config, dryRun bool) (int, error) {
	total := 0
	for _, f := range cfg.Fixtures {
		if strings.TrimSpace(f.Table) == "" {
			return total, fmt.Errorf("fixture at %q has no table", f.Path)
		}
		files, err := MatchFiles(f.Path, f.Patterns)
		if err != nil {
			return total, err
		}
		for _, file := range files {
			rows, err := ReadRows(filepath.Join(f.Path, file))
			if err != nil {
				return total, err
			}
			if !dryRun {
				for i, vs := range rows {
					if _, err := ins.Insert(ctx, f.Table, vs); err != nil {
						return total, fmt.Errorf("error inserting row %d of %q into %s: %w", i, file, f.Table, err)
					}
					total++
				}
			} else {
				total += len(rows)
			}
			log.Debugf("Loaded %d rows from %s into %s.", len(rows), file, f.Table)
		}
	}
	return total, nil
}
