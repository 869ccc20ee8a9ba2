// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Fixture commands load rows from JSON files into tables. Glob patterns in the
// fixtures configuration file select the files for each table.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"v.io/x/lib/cmdline"

	"github.com/amm0nite/ammonite-mysql/lib/fixtures"
	"github.com/amm0nite/ammonite-mysql/lib/storage"
)

var cmdFixtures = &cmdline.Command{
	Name:  "fixtures",
	Short: "Fixture management",
	Long: `
Commands for loading rows from fixture files into the database.
`,
	Children: []*cmdline.Command{cmdFixturesLoad},
}

var cmdFixturesLoad = &cmdline.Command{
	Runner: runWithStore(runFixturesLoad),
	Name:   "load",
	Short:  "Load fixtures from config file into database",
	Long: `
Inserts the rows of every fixture file selected by the fixtures config file
into its table, in config order. Rows are inserted like the insert command
does, so createdAt and uid columns are filled in when missing. Loading stops at
the first failing row; rows inserted before it are kept.
`,
}

var (
	flagFixturesCfgFile string
	flagFixturesDir     string
)

func init() {
	cmdFixturesLoad.Flags.StringVar(&flagFixturesCfgFile, "fixtureconf", "fixtures/config.json", "Path to fixtures config file. "+fixtures.ConfigFileDescription)
	cmdFixturesLoad.Flags.StringVar(&flagFixturesDir, "fixturedir", "", "Path relative to which paths in the fixtures config file are interpreted. If empty, defaults to the config file directory.")
}

func runFixturesLoad(s *storage.Store, env *cmdline.Env, args []string) error {
	cfgFile := os.ExpandEnv(flagFixturesCfgFile)
	fixturesDir := os.ExpandEnv(flagFixturesDir)
	// If fixturesDir is empty, interpret paths relative to the config file directory.
	if fixturesDir == "" {
		fixturesDir = filepath.Dir(cfgFile)
	}
	cfg, err := fixtures.ParseConfigFromFile(cfgFile, fixturesDir)
	if err != nil {
		return err
	}
	if logVerbose() {
		for _, f := range cfg.Fixtures {
			fmt.Fprintf(env.Stdout, "Fixture: %s (%q)\n", f.Table, f.Path)
		}
	}

	n, err := fixtures.Load(context.Background(), s, cfg, *flagDryRun)
	if err != nil {
		return fmt.Errorf("Loading fixtures FAILED (inserted %d rows): %v", n, err)
	}
	if *flagDryRun {
		fmt.Fprintf(env.Stdout, "Run without dry run to load %d rows into database\n", n)
	} else {
		color.New(color.FgGreen).Fprintf(env.Stdout, "Successfully loaded %d rows into database\n", n)
	}
	return nil
}
