// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Database connection handling shared by all commands. A connection is opened
// either from a dbutil sqlconf file, which supports TLS, or from a plain JSON
// configuration file.

package main

import (
	"database/sql"
	"fmt"

	"v.io/x/lib/cmdline"
	"v.io/x/lib/dbutil"

	"github.com/amm0nite/ammonite-mysql/lib"
	"github.com/amm0nite/ammonite-mysql/lib/config"
	"github.com/amm0nite/ammonite-mysql/lib/event"
	"github.com/amm0nite/ammonite-mysql/lib/log"
	"github.com/amm0nite/ammonite-mysql/lib/storage"
)

// openDB opens and pings a connection pool as selected by the global flags.
func openDB(env *cmdline.Env) (*sql.DB, error) {
	switch {
	case *flagSQLConf != "":
		// Parse SQL configuration file and set up TLS.
		db, err := dbutil.NewSqlDBConnFromFile(*flagSQLConf, "READ-COMMITTED")
		if err != nil {
			return nil, fmt.Errorf("Error opening database connection: %v", err)
		}
		if err := db.Ping(); err != nil {
			return nil, lib.MergeErrors(fmt.Errorf("Error connecting to database: %v", err), db.Close(), "\n")
		}
		return db, nil
	case *flagConfig != "":
		cfg, err := config.ParseFromFile(*flagConfig)
		if err != nil {
			return nil, fmt.Errorf("Error parsing configuration: %v", err)
		}
		return lib.NewDBConn(cfg)
	}
	return nil, env.UsageErrorf("database configuration (-config or -sqlconf) must be provided")
}

// Command to be wrapped with runWithDBConn().
type DBCommand func(db *sql.DB, env *cmdline.Env, args []string) error

// runWithDBConn is a wrapper method that handles opening and closing the
// database connection.
func runWithDBConn(fx DBCommand) cmdline.RunnerFunc {
	return func(env *cmdline.Env, args []string) (rerr error) {
		log.SetVerbose(*flagVerbose)
		db, err := openDB(env)
		if err != nil {
			return err
		}
		// Best effort close.
		defer func() {
			if cerr := db.Close(); cerr != nil {
				rerr = lib.MergeErrors(rerr, fmt.Errorf("Failed closing database connection: %v", cerr), "\n")
			}
		}()
		return fx(db, env, args)
	}
}

// Command to be wrapped with runWithStore().
type StoreCommand func(s *storage.Store, env *cmdline.Env, args []string) error

// runWithStore is a wrapper method that attaches a storage.Store to a freshly
// opened connection and closes it when the command is done.
func runWithStore(fx StoreCommand) cmdline.RunnerFunc {
	return runWithDBConn(func(db *sql.DB, env *cmdline.Env, args []string) error {
		var opts []storage.Option
		if *flagQueryLog {
			opts = append(opts, storage.WithQueryLog(event.NewJsonSink(env.Stderr, false)))
		}
		s := storage.New(opts...)
		// The pool is closed by runWithDBConn, not by the Store.
		if err := s.Attach(db); err != nil {
			return err
		}
		return fx(s, env, args)
	})
}
