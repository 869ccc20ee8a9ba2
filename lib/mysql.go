// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Functions for opening and configuring a MySQL connection pool.

package lib

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/amm0nite/ammonite-mysql/lib/config"
)

// NewDBConn opens a connection pool to the database described by cfg, bounds
// it to cfg.MaxConns() connections and checks connectivity with a ping.
func NewDBConn(cfg *config.Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return openDBConn(cfg.DSN(), cfg.Addr(), cfg.MaxConns())
}

func openDBConn(dsn, addr string, maxConns int) (_ *sql.DB, rerr error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening database connection at %s: %v", addr, err)
	}
	// Try to close the pool on error.
	defer func() {
		if rerr != nil {
			rerr = MergeErrors(rerr, db.Close(), "; ")
		}
	}()

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed connecting to database at %s: %v", addr, err)
	}
	return db, nil
}
