// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amm0nite/ammonite-mysql/lib"
	"github.com/amm0nite/ammonite-mysql/lib/config"
	"github.com/amm0nite/ammonite-mysql/lib/event"
	"github.com/amm0nite/ammonite-mysql/lib/log"
	"github.com/amm0nite/ammonite-mysql/lib/schema"
)

// Store owns one connection pool and the schema cache for the tables reached
// through it. The zero value is not usable; create Stores with New or Open.
// A Store is safe for concurrent use.
type Store struct {
	sink   event.Sink
	now    func() time.Time
	newUID func() string

	mu     sync.RWMutex
	db     *tracedDB
	schema *schema.Cache
}

type Option func(*Store)

// WithQueryLog records an event for every statement sent to the database.
func WithQueryLog(sink event.Sink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithClock replaces the source of createdAt and updatedAt values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithUIDGenerator replaces the source of uid values.
func WithUIDGenerator(f func() string) Option {
	return func(s *Store) {
		s.newUID = f
	}
}

// New returns an unconfigured Store.
func New(opts ...Option) *Store {
	s := &Store{
		sink:   event.Discard,
		now:    time.Now,
		newUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a Store configured with cfg.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure validates cfg, opens a connection pool bounded to cfg.MaxConns()
// connections and checks that the database is reachable. It fails if the Store
// is already configured.
func (s *Store) Configure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return fmt.Errorf("%w: already configured", ErrConfiguration)
	}
	conn, err := lib.NewDBConn(cfg)
	if err != nil {
		return queryError(err)
	}
	s.attach(conn)
	log.Debugf("Connected to database %s at %s.", cfg.Database, cfg.Addr())
	return nil
}

// Attach adopts an already opened MySQL connection pool. The Store closes it
// on Close.
func (s *Store) Attach(conn *sql.DB) error {
	if conn == nil {
		return fmt.Errorf("%w: nil connection", ErrConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return fmt.Errorf("%w: already configured", ErrConfiguration)
	}
	s.attach(conn)
	return nil
}

func (s *Store) attach(conn *sql.DB) {
	s.db = &tracedDB{
		DB:   sqlx.NewDb(conn, "mysql"),
		sink: s.sink,
	}
	s.schema = schema.NewCache(s.db)
}

// Configured reports whether the Store has a connection.
func (s *Store) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Close closes the connection pool and drops the schema cache. The Store can
// be configured again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.schema = nil
	return err
}

func (s *Store) handle() (*tracedDB, *schema.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, nil, ErrNotConfigured
	}
	return s.db, s.schema, nil
}

// Schema returns the cached layout of table, describing it on first use.
func (s *Store) Schema(ctx context.Context, table string) (*schema.Table, error) {
	_, cache, err := s.handle()
	if err != nil {
		return nil, err
	}
	return cache.Ensure(ctx, table)
}

//////////////////////////////////////////
// Statement tracing

// tracedDB records every statement it runs in the query log.
type tracedDB struct {
	*sqlx.DB
	sink event.Sink
}

var _ sqlx.QueryerContext = (*tracedDB)(nil)

func (t *tracedDB) record(statement string, args int, start time.Time, err error) {
	took := time.Since(start)
	if err != nil {
		log.Debugf("%s (%d args, %v): %v", statement, args, took, err)
	} else {
		log.Debugf("%s (%d args, %v)", statement, args, took)
	}
	if werr := t.sink.Write(event.New(statement, args, took, err)); werr != nil {
		log.Warnf("Error writing query event: %v", werr)
	}
}

func (t *tracedDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.DB.QueryContext(ctx, query, args...)
	t.record(query, len(args), start, err)
	return rows, err
}

func (t *tracedDB) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := t.DB.QueryxContext(ctx, query, args...)
	t.record(query, len(args), start, err)
	return rows, err
}

func (t *tracedDB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	start := time.Now()
	row := t.DB.QueryRowxContext(ctx, query, args...)
	t.record(query, len(args), start, row.Err())
	return row
}

func (t *tracedDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := t.DB.ExecContext(ctx, query, args...)
	t.record(query, len(args), start, err)
	return res, err
}
