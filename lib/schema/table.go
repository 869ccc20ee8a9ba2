// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schema discovers and caches the column layout of MySQL tables.
//
// A table is described once, on first use, with SHOW COLUMNS and the result
// is kept for the lifetime of the Cache. The cached layout only answers
// whether a table has a given column; it is never invalidated, so columns
// added or dropped after the first lookup are not noticed.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/amm0nite/ammonite-mysql/lib/query"
)

// ErrFetch is wrapped by errors from describing a table. The underlying driver
// error stays reachable with errors.Is and errors.As.
var ErrFetch = errors.New("schema fetch failed")

// Column is one row of SHOW COLUMNS output.
type Column struct {
	Field   string         `db:"Field"`
	Type    string         `db:"Type"`
	Null    string         `db:"Null"`
	Key     string         `db:"Key"`
	Default sql.NullString `db:"Default"`
	Extra   string         `db:"Extra"`
}

func (c Column) Nullable() bool {
	return c.Null == "YES"
}

func (c Column) PrimaryKey() bool {
	return c.Key == "PRI"
}

// Table is the column layout of a single table.
type Table struct {
	Name    string
	Columns map[string]Column
	// Column names in table order.
	Order []string
}

func NewTable(name string, cols []Column) *Table {
	t := &Table{
		Name:    name,
		Columns: make(map[string]Column, len(cols)),
		Order:   make([]string, 0, len(cols)),
	}
	for _, c := range cols {
		if _, dup := t.Columns[c.Field]; !dup {
			t.Order = append(t.Order, c.Field)
		}
		t.Columns[c.Field] = c
	}
	return t
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(column string) bool {
	_, ok := t.Columns[column]
	return ok
}

func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// Describe runs SHOW COLUMNS for table and returns its layout.
func Describe(ctx context.Context, q sqlx.QueryerContext, table string) (*Table, error) {
	ident, err := query.QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	var cols []Column
	if err := sqlx.SelectContext(ctx, q, &cols, "SHOW COLUMNS FROM "+ident); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s: no columns", ErrFetch, table)
	}
	return NewTable(table, cols), nil
}
