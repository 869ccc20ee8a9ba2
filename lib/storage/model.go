// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/amm0nite/ammonite-mysql/lib/log"
	"github.com/amm0nite/ammonite-mysql/lib/query"
	"github.com/amm0nite/ammonite-mysql/lib/schema"
)

//////////////////////////////////////////
// Result types

// Row maps column names to values. Integer columns are int64, FLOAT and
// DOUBLE columns float64, DATETIME columns time.Time in UTC and everything
// else a string.
type Row map[string]interface{}

// Value returns the tagged value of column, and whether it is present.
func (r Row) Value(column string) (query.Value, bool) {
	v, ok := r[column]
	if !ok {
		return query.Value{}, false
	}
	return query.FromInterface(v), true
}

// Result is the driver's summary of an INSERT, UPDATE or DELETE.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

func newResult(r sql.Result) (Result, error) {
	id, err := r.LastInsertId()
	if err != nil {
		return Result{}, queryError(err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return Result{}, queryError(err)
	}
	return Result{LastInsertID: id, RowsAffected: n}, nil
}

// scanRows reads every row, decoding text protocol values by column type.
// go-sql-driver/mysql sends statements without arguments over the text
// protocol, where numbers arrive as []byte; with arguments it uses the binary
// protocol and returns int64 and float values. Both end up with the same Go
// types here.
func scanRows(rows *sqlx.Rows) ([]Row, error) {
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, queryError(err)
	}
	out := []Row{}
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, queryError(err)
		}
		for _, ct := range types {
			name := ct.Name()
			m[name] = decodeValue(ct.DatabaseTypeName(), m[name])
		}
		out = append(out, Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err)
	}
	return out, nil
}

func decodeValue(dbType string, v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return decodeText(dbType, string(x))
	case float32:
		return float64(x)
	}
	return v
}

// decodeText converts integer and floating point columns. DECIMAL stays a
// string, as does an unsigned BIGINT above the int64 range, matching what the
// binary protocol returns for them.
func decodeText(dbType, s string) interface{} {
	switch strings.TrimPrefix(dbType, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT":
		if f, err := strconv.ParseFloat(s, 32); err == nil {
			return f
		}
	case "DOUBLE":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func driverArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if v, ok := a.(query.Value); ok {
			out[i] = v.Arg()
		} else {
			out[i] = a
		}
	}
	return out
}

//////////////////////////////////////////
// Statement execution

func selectRows(ctx context.Context, db *tracedDB, stmt query.Statement) ([]Row, error) {
	rows, err := db.QueryxContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, queryError(err)
	}
	return scanRows(rows)
}

func selectOne(ctx context.Context, db *tracedDB, stmt query.Statement) (Row, error) {
	rows, err := selectRows(ctx, db, stmt)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func execStatement(ctx context.Context, db *tracedDB, stmt query.Statement) (Result, error) {
	res, err := db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Result{}, queryError(err)
	}
	return newResult(res)
}

func requireID(t *schema.Table) error {
	if !t.Has(query.IDColumn) {
		return fmt.Errorf("%w: table %s has no %s column", ErrValidation, t.Name, query.IDColumn)
	}
	return nil
}

// readFilter strips the pagination keys from a copy of f and casts the rest.
func readFilter(f query.Filter) (query.Filter, query.Page, error) {
	rest, page, err := f.Page()
	if err != nil {
		return nil, query.Page{}, err
	}
	rest.Cast()
	return rest, page, nil
}

//////////////////////////////////////////
// Read methods

// FindAll returns the rows of table matching f, newest id first. The _limit
// and _offset keys of f select a page of the result.
func (s *Store) FindAll(ctx context.Context, table string, f query.Filter) ([]Row, error) {
	db, cache, err := s.handle()
	if err != nil {
		return nil, err
	}
	rest, page, err := readFilter(f)
	if err != nil {
		return nil, err
	}
	t, err := cache.Ensure(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := requireID(t); err != nil {
		return nil, err
	}
	stmt, err := query.Select(table, rest, query.OrderTail(page))
	if err != nil {
		return nil, err
	}
	return selectRows(ctx, db, stmt)
}

// FindOne returns the first row of table matching f, or nil if none does.
// Rows are not ordered, so with several matches any one of them may be
// returned.
func (s *Store) FindOne(ctx context.Context, table string, f query.Filter) (Row, error) {
	db, cache, err := s.handle()
	if err != nil {
		return nil, err
	}
	rest, _, err := readFilter(f)
	if err != nil {
		return nil, err
	}
	if _, err := cache.Ensure(ctx, table); err != nil {
		return nil, err
	}
	stmt, err := query.Select(table, rest, query.LimitTail(query.Page{Limit: 1}))
	if err != nil {
		return nil, err
	}
	return selectOne(ctx, db, stmt)
}

// FindLast returns the row of table matching f with the highest id, or nil if
// none matches.
func (s *Store) FindLast(ctx context.Context, table string, f query.Filter) (Row, error) {
	db, cache, err := s.handle()
	if err != nil {
		return nil, err
	}
	rest, _, err := readFilter(f)
	if err != nil {
		return nil, err
	}
	t, err := cache.Ensure(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := requireID(t); err != nil {
		return nil, err
	}
	stmt, err := query.Select(table, rest, query.OrderTail(query.Page{Limit: 1}))
	if err != nil {
		return nil, err
	}
	return selectOne(ctx, db, stmt)
}

// Query runs sql as is and returns the rows it produces. Args may be
// query.Values or plain driver values.
func (s *Store) Query(ctx context.Context, sql string, args ...interface{}) ([]Row, error) {
	db, _, err := s.handle()
	if err != nil {
		return nil, err
	}
	return selectRows(ctx, db, query.Statement{SQL: sql, Args: driverArgs(args)})
}

//////////////////////////////////////////
// Write methods

// Insert adds a row to table and returns it as stored. The row is re-read by
// the non-NULL id given in values, or else by the id the database assigned. When
// neither is known the row is written and nil is returned.
func (s *Store) Insert(ctx context.Context, table string, values query.Values) (Row, error) {
	db, cache, err := s.handle()
	if err != nil {
		return nil, err
	}
	vs := values.Clone()
	vs.Cast()
	t, err := cache.Ensure(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := requireID(t); err != nil {
		return nil, err
	}
	if t.Has(query.CreatedAtColumn) && !vs.Has(query.CreatedAtColumn) {
		vs[query.CreatedAtColumn] = query.Text(query.FormatTime(s.now()))
	}
	if t.Has(query.UIDColumn) && !vs.Has(query.UIDColumn) {
		vs[query.UIDColumn] = query.Text(s.newUID())
	}
	stmt, err := query.Insert(table, vs)
	if err != nil {
		return nil, err
	}
	res, err := execStatement(ctx, db, stmt)
	if err != nil {
		return nil, err
	}

	// A NULL id lets the database assign one.
	id, ok := vs[query.IDColumn]
	if !ok || id.Arg() == nil {
		if res.LastInsertID == 0 {
			log.Debugf("No id for row inserted in %s, not re-reading it.", table)
			return nil, nil
		}
		id = query.Int(res.LastInsertID)
	}
	refetch, err := query.Select(table, query.Filter{query.IDColumn: id}, query.LimitTail(query.Page{Limit: 1}))
	if err != nil {
		return nil, err
	}
	row, err := selectOne(ctx, db, refetch)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, queryError(fmt.Errorf("inserted row %s %v not found in %s", query.IDColumn, id.Arg(), table))
	}
	return row, nil
}

// Update writes values to the row of table identified by the id key of
// values, or by its uid key when id is absent.
func (s *Store) Update(ctx context.Context, table string, values query.Values) (Result, error) {
	db, cache, err := s.handle()
	if err != nil {
		return Result{}, err
	}
	if _, err := query.MatchKey(values); err != nil {
		return Result{}, err
	}
	vs := values.Clone()
	vs.Cast()
	t, err := cache.Ensure(ctx, table)
	if err != nil {
		return Result{}, err
	}
	if t.Has(query.UpdatedAtColumn) && !vs.Has(query.UpdatedAtColumn) {
		vs[query.UpdatedAtColumn] = query.Text(query.FormatTime(s.now()))
	}
	stmt, err := query.Update(table, vs)
	if err != nil {
		return Result{}, err
	}
	return execStatement(ctx, db, stmt)
}

// Delete removes the rows of table matching f. An empty filter is an error.
func (s *Store) Delete(ctx context.Context, table string, f query.Filter) (Result, error) {
	db, cache, err := s.handle()
	if err != nil {
		return Result{}, err
	}
	rest := f.Clone()
	rest.Cast()
	stmt, err := query.Delete(table, rest)
	if err != nil {
		return Result{}, err
	}
	if _, err := cache.Ensure(ctx, table); err != nil {
		return Result{}, err
	}
	return execStatement(ctx, db, stmt)
}

// Exec runs sql as is and returns the driver result.
func (s *Store) Exec(ctx context.Context, sql string, args ...interface{}) (Result, error) {
	db, _, err := s.handle()
	if err != nil {
		return Result{}, err
	}
	return execStatement(ctx, db, query.Statement{SQL: sql, Args: driverArgs(args)})
}
