// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrValidation is wrapped by every error caused by unusable input, such as
// an invalid identifier or an update without a match key.
var ErrValidation = errors.New("validation failed")

const (
	// Pagination pseudo-keys of a Filter.
	OffsetKey = "_offset"
	LimitKey  = "_limit"

	// Columns with special meaning to the CRUD operations.
	IDColumn        = "id"
	UIDColumn       = "uid"
	CreatedAtColumn = "createdAt"
	UpdatedAtColumn = "updatedAt"
)

//////////////////////////////////////////
// Values and filters

// Values maps column names to the values to write.
type Values map[string]Value

// Clone returns a shallow copy of vs.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// Cast converts Timestamp values to canonical Text in place.
func (vs Values) Cast() {
	for k, v := range vs {
		vs[k] = v.Cast()
	}
}

// Has reports whether column is present.
func (vs Values) Has(column string) bool {
	_, ok := vs[column]
	return ok
}

// Filter maps column names to equality constraints, plus the OffsetKey and
// LimitKey pagination pseudo-keys.
type Filter map[string]Value

// Clone returns a shallow copy of f.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Cast converts Timestamp values to canonical Text in place.
func (f Filter) Cast() {
	for k, v := range f {
		f[k] = v.Cast()
	}
}

// Paginated reports whether f carries a pagination pseudo-key.
func (f Filter) Paginated() bool {
	_, offset := f[OffsetKey]
	_, limit := f[LimitKey]
	return offset || limit
}

// Page describes a window of results. Zero Limit means no limit; Offset is
// only honored together with a Limit.
type Page struct {
	Offset int64
	Limit  int64
}

// Page splits f into a copy without the pseudo-keys and the page they
// describe.
func (f Filter) Page() (Filter, Page, error) {
	var p Page
	rest := make(Filter, len(f))
	for k, v := range f {
		switch k {
		case OffsetKey, LimitKey:
			n, ok := v.AsInt()
			if !ok || n < 0 {
				return nil, Page{}, fmt.Errorf("%w: %s must be a non-negative integer, got %v", ErrValidation, k, v)
			}
			if k == OffsetKey {
				p.Offset = n
			} else {
				p.Limit = n
			}
		default:
			rest[k] = v
		}
	}
	return rest, p, nil
}

//////////////////////////////////////////
// Clause generation

// Statement is SQL text with placeholders and its bound arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

func (s Statement) String() string {
	return s.SQL
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// assignments renders `col` = ? pairs in column order.
func assignments(m map[string]Value, skip func(string) bool) ([]string, []interface{}, error) {
	var parts []string
	var args []interface{}
	for _, k := range sortedKeys(m) {
		if skip != nil && skip(k) {
			continue
		}
		col, err := QuoteIdent(k)
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, col+" = ?")
		args = append(args, m[k].Arg())
	}
	return parts, args, nil
}

// Where renders the conjunction of the equality constraints in f. It returns
// an empty clause for an empty filter. Pseudo-keys must be removed with Page
// first.
func Where(f Filter) (string, []interface{}, error) {
	if f.Paginated() {
		return "", nil, fmt.Errorf("%w: pagination keys in WHERE clause", ErrValidation)
	}
	parts, args, err := assignments(f, nil)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(parts, " AND "), args, nil
}

// OrderTail renders the ordering and pagination tail used by list queries:
// newest primary key first, then the page window.
func OrderTail(p Page) string {
	tail := "ORDER BY `" + IDColumn + "` DESC"
	if p.Limit > 0 {
		tail += " " + LimitTail(p)
	}
	return tail
}

// LimitTail renders LIMIT [offset,]limit for a page with a non-zero limit.
func LimitTail(p Page) string {
	tail := "LIMIT "
	if p.Offset > 0 {
		tail += strconv.FormatInt(p.Offset, 10) + ","
	}
	return tail + strconv.FormatInt(p.Limit, 10)
}

//////////////////////////////////////////
// Statement generation

// Select renders SELECT * FROM table [WHERE ...] [tail].
func Select(table string, f Filter, tail string) (Statement, error) {
	t, err := QuoteIdent(table)
	if err != nil {
		return Statement{}, err
	}
	where, args, err := Where(f)
	if err != nil {
		return Statement{}, err
	}
	sql := "SELECT * FROM " + t
	if where != "" {
		sql += " WHERE " + where
	}
	if tail != "" {
		sql += " " + tail
	}
	return Statement{SQL: sql, Args: args}, nil
}

// Insert renders INSERT INTO table SET ... for every column in vs.
func Insert(table string, vs Values) (Statement, error) {
	t, err := QuoteIdent(table)
	if err != nil {
		return Statement{}, err
	}
	sets, args, err := assignments(vs, nil)
	if err != nil {
		return Statement{}, err
	}
	if len(sets) == 0 {
		return Statement{}, fmt.Errorf("%w: no values to insert into %s", ErrValidation, table)
	}
	return Statement{
		SQL:  "INSERT INTO " + t + " SET " + strings.Join(sets, ", "),
		Args: args,
	}, nil
}

// MatchKey picks the column identifying the row an update targets: id if
// present, else uid.
func MatchKey(vs Values) (string, error) {
	if vs.Has(IDColumn) {
		return IDColumn, nil
	}
	if vs.Has(UIDColumn) {
		return UIDColumn, nil
	}
	return "", fmt.Errorf("%w: missing %s or %s", ErrValidation, IDColumn, UIDColumn)
}

func isKeyColumn(col string) bool {
	return col == IDColumn || col == UIDColumn
}

// Update renders UPDATE table SET ... WHERE key = ?. Neither id nor uid is
// ever part of the SET list.
func Update(table string, vs Values) (Statement, error) {
	key, err := MatchKey(vs)
	if err != nil {
		return Statement{}, err
	}
	t, err := QuoteIdent(table)
	if err != nil {
		return Statement{}, err
	}
	sets, args, err := assignments(vs, isKeyColumn)
	if err != nil {
		return Statement{}, err
	}
	if len(sets) == 0 {
		return Statement{}, fmt.Errorf("%w: no columns to update in %s", ErrValidation, table)
	}
	return Statement{
		SQL:  "UPDATE " + t + " SET " + strings.Join(sets, ", ") + " WHERE `" + key + "` = ?",
		Args: append(args, vs[key].Arg()),
	}, nil
}

// Delete renders DELETE FROM table WHERE .... An empty filter is rejected
// rather than emptying the table.
func Delete(table string, f Filter) (Statement, error) {
	t, err := QuoteIdent(table)
	if err != nil {
		return Statement{}, err
	}
	if len(f) == 0 {
		return Statement{}, fmt.Errorf("%w: delete from %s without a filter", ErrValidation, table)
	}
	where, args, err := Where(f)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:  "DELETE FROM " + t + " WHERE " + where,
		Args: args,
	}, nil
}
