// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package query builds MySQL statement strings for table-oriented CRUD
// operations.
//
// Column values are tagged Values (Text, Number, Timestamp or Raw) chosen by
// the caller. Every value is bound through a question mark placeholder, never
// interpolated; table and column names are checked against an allow-list
// pattern and backtick-quoted. Clauses are emitted in column name order so the
// same input always yields the same SQL text.
//
// A Filter maps column names to the values they must equal. The pseudo-keys
// "_offset" and "_limit" select a page of results instead of filtering and are
// split off with Filter.Page before the WHERE clause is built.
package query
