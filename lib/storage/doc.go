// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//=== Overview ===
// A Store maps table-oriented CRUD operations onto a single MySQL connection
// pool. Rows are returned as column name to value maps; values to write are
// tagged query.Values chosen by the caller.
//
// Before touching a table, every operation makes sure the table's columns are
// in the Store's schema cache. The cached layout decides which bookkeeping
// columns are filled in implicitly:
//
//   createdAt  set to the current UTC time on Insert, unless supplied
//   uid        set to a random UUID on Insert, unless supplied
//   updatedAt  set to the current UTC time on Update, unless supplied
//
// FindAll, FindLast and Insert order or re-fetch rows by an auto-increment
// primary key named id, and fail with ErrValidation on tables without one.
//
// Update identifies its target row by id, or by uid when id is absent. Neither
// is ever written. Delete refuses an empty filter.
//
// Caller maps are never modified.
//
// AsyncStore wraps a Store for callers that want a callback per operation
// instead of a blocking call.

package storage
