// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/amm0nite/ammonite-mysql/lib/config"
	"github.com/amm0nite/ammonite-mysql/lib/event"
	"github.com/amm0nite/ammonite-mysql/lib/query"
)

var (
	ctx = context.Background()

	fixedNow     = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fixedNowText = "2024-01-02 03:04:05"

	userColumns = []string{"id", "uid", "name", "createdAt", "updatedAt"}
)

// setup returns a Store attached to a mock database. Statements are matched
// literally.
func setup(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New(opts...)
	if err := s.Attach(db); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func expectSchema(mock sqlmock.Sqlmock, table string, columns ...string) {
	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"})
	for _, c := range columns {
		if c == "id" {
			rows.AddRow(c, "int(11)", "NO", "PRI", nil, "auto_increment")
		} else {
			rows.AddRow(c, "varchar(255)", "YES", "", nil, "")
		}
	}
	mock.ExpectQuery("SHOW COLUMNS FROM `" + table + "`").WillReturnRows(rows)
}

func userRow(id int64, uid, name string) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).AddRow(id, uid, name, fixedNowText, nil)
}

func assertMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// captureString matches any string argument and remembers it.
type captureString struct {
	got *string
}

func (c captureString) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*c.got = s
	}
	return ok
}

//////////////////////////////////////////
// Configuration

func TestOperationsBeforeConfigure(t *testing.T) {
	s := New()
	checks := map[string]error{}
	_, checks["FindAll"] = s.FindAll(ctx, "users", query.Filter{})
	_, checks["FindOne"] = s.FindOne(ctx, "users", query.Filter{"id": query.Int(1)})
	_, checks["FindLast"] = s.FindLast(ctx, "users", query.Filter{})
	_, checks["Insert"] = s.Insert(ctx, "users", query.Values{"name": query.Text("a")})
	_, checks["Update"] = s.Update(ctx, "users", query.Values{"id": query.Int(1), "name": query.Text("a")})
	_, checks["Delete"] = s.Delete(ctx, "users", query.Filter{"id": query.Int(1)})
	_, checks["Query"] = s.Query(ctx, "SELECT 1")
	_, checks["Exec"] = s.Exec(ctx, "DO 1")
	_, checks["Schema"] = s.Schema(ctx, "users")
	// Calls that would also fail validation report the missing configuration.
	_, checks["Update without key"] = s.Update(ctx, "users", query.Values{"name": query.Text("a")})
	_, checks["FindAll bad limit"] = s.FindAll(ctx, "users", query.Filter{query.LimitKey: query.Text("x")})
	_, checks["Delete everything"] = s.Delete(ctx, "users", query.Filter{})
	for op, err := range checks {
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("%s: expected ErrNotConfigured, got %v", op, err)
		}
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: expected ErrNotConfigured to be a configuration error", op)
		}
	}
	if s.Configured() {
		t.Errorf("Expected store to be unconfigured")
	}
}

func TestConfigureMissingKey(t *testing.T) {
	for _, key := range config.RequiredKeys {
		if key == "password" {
			// A blank password is valid; see TestConfigureEmptyPassword.
			continue
		}
		m := map[string]string{"host": "localhost", "user": "app", "password": "secret", "database": "app"}
		delete(m, key)
		cfg := &config.Config{Host: m["host"], User: m["user"], Password: m["password"], Database: m["database"]}
		err := New().Configure(cfg)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration without %s, got %v", key, err)
			continue
		}
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to name %s, got %q", key, err)
		}
	}
}

func TestConfigureEmptyPassword(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{"host": "127.0.0.1", "port": "1", "user": "app", "password": "", "database": "app"})
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	cfg.Params = map[string]string{"timeout": "1s"}
	// Nothing listens on port 1, so the configuration is accepted and
	// connecting fails.
	err = New().Configure(cfg)
	if errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected empty password to be accepted, got %v", err)
	}
	if !errors.Is(err, ErrQuery) {
		t.Errorf("Expected ErrQuery from connecting, got %v", err)
	}
}

func TestConfigureTwice(t *testing.T) {
	s, mock := setup(t)
	cfg := &config.Config{Host: "localhost", User: "app", Password: "secret", Database: "app"}
	if err := s.Configure(cfg); !errors.Is(err, ErrConfiguration) || !strings.Contains(err.Error(), "already configured") {
		t.Errorf("Expected already configured error, got %v", err)
	}
	db, _, _ := sqlmock.New()
	defer db.Close()
	if err := s.Attach(db); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration from second Attach, got %v", err)
	}
	assertMet(t, mock)
}

func TestCloseResetsStore(t *testing.T) {
	s, mock := setup(t)
	mock.ExpectClose()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.FindAll(ctx, "users", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured after Close, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	assertMet(t, mock)
}

//////////////////////////////////////////
// Schema cache

func TestSchemaFetchedOncePerTable(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(1)).
		WillReturnRows(userRow(1, "u-1", "alice"))
	mock.ExpectQuery("SELECT * FROM `users` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(2)).
		WillReturnRows(userRow(2, "u-2", "bob"))

	for _, id := range []int64{1, 2} {
		if _, err := s.FindOne(ctx, "users", query.Filter{"id": query.Int(id)}); err != nil {
			t.Fatalf("FindOne(%d) failed: %v", id, err)
		}
	}
	assertMet(t, mock)
}

func TestSchemaFailureShortCircuits(t *testing.T) {
	s, mock := setup(t)
	driverErr := errors.New("Error 1146: Table 'app.missing' doesn't exist")
	mock.ExpectQuery("SHOW COLUMNS FROM `missing`").WillReturnError(driverErr)

	_, err := s.Insert(ctx, "missing", query.Values{"name": query.Text("a")})
	if !errors.Is(err, ErrSchemaFetch) {
		t.Errorf("Expected ErrSchemaFetch, got %v", err)
	}
	if !errors.Is(err, driverErr) {
		t.Errorf("Expected driver error to be reachable, got %v", err)
	}
	assertMet(t, mock)
}

func TestSchemaDescribe(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	table, err := s.Schema(ctx, "users")
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if got, want := strings.Join(table.Order, ","), strings.Join(userColumns, ","); got != want {
		t.Errorf("Expected columns %v, got %v", want, got)
	}
	assertMet(t, mock)
}

//////////////////////////////////////////
// Insert

func TestInsertAugmentsBookkeepingColumns(t *testing.T) {
	n := 0
	s, mock := setup(t, WithUIDGenerator(func() string {
		n++
		return fmt.Sprintf("uid-%d", n)
	}))
	expectSchema(mock, "users", userColumns...)
	mock.ExpectExec("INSERT INTO `users` SET `createdAt` = ?, `name` = ?, `uid` = ?").
		WithArgs(fixedNowText, "alice", "uid-1").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT * FROM `users` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(7)).
		WillReturnRows(userRow(7, "uid-1", "alice"))

	values := query.Values{"name": query.Text("alice")}
	row, err := s.Insert(ctx, "users", values)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got, want := row["id"], int64(7); got != want {
		t.Errorf("Expected id %v, got %v", want, got)
	}
	if got, want := row["createdAt"], fixedNowText; got != want {
		t.Errorf("Expected createdAt %v, got %v", want, got)
	}
	if got, want := row["uid"], "uid-1"; got != want {
		t.Errorf("Expected uid %v, got %v", want, got)
	}
	if len(values) != 1 {
		t.Errorf("Expected caller values to be left alone, got %v", values)
	}
	assertMet(t, mock)
}

func TestInsertGeneratesDistinctUUIDs(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "items", "id", "uid")
	var uids [2]string
	for i := range uids {
		mock.ExpectExec("INSERT INTO `items` SET `name` = ?, `uid` = ?").
			WithArgs("x", captureString{&uids[i]}).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		mock.ExpectQuery("SELECT * FROM `items` WHERE `id` = ? LIMIT 1").
			WithArgs(int64(i+1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "uid"}).AddRow(int64(i+1), "stored"))
	}

	for i := range uids {
		if _, err := s.Insert(ctx, "items", query.Values{"name": query.Text("x")}); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}
	for _, u := range uids {
		if _, err := uuid.Parse(u); err != nil {
			t.Errorf("Expected a UUID, got %q: %v", u, err)
		}
	}
	if uids[0] == uids[1] {
		t.Errorf("Expected distinct uids, got %q twice", uids[0])
	}
	assertMet(t, mock)
}

func TestInsertKeepsSuppliedValues(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	created := time.Date(2019, 5, 6, 7, 8, 9, 0, time.UTC)
	mock.ExpectExec("INSERT INTO `users` SET `createdAt` = ?, `name` = ?, `uid` = ?").
		WithArgs("2019-05-06 07:08:09", "bob", "mine").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectQuery("SELECT * FROM `users` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(8)).
		WillReturnRows(userRow(8, "mine", "bob"))

	values := query.Values{
		"name":      query.Text("bob"),
		"uid":       query.Text("mine"),
		"createdAt": query.Time(created),
	}
	if _, err := s.Insert(ctx, "users", values); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if values["createdAt"].Kind() != query.KindTimestamp {
		t.Errorf("Expected caller timestamp to stay a Timestamp, got %v", values["createdAt"])
	}
	assertMet(t, mock)
}

func TestInsertWithoutIDColumn(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "tags", "name")
	if _, err := s.Insert(ctx, "tags", query.Values{"name": query.Text("a")}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	assertMet(t, mock)
}

func TestInsertRefetchMissing(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "notes", "id", "body")
	mock.ExpectExec("INSERT INTO `notes` SET `body` = ?").
		WithArgs("hi").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("SELECT * FROM `notes` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}))

	if _, err := s.Insert(ctx, "notes", query.Values{"body": query.Text("hi")}); !errors.Is(err, ErrQuery) {
		t.Errorf("Expected ErrQuery, got %v", err)
	}
	assertMet(t, mock)
}

func TestInsertWithSuppliedID(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "notes", "id", "body")
	mock.ExpectExec("INSERT INTO `notes` SET `body` = ?, `id` = ?").
		WithArgs("x", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT * FROM `notes` WHERE `id` = ? LIMIT 1").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow(int64(5), "x"))

	row, err := s.Insert(ctx, "notes", query.Values{"id": query.Int(5), "body": query.Text("x")})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got, want := row["id"], int64(5); got != want {
		t.Errorf("Expected id %v, got %v", want, got)
	}
	assertMet(t, mock)
}

func TestInsertWithoutAssignedID(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "notes", "id", "body")
	mock.ExpectExec("INSERT INTO `notes` SET `body` = ?").
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := s.Insert(ctx, "notes", query.Values{"body": query.Text("x")})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if row != nil {
		t.Errorf("Expected nil row, got %v", row)
	}
	assertMet(t, mock)
}

func TestInsertDriverError(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "notes", "id", "body")
	driverErr := errors.New("Error 1054: Unknown column 'nope' in 'field list'")
	mock.ExpectExec("INSERT INTO `notes` SET `nope` = ?").
		WithArgs("x").
		WillReturnError(driverErr)

	_, err := s.Insert(ctx, "notes", query.Values{"nope": query.Text("x")})
	if !errors.Is(err, ErrQuery) || !errors.Is(err, driverErr) {
		t.Errorf("Expected ErrQuery wrapping the driver error, got %v", err)
	}
	assertMet(t, mock)
}

//////////////////////////////////////////
// Reads

func TestFindAllPagination(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `name` = ? ORDER BY `id` DESC LIMIT 1,2").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(4), "u-4", "a", fixedNowText, nil).
			AddRow(int64(3), "u-3", "a", fixedNowText, nil))

	f := query.Filter{
		"name":          query.Text("a"),
		query.LimitKey:  query.Int(2),
		query.OffsetKey: query.Int(1),
	}
	rows, err := s.FindAll(ctx, "users", f)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %v", len(rows))
	}
	if got := rows[0]["id"]; got != int64(4) {
		t.Errorf("Expected newest row first, got id %v", got)
	}
	if len(f) != 3 {
		t.Errorf("Expected caller filter to keep its pagination keys, got %v", f)
	}
	assertMet(t, mock)
}

func TestFindAllWithoutFilter(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` ORDER BY `id` DESC").
		WillReturnRows(sqlmock.NewRows(userColumns))

	rows, err := s.FindAll(ctx, "users", nil)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected an empty, non-nil result, got %#v", rows)
	}
	assertMet(t, mock)
}

func TestFindAllBadPagination(t *testing.T) {
	s, mock := setup(t)
	_, err := s.FindAll(ctx, "users", query.Filter{query.LimitKey: query.Text("lots")})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	assertMet(t, mock)
}

func TestFindOne(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `uid` = ? LIMIT 1").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(1), []byte("u-1"), []byte("alice"), fixedNowText, nil))
	mock.ExpectQuery("SELECT * FROM `users` WHERE `uid` = ? LIMIT 1").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userColumns))

	row, err := s.FindOne(ctx, "users", query.Filter{"uid": query.Text("u-1")})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got, want := row["name"], "alice"; got != want {
		t.Errorf("Expected %q as a string, got %#v", want, got)
	}
	if got := row["updatedAt"]; got != nil {
		t.Errorf("Expected NULL updatedAt, got %#v", got)
	}
	if v, ok := row.Value("id"); !ok || v.Kind() != query.KindNumber {
		t.Errorf("Expected numeric id, got %v", v)
	}

	row, err = s.FindOne(ctx, "users", query.Filter{"uid": query.Text("nobody")})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if row != nil {
		t.Errorf("Expected nil row, got %v", row)
	}
	assertMet(t, mock)
}

func TestRowsDecodedByColumnType(t *testing.T) {
	s, mock := setup(t)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("age").OfType("UNSIGNED TINYINT", int64(0)),
		sqlmock.NewColumn("score").OfType("DOUBLE", float64(0)),
		sqlmock.NewColumn("ratio").OfType("FLOAT", float64(0)),
		sqlmock.NewColumn("price").OfType("DECIMAL", ""),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("big").OfType("UNSIGNED BIGINT", int64(0)),
		sqlmock.NewColumn("note").OfType("TEXT", ""),
	).AddRow([]byte("7"), []byte("30"), []byte("2.25"), []byte("1.5"), []byte("9.99"), []byte("alice"), []byte("18446744073709551615"), nil)
	mock.ExpectQuery("SELECT * FROM scores").WillReturnRows(rows)

	got, err := s.Query(ctx, "SELECT * FROM scores")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 row, got %v", got)
	}
	want := Row{
		"id":    int64(7),
		"age":   int64(30),
		"score": 2.25,
		"ratio": 1.5,
		"price": "9.99",
		"name":  "alice",
		"big":   "18446744073709551615",
		"note":  nil,
	}
	for col, w := range want {
		if g := got[0][col]; g != w {
			t.Errorf("Expected %s to be %#v, got %#v", col, w, g)
		}
	}
	assertMet(t, mock)
}

func TestFindOneCastsTimestamps(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `createdAt` = ? LIMIT 1").
		WithArgs(fixedNowText).
		WillReturnRows(sqlmock.NewRows(userColumns))

	at := fixedNow.In(time.FixedZone("PST", -8*3600))
	if _, err := s.FindOne(ctx, "users", query.Filter{"createdAt": query.Time(at)}); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	assertMet(t, mock)
}

func TestFindLast(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectQuery("SELECT * FROM `users` WHERE `name` = ? ORDER BY `id` DESC LIMIT 1").
		WithArgs("a").
		WillReturnRows(userRow(9, "u-9", "a"))

	row, err := s.FindLast(ctx, "users", query.Filter{"name": query.Text("a")})
	if err != nil {
		t.Fatalf("FindLast failed: %v", err)
	}
	if got := row["id"]; got != int64(9) {
		t.Errorf("Expected id 9, got %v", got)
	}
	assertMet(t, mock)
}

func TestFindLastWithoutIDColumn(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "tags", "name")
	if _, err := s.FindLast(ctx, "tags", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation from FindLast, got %v", err)
	}
	if _, err := s.FindAll(ctx, "tags", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation from FindAll, got %v", err)
	}
	assertMet(t, mock)
}

//////////////////////////////////////////
// Update and delete

func TestUpdatePrefersIDAndSetsUpdatedAt(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectExec("UPDATE `users` SET `name` = ?, `updatedAt` = ? WHERE `id` = ?").
		WithArgs("x", fixedNowText, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	values := query.Values{"id": query.Int(3), "uid": query.Text("u-3"), "name": query.Text("x")}
	res, err := s.Update(ctx, "users", values)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("Expected 1 row affected, got %v", res.RowsAffected)
	}
	if values.Has("updatedAt") {
		t.Errorf("Expected caller values to be left alone, got %v", values)
	}
	assertMet(t, mock)
}

func TestUpdateByUID(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "items", "id", "uid", "name")
	mock.ExpectExec("UPDATE `items` SET `name` = ? WHERE `uid` = ?").
		WithArgs("y", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := s.Update(ctx, "items", query.Values{"uid": query.Text("u-1"), "name": query.Text("y")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if res.RowsAffected != 0 {
		t.Errorf("Expected 0 rows affected, got %v", res.RowsAffected)
	}
	assertMet(t, mock)
}

func TestUpdateWithoutMatchKeyIssuesNoSQL(t *testing.T) {
	s, mock := setup(t)
	_, err := s.Update(ctx, "users", query.Values{"name": query.Text("x")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "id or uid") {
		t.Errorf("Expected error to name id or uid, got %q", err)
	}
	assertMet(t, mock)
}

func TestDelete(t *testing.T) {
	s, mock := setup(t)
	expectSchema(mock, "users", userColumns...)
	mock.ExpectExec("DELETE FROM `users` WHERE `name` = ? AND `uid` = ?").
		WithArgs("x", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := s.Delete(ctx, "users", query.Filter{"uid": query.Text("u-1"), "name": query.Text("x")})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("Expected 1 row affected, got %v", res.RowsAffected)
	}
	if _, err := s.Delete(ctx, "users", query.Filter{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for an empty filter, got %v", err)
	}
	assertMet(t, mock)
}

//////////////////////////////////////////
// Raw statements and query log

func TestQueryAndExec(t *testing.T) {
	var buf bytes.Buffer
	s, mock := setup(t, WithQueryLog(event.NewJsonSink(&buf, false)))
	mock.ExpectQuery("SELECT COUNT(*) AS n FROM users WHERE name = ?").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(2)))
	mock.ExpectExec("TRUNCATE sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := s.Query(ctx, "SELECT COUNT(*) AS n FROM users WHERE name = ?", query.Text("a"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["n"] != int64(2) {
		t.Errorf("Expected a single count of 2, got %v", rows)
	}
	if _, err := s.Exec(ctx, "TRUNCATE sessions"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	assertMet(t, mock)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 query events, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"Args":1`) || strings.Contains(lines[0], `"a"`) {
		t.Errorf("Expected event with arg count and no bound values, got %s", lines[0])
	}
}

func TestQueryLogRecordsFailures(t *testing.T) {
	var buf bytes.Buffer
	s, mock := setup(t, WithQueryLog(event.NewJsonSink(&buf, true)))
	mock.ExpectExec("DO 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("BROKEN").WillReturnError(errors.New("Error 1064: syntax error"))

	s.Exec(ctx, "DO 1")
	if _, err := s.Exec(ctx, "BROKEN"); !errors.Is(err, ErrQuery) {
		t.Errorf("Expected ErrQuery, got %v", err)
	}
	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 || !strings.Contains(out, "Error 1064") {
		t.Errorf("Expected only the failed statement to be logged, got %q", out)
	}
	assertMet(t, mock)
}
