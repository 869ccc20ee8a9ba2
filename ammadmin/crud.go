// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Table commands run single storage operations from the command line. With
// the global -n flag, write commands print the statement they would run
// instead of running it; implicit createdAt, updatedAt and uid values are not
// shown since they are only computed when the statement runs.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"

	"v.io/x/lib/cmdline"

	"github.com/amm0nite/ammonite-mysql/lib/query"
	"github.com/amm0nite/ammonite-mysql/lib/storage"
)

var cmdDescribe = &cmdline.Command{
	Runner:   runWithStore(runDescribe),
	Name:     "describe",
	Short:    "Show the columns of a table",
	Long:     "Prints the columns of <table> as reported by SHOW COLUMNS.",
	ArgsName: "<table>",
}

var cmdFind = &cmdline.Command{
	Runner: runWithStore(runFind),
	Name:   "find",
	Short:  "Find rows in a table",
	Long: `
Prints the rows of <table> matching every <assignment>, one JSON object per
line, newest id first. -one prints any single matching row and -last the
matching row with the highest id.
`,
	ArgsName: "<table> [<assignment> ...]",
	ArgsLong: assignmentsUsage,
}

var cmdInsert = &cmdline.Command{
	Runner: runWithStore(runInsert),
	Name:   "insert",
	Short:  "Insert a row into a table",
	Long: `
Inserts a row into <table> and prints it as stored. createdAt and uid are set
when the table has them and no value is given.
`,
	ArgsName: "<table> <assignment> ...",
	ArgsLong: assignmentsUsage,
}

var cmdUpdate = &cmdline.Command{
	Runner: runWithStore(runUpdate),
	Name:   "update",
	Short:  "Update a row of a table",
	Long: `
Updates the row of <table> identified by the id assignment, or by uid when no
id is given. updatedAt is set when the table has it and no value is given.
`,
	ArgsName: "<table> <assignment> ...",
	ArgsLong: assignmentsUsage,
}

var cmdDelete = &cmdline.Command{
	Runner:   runWithStore(runDelete),
	Name:     "delete",
	Short:    "Delete rows from a table",
	Long:     "Deletes the rows of <table> matching every <assignment>. At least one is required.",
	ArgsName: "<table> <assignment> ...",
	ArgsLong: assignmentsUsage,
}

var cmdQuery = &cmdline.Command{
	Runner: runWithStore(runQuery),
	Name:   "query",
	Short:  "Run a raw SQL statement",
	Long: `
Runs <sql> with the given placeholder arguments. Statements that return rows
(SELECT, SHOW, DESCRIBE, EXPLAIN) print them as JSON lines; others print the
number of affected rows.
`,
	ArgsName: "<sql> [<arg> ...]",
}

var (
	flagFindOne    bool
	flagFindLast   bool
	flagFindLimit  int
	flagFindOffset int
	flagDump       bool
)

func init() {
	cmdFind.Flags.BoolVar(&flagFindOne, "one", false, "Print a single matching row.")
	cmdFind.Flags.BoolVar(&flagFindLast, "last", false, "Print the matching row with the highest id.")
	cmdFind.Flags.IntVar(&flagFindLimit, "limit", 0, "Maximum number of rows to print. 0 for unlimited.")
	cmdFind.Flags.IntVar(&flagFindOffset, "offset", 0, "Number of rows to skip. Requires -limit.")
	for _, cmd := range []*cmdline.Command{cmdFind, cmdInsert, cmdQuery} {
		cmd.Flags.BoolVar(&flagDump, "dump", false, "Dump rows with their Go types instead of printing JSON.")
	}
}

//////////////////////////////////////////
// Output

func printRows(w io.Writer, rows ...storage.Row) error {
	if flagDump {
		spew.Fdump(w, rows)
		return nil
	}
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func printStatement(w io.Writer, stmt query.Statement) {
	fmt.Fprintln(w, stmt.SQL)
	for i, a := range stmt.Args {
		if v, ok := a.(query.Value); ok {
			fmt.Fprintf(w, "  #%d: %v\n", i+1, v)
		} else {
			fmt.Fprintf(w, "  #%d: %#v\n", i+1, a)
		}
	}
}

func tableArg(env *cmdline.Env, args []string, minArgs int) (string, []string, error) {
	if len(args) < minArgs {
		return "", nil, env.UsageErrorf("at least %d arguments expected", minArgs)
	}
	return args[0], args[1:], nil
}

//////////////////////////////////////////
// Commands

func runDescribe(s *storage.Store, env *cmdline.Env, args []string) error {
	if len(args) != 1 {
		return env.UsageErrorf("exactly one argument expected")
	}
	t, err := s.Schema(context.Background(), args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Field\tType\tNull\tKey\tDefault\tExtra")
	for _, name := range t.Order {
		c, _ := t.Column(name)
		def := "NULL"
		if c.Default.Valid {
			def = c.Default.String
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Field, c.Type, c.Null, c.Key, def, c.Extra)
	}
	return tw.Flush()
}

func runFind(s *storage.Store, env *cmdline.Env, args []string) error {
	table, rest, err := tableArg(env, args, 1)
	if err != nil {
		return err
	}
	if flagFindOne && flagFindLast {
		return env.UsageErrorf("-one and -last are mutually exclusive")
	}
	f, err := parseFilter(rest)
	if err != nil {
		return env.UsageErrorf("%v", err)
	}
	ctx := context.Background()

	switch {
	case flagFindOne, flagFindLast:
		var row storage.Row
		if flagFindOne {
			row, err = s.FindOne(ctx, table, f)
		} else {
			row, err = s.FindLast(ctx, table, f)
		}
		if err != nil {
			return err
		}
		if row == nil {
			if logVerbose() {
				fmt.Fprintln(env.Stderr, "No matching row")
			}
			return nil
		}
		return printRows(env.Stdout, row)
	default:
		if flagFindLimit > 0 {
			f[query.LimitKey] = query.Int(int64(flagFindLimit))
		}
		if flagFindOffset > 0 {
			f[query.OffsetKey] = query.Int(int64(flagFindOffset))
		}
		rows, err := s.FindAll(ctx, table, f)
		if err != nil {
			return err
		}
		if logVerbose() {
			fmt.Fprintf(env.Stderr, "%d rows\n", len(rows))
		}
		return printRows(env.Stdout, rows...)
	}
}

func runInsert(s *storage.Store, env *cmdline.Env, args []string) error {
	table, rest, err := tableArg(env, args, 2)
	if err != nil {
		return err
	}
	vs, err := parseValues(rest)
	if err != nil {
		return env.UsageErrorf("%v", err)
	}
	if *flagDryRun {
		stmt, err := query.Insert(table, vs)
		if err != nil {
			return err
		}
		printStatement(env.Stdout, stmt)
		return nil
	}
	row, err := s.Insert(context.Background(), table, vs)
	if err != nil {
		return err
	}
	return printRows(env.Stdout, row)
}

func runUpdate(s *storage.Store, env *cmdline.Env, args []string) error {
	table, rest, err := tableArg(env, args, 2)
	if err != nil {
		return err
	}
	vs, err := parseValues(rest)
	if err != nil {
		return env.UsageErrorf("%v", err)
	}
	if *flagDryRun {
		stmt, err := query.Update(table, vs)
		if err != nil {
			return err
		}
		printStatement(env.Stdout, stmt)
		return nil
	}
	res, err := s.Update(context.Background(), table, vs)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(env.Stdout, "Updated %d rows\n", res.RowsAffected)
	return nil
}

func runDelete(s *storage.Store, env *cmdline.Env, args []string) error {
	table, rest, err := tableArg(env, args, 2)
	if err != nil {
		return err
	}
	f, err := parseFilter(rest)
	if err != nil {
		return env.UsageErrorf("%v", err)
	}
	if *flagDryRun {
		stmt, err := query.Delete(table, f)
		if err != nil {
			return err
		}
		printStatement(env.Stdout, stmt)
		return nil
	}
	res, err := s.Delete(context.Background(), table, f)
	if err != nil {
		return err
	}
	color.New(color.FgYellow).Fprintf(env.Stdout, "Deleted %d rows\n", res.RowsAffected)
	return nil
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	}
	return false
}

func runQuery(s *storage.Store, env *cmdline.Env, args []string) error {
	if len(args) < 1 {
		return env.UsageErrorf("at least 1 argument expected")
	}
	sql := args[0]
	qargs := make([]interface{}, 0, len(args)-1)
	for _, a := range args[1:] {
		qargs = append(qargs, query.Parse(a))
	}
	ctx := context.Background()

	if returnsRows(sql) {
		rows, err := s.Query(ctx, sql, qargs...)
		if err != nil {
			return err
		}
		return printRows(env.Stdout, rows...)
	}
	if *flagDryRun {
		printStatement(env.Stdout, query.Statement{SQL: sql, Args: qargs})
		return nil
	}
	res, err := s.Exec(ctx, sql, qargs...)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(env.Stdout, "%d rows affected\n", res.RowsAffected)
	return nil
}
