// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Admin tool for managing a MySQL database through the ammonite storage layer.

package main

import (
	"flag"

	"v.io/x/lib/cmdline"
	"v.io/x/lib/dbutil"

	"github.com/amm0nite/ammonite-mysql/lib/config"
)

func main() {
	cmdline.Main(cmdAmmAdmin)
}

var cmdAmmAdmin = &cmdline.Command{
	Name:  "ammadmin",
	Short: "MySQL table management tool",
	Long: `
Tool for managing a MySQL database: schema migrations, fixture loading, and
table-oriented CRUD operations that fill in createdAt, updatedAt and uid
columns the way the storage library does.
`,
	Children: []*cmdline.Command{
		cmdMigrate,
		cmdFixtures,
		cmdDescribe,
		cmdFind,
		cmdInsert,
		cmdUpdate,
		cmdDelete,
		cmdQuery,
	},
}

var (
	flagDryRun   = flag.Bool("n", false, "Show necessary database modifications, but do not apply them.")
	flagVerbose  = flag.Bool("v", false, "Show more verbose output.")
	flagQueryLog = flag.Bool("querylog", false, "Write a JSON line to stderr for every statement sent to the database.")

	// Path to JSON configuration file, as described in lib/config.
	flagConfig = flag.String("config", "", "Path to database configuration file. "+config.ConfigFileDescription)

	// Path to SQL configuration file, as described in v.io/x/lib/dbutil/mysql.go. Takes precedence over -config.
	flagSQLConf = flag.String("sqlconf", "", "Path to SQL configuration file. "+dbutil.SqlConfigFileDescription)
)

func logVerbose() bool {
	return *flagDryRun || *flagVerbose
}
