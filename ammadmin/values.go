// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/amm0nite/ammonite-mysql/lib/query"
)

const assignmentsUsage = `<assignment> is <column>=<value>. Values are integers, decimals, NULL, or
text; prefix a value with ':' to force text (e.g. name=:42).`

// parseAssignments turns column=value arguments into a map of tagged values.
func parseAssignments(args []string) (map[string]query.Value, error) {
	out := make(map[string]query.Value, len(args))
	for _, arg := range args {
		col, val, ok := strings.Cut(arg, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected <column>=<value>", arg)
		}
		if _, dup := out[col]; dup {
			return nil, fmt.Errorf("column %q assigned more than once", col)
		}
		if strings.HasPrefix(val, ":") {
			out[col] = query.Text(val[1:])
		} else {
			out[col] = query.Parse(val)
		}
	}
	return out, nil
}

func parseFilter(args []string) (query.Filter, error) {
	m, err := parseAssignments(args)
	return query.Filter(m), err
}

func parseValues(args []string) (query.Values, error) {
	m, err := parseAssignments(args)
	return query.Values(m), err
}
