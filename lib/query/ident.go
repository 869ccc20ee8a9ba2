// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"fmt"
	"regexp"
	"strings"
)

var identPart = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// QuoteIdent backtick-quotes a table or column name. Dotted names are quoted
// part by part. Names outside the allow-list pattern are rejected instead of
// escaped.
func QuoteIdent(name string) (string, error) {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if !identPart.MatchString(p) {
			return "", fmt.Errorf("%w: invalid identifier %q", ErrValidation, name)
		}
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, "."), nil
}
