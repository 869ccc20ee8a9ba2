// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"errors"
	"fmt"

	"github.com/amm0nite/ammonite-mysql/lib/query"
	"github.com/amm0nite/ammonite-mysql/lib/schema"
)

var (
	// Error returned for an unusable configuration, or when configuring a
	// Store that already has a connection.
	ErrConfiguration = errors.New("configuration error")

	// Error returned by every operation on a Store without a connection.
	ErrNotConfigured = fmt.Errorf("%w: not configured", ErrConfiguration)

	// Error wrapping failures to describe a table.
	ErrSchemaFetch = schema.ErrFetch

	// Error wrapping statements rejected by the database or the driver.
	ErrQuery = errors.New("query failed")

	// Error returned for input that cannot be turned into a statement.
	ErrValidation = query.ErrValidation
)

func queryError(err error) error {
	return fmt.Errorf("%w: %w", ErrQuery, err)
}
