// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"

	"github.com/amm0nite/ammonite-mysql/lib/log"
)

// Cache holds the layout of every table described through it. It is safe
// for concurrent use. Concurrent first lookups of the same table share a
// single SHOW COLUMNS query.
type Cache struct {
	q sqlx.QueryerContext

	// mu guards tables, which is not safe for concurrent use on its own.
	mu     sync.Mutex
	tables *lru.Cache

	group singleflight.Group
}

// NewCache returns an empty cache that describes tables through q.
func NewCache(q sqlx.QueryerContext) *Cache {
	return &Cache{
		q: q,
		// Zero means no limit: entries are never evicted.
		tables: lru.New(0),
	}
}

// Lookup returns the cached layout of table without any I/O.
func (c *Cache) Lookup(table string) (*Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tables.Get(table)
	if !ok {
		return nil, false
	}
	return v.(*Table), true
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables.Len()
}

// Ensure returns the layout of table, describing it on first use. Failures
// are not cached; the next call tries again. The query runs detached from the
// cancellation of the caller that started it, so callers sharing it only
// give up when their own ctx is done.
func (c *Cache) Ensure(ctx context.Context, table string) (*Table, error) {
	if t, ok := c.Lookup(table); ok {
		return t, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(table, func() (interface{}, error) {
		// Another flight may have finished between Lookup and DoChan.
		if t, ok := c.Lookup(table); ok {
			return t, nil
		}
		t, err := Describe(fetchCtx, c.q, table)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables.Add(table, t)
		c.mu.Unlock()
		log.Debugf("Cached schema of %s with %d columns.", table, len(t.Order))
		return t, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			log.Debugf("Shared schema lookup of %s.", table)
		}
		return r.Val.(*Table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
