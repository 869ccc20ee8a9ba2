// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"

	"github.com/amm0nite/ammonite-mysql/lib/config"
	"github.com/amm0nite/ammonite-mysql/lib/jobqueue"
	"github.com/amm0nite/ammonite-mysql/lib/query"
)

// AsyncStore runs Store operations on a bounded pool of workers and reports
// each outcome to a callback.
//
// Every callback is called exactly once, with either a result or an error.
// Usually that happens on a worker goroutine; when the operation cannot be
// queued (jobqueue.ErrQueueFull, jobqueue.ErrStopped) it happens on the
// calling goroutine before the method returns.
type AsyncStore struct {
	store      *Store
	dispatcher jobqueue.Dispatcher
}

// NewAsync starts workers goroutines serving s. At most queueCap operations
// wait for a free worker; further ones fail with jobqueue.ErrQueueFull.
func NewAsync(s *Store, workers, queueCap int) *AsyncStore {
	return newAsync(s, jobqueue.NewDispatcher(workers, queueCap))
}

func newAsync(s *Store, d jobqueue.Dispatcher) *AsyncStore {
	return &AsyncStore{store: s, dispatcher: d}
}

// Store returns the underlying Store.
func (a *AsyncStore) Store() *Store {
	return a.store
}

// Stop waits for running operations and fails queued ones with
// jobqueue.ErrStopped. It does not close the Store.
func (a *AsyncStore) Stop() {
	a.dispatcher.Stop()
}

func submit[T any](a *AsyncStore, op func() (T, error), cb func(T, error)) {
	var zero T
	job := jobqueue.NewJob(func() {
		cb(op())
	}, func(err error) {
		cb(zero, err)
	})
	if err := a.dispatcher.Enqueue(job); err != nil {
		cb(zero, err)
	}
}

func (a *AsyncStore) Configure(cfg *config.Config, cb func(error)) {
	submit(a, func() (struct{}, error) {
		return struct{}{}, a.store.Configure(cfg)
	}, func(_ struct{}, err error) {
		cb(err)
	})
}

func (a *AsyncStore) FindAll(ctx context.Context, table string, f query.Filter, cb func([]Row, error)) {
	f = f.Clone()
	submit(a, func() ([]Row, error) {
		return a.store.FindAll(ctx, table, f)
	}, cb)
}

func (a *AsyncStore) FindOne(ctx context.Context, table string, f query.Filter, cb func(Row, error)) {
	f = f.Clone()
	submit(a, func() (Row, error) {
		return a.store.FindOne(ctx, table, f)
	}, cb)
}

func (a *AsyncStore) FindLast(ctx context.Context, table string, f query.Filter, cb func(Row, error)) {
	f = f.Clone()
	submit(a, func() (Row, error) {
		return a.store.FindLast(ctx, table, f)
	}, cb)
}

func (a *AsyncStore) Insert(ctx context.Context, table string, values query.Values, cb func(Row, error)) {
	values = values.Clone()
	submit(a, func() (Row, error) {
		return a.store.Insert(ctx, table, values)
	}, cb)
}

func (a *AsyncStore) Update(ctx context.Context, table string, values query.Values, cb func(Result, error)) {
	values = values.Clone()
	submit(a, func() (Result, error) {
		return a.store.Update(ctx, table, values)
	}, cb)
}

func (a *AsyncStore) Delete(ctx context.Context, table string, f query.Filter, cb func(Result, error)) {
	f = f.Clone()
	submit(a, func() (Result, error) {
		return a.store.Delete(ctx, table, f)
	}, cb)
}

func (a *AsyncStore) Query(ctx context.Context, sql string, args []interface{}, cb func([]Row, error)) {
	args = append([]interface{}(nil), args...)
	submit(a, func() ([]Row, error) {
		return a.store.Query(ctx, sql, args...)
	}, cb)
}

func (a *AsyncStore) Exec(ctx context.Context, sql string, args []interface{}, cb func(Result, error)) {
	args = append([]interface{}(nil), args...)
	submit(a, func() (Result, error) {
		return a.store.Exec(ctx, sql, args...)
	}, cb)
}
