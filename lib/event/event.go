// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import (
	"time"
)

// Typed record of a single statement sent to the database. These are
// JSON-encoded by JsonSink.
type Event struct {
	// SQL text with placeholders. Bound values are never recorded.
	Statement string
	// Number of bound arguments.
	Args int
	// Wall time spent in the driver, in microseconds.
	DurationUs int64
	// Driver error, if the statement failed.
	Error string `json:",omitempty"`
	// Unix time, the number of nanoseconds elapsed since January 1, 1970 UTC.
	Timestamp int64
}

func New(statement string, args int, took time.Duration, err error) Event {
	ev := Event{
		Statement:  statement,
		Args:       args,
		DurationUs: took.Microseconds(),
		Timestamp:  time.Now().UnixNano(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Failed reports whether the statement returned an error.
func (e Event) Failed() bool {
	return e.Error != ""
}

// Stream for writing Events to.
type Sink interface {
	Write(events ...Event) error
}

// Discard is a Sink that drops every Event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(...Event) error { return nil }
