// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

// JsonSink writes each statement Event as one line of JSON. A batch passed to
// Write reaches the underlying writer in a single Write call, followed by a
// Flush when the writer has one. It is safe for concurrent use.
type JsonSink struct {
	failuresOnly bool

	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*JsonSink)(nil)

// NewJsonSink returns a sink writing to w. With failuresOnly set, statements
// that succeeded are dropped.
func NewJsonSink(w io.Writer, failuresOnly bool) *JsonSink {
	return &JsonSink{w: w, failuresOnly: failuresOnly}
}

func (s *JsonSink) Write(events ...Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if s.failuresOnly && !ev.Failed() {
			continue
		}
		// Encode terminates each event with a newline.
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	if buf.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
