// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DatetimeFormat is the canonical text form of Timestamp values
// (YYYY-MM-DD HH:mm:ss). Timestamps are rendered in UTC.
const DatetimeFormat = "2006-01-02 15:04:05"

// FormatTime renders t in DatetimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DatetimeFormat)
}

// Kind tags the type of a Value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTimestamp
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	case KindRaw:
		return "raw"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a column value whose kind is decided where it is constructed.
// The zero Value is the empty Text.
type Value struct {
	kind Kind
	text string
	num  interface{} // int64 or float64
	ts   time.Time
	raw  interface{}
}

func Text(s string) Value { return Value{kind: KindText, text: s} }

func Int(n int64) Value { return Value{kind: KindNumber, num: n} }

func Float(f float64) Value { return Value{kind: KindNumber, num: f} }

func Time(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Raw passes v to the driver unchanged.
func Raw(v interface{}) Value { return Value{kind: KindRaw, raw: v} }

// Null is the SQL NULL.
func Null() Value { return Raw(nil) }

func (v Value) Kind() Kind { return v.kind }

// Arg returns the driver argument bound for v.
func (v Value) Arg() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindTimestamp:
		return FormatTime(v.ts)
	case KindRaw:
		return v.raw
	}
	return v.text
}

// Cast converts a Timestamp to its canonical Text form. Other kinds are
// returned unchanged.
func (v Value) Cast() Value {
	if v.kind == KindTimestamp {
		return Text(FormatTime(v.ts))
	}
	return v
}

// AsInt interprets v as an integer: integral numbers and decimal text qualify.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindNumber:
		switch n := v.num.(type) {
		case int64:
			return n, true
		case float64:
			if n == float64(int64(n)) {
				return int64(n), true
			}
		}
	case KindText:
		if n, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.kind, v.Arg())
}

// Parse tags a string typed by a person: NULL, integers and decimals get
// their own kinds, anything else is Text.
func Parse(s string) Value {
	if s == "NULL" {
		return Null()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return Text(s)
}

// FromInterface tags a decoded value, such as an element of a JSON object
// decoded with UseNumber. Unknown types become Raw.
func FromInterface(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Text(t.String())
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case time.Time:
		return Time(t)
	}
	return Raw(x)
}
