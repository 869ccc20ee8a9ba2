// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log exports three diferent loggers: ErrorLogger, WarnLogger, and
// DebugLogger, and convenience methods for logging messages to different
// loggers depending on the level.
//
// By default, errors and warnings are written to stderr and debug messages are
// discarded. SetVerbose(true) sends debug messages to stderr as well. Level
// prefixes are colored when stderr is a terminal.
//
// Calling "InitSyslogLoggers", will create new loggers which will log to both
// syslog and stderr. The function will panic if syslog is unavailable.

package log

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"log/syslog"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	errorPrefix = color.New(color.FgRed, color.Bold).Sprint("ERROR: ")
	warnPrefix  = color.New(color.FgYellow).Sprint("WARN: ")
	debugPrefix = color.New(color.FgCyan).Sprint("DEBUG: ")
)

func init() {
	ErrorLogger = newLogger(os.Stderr, errorPrefix)
	WarnLogger = newLogger(os.Stderr, warnPrefix)
	DebugLogger = newLogger(ioutil.Discard, debugPrefix)
}

var (
	ErrorLogger *log.Logger
	WarnLogger  *log.Logger
	DebugLogger *log.Logger

	mu      sync.Mutex
	verbose bool
)

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		DebugLogger.SetOutput(os.Stderr)
	} else {
		DebugLogger.SetOutput(ioutil.Discard)
	}
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects all three loggers to w. Debug output still depends on
// SetVerbose.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	ErrorLogger.SetOutput(w)
	WarnLogger.SetOutput(w)
	if verbose {
		DebugLogger.SetOutput(w)
	}
}

// InitSyslogLoggers creates loggers that will log to syslog as well as stderr.
// It will panic if syslog is unavailable.
func InitSyslogLoggers(tag string) {
	ErrorLogger = newLogger(newSyslogStderrWriter(syslog.LOG_ERR, tag), "ERROR: ")
	WarnLogger = newLogger(newSyslogStderrWriter(syslog.LOG_WARNING, tag), "WARN: ")
	DebugLogger = newLogger(newSyslogStderrWriter(syslog.LOG_DEBUG, tag), "DEBUG: ")
}

// Debug functions use DebugLogger.
func Debug(args ...interface{}) {
	DebugLogger.Print(args...)
}

func Debugf(s string, args ...interface{}) {
	DebugLogger.Printf(s, args...)
}

// Warn functions use WarnLogger.
func Warn(args ...interface{}) {
	WarnLogger.Print(args...)
}

func Warnf(s string, args ...interface{}) {
	WarnLogger.Printf(s, args...)
}

// Error functions use ErrorLogger.
func Error(args ...interface{}) {
	ErrorLogger.Print(args...)
}

func Errorf(s string, args ...interface{}) {
	ErrorLogger.Printf(s, args...)
}

func Panic(args ...interface{}) {
	ErrorLogger.Panic(args...)
}

func Panicf(s string, args ...interface{}) {
	ErrorLogger.Panicf(s, args...)
}

// Helper method to create a logger with given writer.
func newLogger(w io.Writer, prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags)
}

// Helper method to create a writer that writes to syslog and stderr.
func newSyslogStderrWriter(level syslog.Priority, tag string) io.Writer {
	if syslogWriter, err := syslog.New(level|syslog.LOG_USER, tag); err != nil {
		panic(fmt.Errorf("Error connecting to syslog: %v", err))
	} else {
		return io.MultiWriter(syslogWriter, os.Stderr)
	}
}
