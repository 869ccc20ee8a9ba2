// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config describes how to reach the MySQL database and builds the
// driver connection string from that description.
//
// A configuration must name the host, user, password and database. It can be
// built directly, from a string map, or from a JSON file of the form described
// by ConfigFileDescription.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	// DefaultPort is used when Port is zero.
	DefaultPort = 3306
	// DefaultPoolSize is the connection limit used when PoolSize is zero.
	DefaultPoolSize = 10
)

// RequiredKeys lists the configuration keys that must be present, in the
// order they are checked.
var RequiredKeys = []string{"user", "host", "password", "database"}

var (
	// ErrInvalid is returned for a nil or unparseable configuration.
	ErrInvalid = errors.New("invalid config")

	// ErrMissingKey is wrapped by errors naming an absent required key.
	ErrMissingKey = errors.New("missing config property")
)

// Description of the configuration file format.
const ConfigFileDescription = `File must contain a JSON object of the following form:
   {
    "host": "<hostname>", (required; may include ":<port>")
    "user": "<user>", (required)
    "password": "<password>", (required; may be empty)
    "database": "<database name>", (required)
    "port": <port>, (optional, defaults to 3306)
    "poolSize": <connections>, (optional, defaults to 10)
    "params": { "<dsn parameter>": "<value>" ... } (optional extra driver parameters)
   }`

// Config holds the connection parameters of a single database.
type Config struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`

	Port     int               `json:"port,omitempty"`
	PoolSize int               `json:"poolSize,omitempty"`
	Params   map[string]string `json:"params,omitempty"`

	// present holds the required keys seen by FromMap or Parse. It is nil for
	// a Config built as a literal.
	present map[string]bool
}

func missing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingKey, key)
}

// Validate reports the first missing required key. For a Config loaded by
// FromMap or Parse a key is missing only when it was absent from the input,
// so an empty password is accepted. A literal Config cannot tell absent from
// empty; there host, user and database must be non-empty and the password may
// be left blank.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalid
	}
	for _, key := range RequiredKeys {
		if c.present != nil {
			if !c.present[key] {
				return missing(key)
			}
		} else if key != "password" && c.value(key) == "" {
			return missing(key)
		}
	}
	if c.Port < 0 {
		return fmt.Errorf("%w: port %d", ErrInvalid, c.Port)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("%w: poolSize %d", ErrInvalid, c.PoolSize)
	}
	return nil
}

func (c *Config) value(key string) string {
	switch key {
	case "host":
		return c.Host
	case "user":
		return c.User
	case "password":
		return c.Password
	case "database":
		return c.Database
	}
	return ""
}

// MaxConns returns the pool size, applying the default.
func (c *Config) MaxConns() int {
	if c.PoolSize == 0 {
		return DefaultPoolSize
	}
	return c.PoolSize
}

// Addr returns host:port. A host that already carries a port is used as is.
func (c *Config) Addr() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// DSN builds the go-sql-driver/mysql data source name. Times are parsed into
// time.Time and both the session and the driver use UTC.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Addr()
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Collation = "utf8mb4_general_ci"
	mc.Params = map[string]string{
		"time_zone": "'+00:00'",
	}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// FromMap builds a Config from string keys, failing on the first absent
// required key. Present but empty values are accepted.
func FromMap(m map[string]string) (*Config, error) {
	if m == nil {
		return nil, ErrInvalid
	}
	present := make(map[string]bool, len(RequiredKeys))
	for _, key := range RequiredKeys {
		if _, ok := m[key]; !ok {
			return nil, missing(key)
		}
		present[key] = true
	}
	cfg := &Config{
		Host:     m["host"],
		User:     m["user"],
		Password: m["password"],
		Database: m["database"],
		present:  present,
	}
	var err error
	if cfg.Port, err = optionalInt(m, "port"); err != nil {
		return nil, err
	}
	if cfg.PoolSize, err = optionalInt(m, "poolSize"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optionalInt(m map[string]string, key string) (int, error) {
	s, ok := m[key]
	if !ok || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return n, nil
}

// Parse decodes a JSON configuration, checking that every required key is
// present before decoding into a Config.
func Parse(data []byte) (*Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if raw == nil {
		return nil, ErrInvalid
	}
	present := make(map[string]bool, len(RequiredKeys))
	for _, key := range RequiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, missing(key)
		}
		present[key] = true
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.present = present
	return &cfg, nil
}

// ParseFromFile reads and parses a JSON configuration file.
func ParseFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading config from %q: %v", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed parsing config from %q: %w", path, err)
	}
	return cfg, nil
}
