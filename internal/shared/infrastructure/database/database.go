// Package database opens the storage backends behind the membership stores:
// PostgreSQL in server mode and a SQLite file in local mode. Backends register
// an Opener from their package init.
package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string { return string(d) }

// IsValid reports whether d is a known backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// Connection is an open database handle.
type Connection interface {
	Driver() Driver
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver
	// URL is a PostgreSQL DSN, or a sqlite:// URL in local mode.
	URL string
	// SQLitePath overrides the path taken from a sqlite:// URL.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool. Zero keeps the pgx default.
	MaxConns int
}

// Opener creates a connection for one backend.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register installs the opener for driver, replacing any previous one.
func Register(driver Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// NewConnection resolves the backend for cfg and opens it.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	if cfg.Driver == "" || cfg.Driver == "auto" {
		cfg.Driver = DetectDriver(cfg.URL)
	}
	if !cfg.Driver.IsValid() {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if cfg.Driver == DriverSQLite && cfg.SQLitePath == "" {
		cfg.SQLitePath = strings.TrimPrefix(cfg.URL, sqliteScheme)
	}

	openersMu.RLock()
	open := openers[cfg.Driver]
	openersMu.RUnlock()
	if open == nil {
		return nil, fmt.Errorf("%s driver not registered", cfg.Driver)
	}
	return open(ctx, cfg)
}

const sqliteScheme = "sqlite://"

// DetectDriver infers the backend from a connection string. An empty URL
// selects SQLite; anything unrecognized is treated as PostgreSQL.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, sqliteScheme), strings.HasPrefix(url, "file:"):
		return DriverSQLite
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(url, ext) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}
