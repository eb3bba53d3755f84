// Package postgres provides the server-mode backend on a pgx pool.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/axyra/membership/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverPostgres, NewConnection)
}

// Connection is a pgx connection pool.
type Connection struct {
	pool *pgxpool.Pool
}

// NewConnection parses cfg.URL, applies MaxConns and verifies the pool with
// a ping before returning it.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required for PostgreSQL")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", poolCfg.ConnConfig.Database, err)
	}
	return &Connection{pool: pool}, nil
}

func (c *Connection) Pool() *pgxpool.Pool            { return c.pool }
func (c *Connection) Driver() database.Driver        { return database.DriverPostgres }
func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

// SQLDB exposes the pool through database/sql for the migration runner.
// Closing the returned handle does not close the pool.
func (c *Connection) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(c.pool)
}

// Close releases every pooled connection.
func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}
