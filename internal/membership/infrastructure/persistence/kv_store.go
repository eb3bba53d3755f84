package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/axyra/membership/internal/shared/infrastructure/database"
)

// SQLiteKeyValueStore persists cache entries in the kv_entries table.
type SQLiteKeyValueStore struct {
	db *sql.DB
}

// NewSQLiteKeyValueStore creates a new key-value store.
func NewSQLiteKeyValueStore(db *sql.DB) *SQLiteKeyValueStore {
	return &SQLiteKeyValueStore{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *SQLiteKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if database.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLiteKeyValueStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	return err
}

// SetPersistent stores value under key. Entries in the table never expire.
func (s *SQLiteKeyValueStore) SetPersistent(ctx context.Context, key, value string) error {
	return s.Set(ctx, key, value)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *SQLiteKeyValueStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return err
}

// PostgresKeyValueStore persists cache entries in the kv_entries table.
type PostgresKeyValueStore struct {
	pool *pgxpool.Pool
}

// NewPostgresKeyValueStore creates a new key-value store.
func NewPostgresKeyValueStore(pool *pgxpool.Pool) *PostgresKeyValueStore {
	return &PostgresKeyValueStore{pool: pool}
}

// Get returns the stored value and whether the key exists.
func (s *PostgresKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if database.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *PostgresKeyValueStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

// SetPersistent stores value under key. Entries in the table never expire.
func (s *PostgresKeyValueStore) SetPersistent(ctx context.Context, key, value string) error {
	return s.Set(ctx, key, value)
}

// Remove deletes key.
func (s *PostgresKeyValueStore) Remove(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}

// RedisKeyValueStore keeps cache entries in Redis under a namespace prefix.
type RedisKeyValueStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisKeyValueStore creates a Redis-backed store. A zero ttl keeps
// entries until they are removed.
func NewRedisKeyValueStore(client *redis.Client, prefix string, ttl time.Duration) *RedisKeyValueStore {
	return &RedisKeyValueStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisKeyValueStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

// Get returns the stored value and whether the key exists.
func (s *RedisKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key with the store's ttl.
func (s *RedisKeyValueStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// SetPersistent stores value under key without a ttl, clearing any previous one.
func (s *RedisKeyValueStore) SetPersistent(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// Remove deletes key.
func (s *RedisKeyValueStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
