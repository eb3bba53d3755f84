package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axyra/membership/internal/membership/domain"
)

func exerciseKeyValueStore(t *testing.T, store domain.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "axyra:test:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "axyra:test:key", "one"))
	require.NoError(t, store.Set(ctx, "axyra:test:key", "two"))

	value, ok, err := store.Get(ctx, "axyra:test:key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", value)

	require.NoError(t, store.SetPersistent(ctx, "axyra:test:key", "three"))
	value, ok, err = store.Get(ctx, "axyra:test:key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "three", value)

	require.NoError(t, store.Remove(ctx, "axyra:test:key"))
	require.NoError(t, store.Remove(ctx, "axyra:test:key"))

	_, ok, err = store.Get(ctx, "axyra:test:key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteKeyValueStore(t *testing.T) {
	exerciseKeyValueStore(t, NewSQLiteKeyValueStore(setupSQLiteDB(t)))
}

func TestRedisKeyValueStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	exerciseKeyValueStore(t, NewRedisKeyValueStore(client, "membership-test", 0))
}

func TestRedisKeyValueStore_PersistentEntriesHaveNoTTL(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisKeyValueStore(client, "membership-test", time.Minute)
	defer store.Remove(ctx, "overrides")

	require.NoError(t, store.Set(ctx, "overrides", "cached"))
	ttl, err := client.TTL(ctx, "membership-test:overrides").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.SetPersistent(ctx, "overrides", "config"))
	ttl, err = client.TTL(ctx, "membership-test:overrides").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestRedisKeyValueStore_KeyPrefix(t *testing.T) {
	assert.Equal(t, "ns:k", NewRedisKeyValueStore(nil, "ns", 0).key("k"))
	assert.Equal(t, "k", NewRedisKeyValueStore(nil, "", 0).key("k"))
}
