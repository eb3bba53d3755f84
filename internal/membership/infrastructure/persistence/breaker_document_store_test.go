package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axyra/membership/internal/membership/domain"
)

type flakyStore struct {
	domain.DocumentStore
	err   error
	calls int
}

func (f *flakyStore) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return domain.Document{"id": id}, nil
}

func (f *flakyStore) CountWhere(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func testBreakerConfig() BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	return cfg
}

func TestBreakerDocumentStore_PassesThrough(t *testing.T) {
	inner := &flakyStore{}
	store := NewBreakerDocumentStore(inner, testBreakerConfig(), nil)

	doc, err := store.ReadDocument(context.Background(), domain.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["id"])

	count, err := store.CountWhere(context.Background(), domain.CollectionEmployees, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestBreakerDocumentStore_WrapsFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection reset")}
	store := NewBreakerDocumentStore(inner, testBreakerConfig(), nil)

	_, err := store.CountWhere(context.Background(), domain.CollectionEmployees, nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestBreakerDocumentStore_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{err: errors.New("timeout")}
	store := NewBreakerDocumentStore(inner, testBreakerConfig(), nil)

	for i := 0; i < 2; i++ {
		_, err := store.CountWhere(ctx, domain.CollectionEmployees, nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	calls := inner.calls
	_, err := store.CountWhere(ctx, domain.CollectionEmployees, nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, calls, inner.calls, "open breaker must not reach the store")
}

func TestBreakerDocumentStore_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{err: domain.ErrDocumentNotFound}
	store := NewBreakerDocumentStore(inner, testBreakerConfig(), nil)

	for i := 0; i < 5; i++ {
		_, err := store.ReadDocument(ctx, domain.CollectionUsers, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())
}
