package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/axyra/membership/internal/membership/domain"
)

// BreakerConfig configures the document store circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "document-store",
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerDocumentStore guards a DocumentStore with a circuit breaker. Failures
// of the inner store and rejections by an open breaker are reported as
// domain.ErrStoreUnavailable.
type BreakerDocumentStore struct {
	inner   domain.DocumentStore
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerDocumentStore wraps inner.
func NewBreakerDocumentStore(inner domain.DocumentStore, cfg BreakerConfig, logger *slog.Logger) *BreakerDocumentStore {
	if logger == nil {
		logger = slog.Default()
	}

	s := &BreakerDocumentStore{inner: inner, logger: logger}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: isStoreSuccess,
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](settings)

	return s
}

// State returns the current breaker state.
func (s *BreakerDocumentStore) State() gobreaker.State {
	return s.breaker.State()
}

// ReadDocument loads a single document.
func (s *BreakerDocumentStore) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.ReadDocument(ctx, collection, id)
	})
	if err != nil {
		return nil, err
	}
	doc, _ := result.(domain.Document)
	return doc, nil
}

// WriteDocument merges patch into a document.
func (s *BreakerDocumentStore) WriteDocument(ctx context.Context, collection, id string, patch domain.Document) error {
	_, err := s.execute(func() (any, error) {
		return nil, s.inner.WriteDocument(ctx, collection, id, patch)
	})
	return err
}

// CountWhere counts documents matching filter.
func (s *BreakerDocumentStore) CountWhere(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.CountWhere(ctx, collection, filter)
	})
	if err != nil {
		return 0, err
	}
	count, _ := result.(int64)
	return count, nil
}

// SumWhere sums a numeric field over documents matching filter.
func (s *BreakerDocumentStore) SumWhere(ctx context.Context, collection string, filter domain.Filter, field string) (float64, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.SumWhere(ctx, collection, filter, field)
	})
	if err != nil {
		return 0, err
	}
	total, _ := result.(float64)
	return total, nil
}

// ListIDs returns every document id in a collection.
func (s *BreakerDocumentStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	result, err := s.execute(func() (any, error) {
		return s.inner.ListIDs(ctx, collection)
	})
	if err != nil {
		return nil, err
	}
	ids, _ := result.([]string)
	return ids, nil
}

func (s *BreakerDocumentStore) execute(fn func() (any, error)) (any, error) {
	result, err := s.breaker.Execute(fn)
	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err)
	}
	if isStoreSuccess(err) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

// isStoreSuccess treats caller mistakes and cancellations as healthy
// responses so they never trip the breaker.
func isStoreSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrDocumentNotFound) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
