package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistry_WorstStatusWins(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("database", DatabaseHealthChecker(func(context.Context) error { return nil }))
	r.Register("redis", RedisHealthChecker(func(context.Context) error { return errors.New("refused") }))

	health := r.GetOverallHealth(context.Background())
	require.Len(t, health.Checks, 2)
	assert.Equal(t, HealthStatusHealthy, health.Checks["database"].Status)
	assert.Equal(t, HealthStatusDegraded, health.Checks["redis"].Status)
	assert.Contains(t, health.Checks["redis"].Message, "refused")
	assert.Equal(t, HealthStatusDegraded, health.Status)

	r.Register("database", DatabaseHealthChecker(func(context.Context) error { return errors.New("down") }))
	assert.Equal(t, HealthStatusUnhealthy, r.GetOverallHealth(context.Background()).Status)
}

func TestHealthRegistry_Empty(t *testing.T) {
	r := NewHealthRegistry()

	health := r.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Empty(t, health.Checks)
	assert.Empty(t, r.Names())
}

func TestHealthRegistry_CheckHasDeadline(t *testing.T) {
	r := NewHealthRegistry()
	r.timeout = 20 * time.Millisecond
	r.Register("rabbitmq", RabbitMQHealthChecker(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results := r.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, results["rabbitmq"].Status)
	assert.Contains(t, results["rabbitmq"].Message, "deadline")
	assert.Equal(t, []string{"rabbitmq"}, r.Names())
}

func TestCircuitBreakerHealthChecker(t *testing.T) {
	state := "closed"
	check := CircuitBreakerHealthChecker("document-store", func() string { return state })

	assert.Equal(t, HealthStatusHealthy, check(context.Background()).Status)

	state = "open"
	result := check(context.Background())
	assert.Equal(t, HealthStatusDegraded, result.Status)
	assert.Contains(t, result.Message, "document-store")
}
