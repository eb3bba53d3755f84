package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "LOG_LEVEL", "AXYRA_USER_ID",
	"DATABASE_URL", "SQLITE_PATH", "AXYRA_LOCAL_MODE", "DATABASE_MAX_CONNS",
	"REDIS_URL", "REDIS_KEY_PREFIX", "CACHE_TTL",
	"RABBITMQ_URL", "EVENTS_EXCHANGE", "UISYNC_QUEUE",
	"BREAKER_FAILURE_THRESHOLD", "BREAKER_TIMEOUT",
	"WORKER_HEALTH_ADDR", "USAGE_REFRESH_INTERVAL", "WS_ALLOWED_ORIGINS",
	"WS_AUTH_TOKENS", "SUBSCRIPTION_GRACE_PERIOD",
	"MCP_ADDR", "MCP_AUTH_TOKEN",
}

// setEnv blanks every configuration variable for the test, then applies env.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.UserID)

	assert.True(t, cfg.LocalMode, "no DATABASE_URL means local mode")
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 10, cfg.MaxDBConns)

	assert.Equal(t, "axyra", cfg.RedisKeyPrefix)
	assert.Zero(t, cfg.CacheTTL)
	assert.True(t, cfg.EventsBrokerless)
	assert.Equal(t, "axyra.membership.events", cfg.EventsExchange)
	assert.Equal(t, "axyra.membership.uisync", cfg.UISyncQueue)

	assert.Equal(t, uint32(5), cfg.BreakerFailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)

	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)
	assert.Equal(t, 5*time.Minute, cfg.UsageRefreshInterval)
	assert.Nil(t, cfg.WSAllowedOrigins)
	assert.Nil(t, cfg.WSAuthTokens)
	assert.Equal(t, 7*24*time.Hour, cfg.GracePeriod)

	assert.Equal(t, "0.0.0.0:8082", cfg.MCPAddr)
	assert.Empty(t, cfg.MCPAuthToken)
}

func TestLoad_ServerMode(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":                   "production",
		"LOG_LEVEL":                 "WARN",
		"DATABASE_URL":              "postgres://axyra:secret@db:5432/axyra",
		"REDIS_URL":                 "redis://cache:6379/0",
		"RABBITMQ_URL":              "amqp://guest:guest@mq:5672/",
		"USAGE_REFRESH_INTERVAL":    "90s",
		"WS_ALLOWED_ORIGINS":        "app.axyra.co, admin.axyra.co,",
		"BREAKER_FAILURE_THRESHOLD": "3",
		"WS_AUTH_TOKENS":            "user-1:tok-a, user-2:tok-b,",
		"SUBSCRIPTION_GRACE_PERIOD": "72h",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.LocalMode)
	assert.False(t, cfg.EventsBrokerless)
	assert.Equal(t, 90*time.Second, cfg.UsageRefreshInterval)
	assert.Equal(t, []string{"app.axyra.co", "admin.axyra.co"}, cfg.WSAllowedOrigins)
	assert.Equal(t, uint32(3), cfg.BreakerFailureThreshold)
	assert.Equal(t, map[string]string{"tok-a": "user-1", "tok-b": "user-2"}, cfg.WSAuthTokens)
	assert.Equal(t, 72*time.Hour, cfg.GracePeriod)
}

func TestLoad_MalformedValuesAreReported(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_MAX_CONNS":        "lots",
		"USAGE_REFRESH_INTERVAL":    "often",
		"BREAKER_FAILURE_THRESHOLD": "-2",
		"AXYRA_LOCAL_MODE":          "maybe",
		"WS_AUTH_TOKENS":            "user-1:tok-a,tok-b",
	})

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"DATABASE_MAX_CONNS", "USAGE_REFRESH_INTERVAL", "BREAKER_FAILURE_THRESHOLD", "AXYRA_LOCAL_MODE", "WS_AUTH_TOKENS"} {
		assert.ErrorContains(t, err, key)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown environment", env: map[string]string{"APP_ENV": "staging"}},
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "refresh interval too short", env: map[string]string{"USAGE_REFRESH_INTERVAL": "10ms"}},
		{name: "zero breaker threshold", env: map[string]string{"BREAKER_FAILURE_THRESHOLD": "0"}},
		{name: "server mode without database", env: map[string]string{"AXYRA_LOCAL_MODE": "false"}},
		{name: "negative grace period", env: map[string]string{"SUBSCRIPTION_GRACE_PERIOD": "-1h"}},
		{name: "token shared by two users", env: map[string]string{"WS_AUTH_TOKENS": "user-1:tok,user-2:tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
