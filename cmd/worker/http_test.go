package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/internal/membership/application/uisync"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body
}

func okPing(context.Context) error { return nil }

func TestHealthz_Healthy(t *testing.T) {
	registry := observability.NewHealthRegistry()
	registry.Register("database", observability.DatabaseHealthChecker(okPing))

	mux := newMux(probes{
		health:  registry,
		ping:    okPing,
		refresh: func() application.SchedulerStats { return application.SchedulerStats{Runs: 3, LastRefreshed: 12} },
		clients: func() int { return 2 },
	}, nil)

	code, body := get(t, mux, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["ws_clients"])
	assert.Contains(t, body["checks"], "database")
	assert.NotNil(t, body["refresh"])
}

func TestHealthz_DegradedStillServes(t *testing.T) {
	registry := observability.NewHealthRegistry()
	registry.Register("redis", observability.RedisHealthChecker(func(context.Context) error { return errors.New("timeout") }))

	code, body := get(t, newMux(probes{health: registry, ping: okPing}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthz_UnhealthyDatabase(t *testing.T) {
	registry := observability.NewHealthRegistry()
	registry.Register("database", observability.DatabaseHealthChecker(func(context.Context) error { return errors.New("refused") }))

	code, body := get(t, newMux(probes{health: registry, ping: okPing}, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestReadyz(t *testing.T) {
	registry := observability.NewHealthRegistry()

	code, body := get(t, newMux(probes{health: registry, ping: okPing}, nil), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	failing := probes{health: registry, ping: func(context.Context) error { return errors.New("db down") }}
	code, body = get(t, newMux(failing, nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "db down", body["error"])
}

func TestMux_RejectsOtherMethods(t *testing.T) {
	mux := newMux(probes{health: observability.NewHealthRegistry(), ping: okPing}, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebsocketHandler_MountedOnlyWithTokens(t *testing.T) {
	hub := uisync.NewHub(nil, nil)

	assert.Nil(t, websocketHandler(&config.Config{}, hub, nil, slog.Default()))

	mux := newMux(probes{health: observability.NewHealthRegistry(), ping: okPing}, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	handler := websocketHandler(&config.Config{WSAuthTokens: map[string]string{"tok": "user-1"}}, hub, nil, slog.Default())
	require.NotNil(t, handler)

	mux = newMux(probes{health: observability.NewHealthRegistry(), ping: okPing}, handler)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
