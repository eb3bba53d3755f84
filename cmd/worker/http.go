package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/pkg/observability"
)

const readyTimeout = 2 * time.Second

// probes serves the worker's liveness and readiness endpoints.
type probes struct {
	health  *observability.HealthRegistry
	ping    func(ctx context.Context) error
	refresh func() application.SchedulerStats
	clients func() int
}

func newMux(p probes, ws http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", p.healthz)
	mux.HandleFunc("GET /readyz", p.readyz)
	if ws != nil {
		mux.Handle("/ws", ws)
	}
	return mux
}

// healthz reports every registered check plus refresh and socket stats.
// Only an unhealthy result fails the probe; degraded still answers 200.
func (p probes) healthz(w http.ResponseWriter, r *http.Request) {
	overall := p.health.GetOverallHealth(r.Context())
	body := map[string]any{
		"status": overall.Status,
		"checks": overall.Checks,
	}
	if p.refresh != nil {
		body["refresh"] = p.refresh()
	}
	if p.clients != nil {
		body["ws_clients"] = p.clients()
	}

	code := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

// readyz answers 200 once the database responds.
func (p probes) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := p.ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
