package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Health reports dependency status.
type Health struct {
	checks map[string]Pinger
}

// NewHealth creates the health handler over named dependencies.
func NewHealth(checks map[string]Pinger) *Health {
	return &Health{checks: checks}
}

// Check handles GET /health. Any failing dependency turns the response
// into a 503.
func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "dependencies": deps})
}
