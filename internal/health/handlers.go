package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/storefront-api/internal/common"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness flag. It is cleared when shutdown begins.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker is a dependency probed for readiness.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Redis probes a Redis client with PING.
type Redis struct {
	Client *redis.Client
}

// Name implements Checker.
func (Redis) Name() string { return "redis" }

// Check implements Checker.
func (c Redis) Check(ctx context.Context) error {
	if c.Client == nil {
		return errors.New("redis client not configured")
	}
	return c.Client.Ping(ctx).Err()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checkers []Checker
	Timeout  time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Without checkers the service is ready
// as long as it is not shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "shutting_down"})
		return
	}
	checks := make(map[string]string, len(h.Checkers))
	healthy := true
	for _, c := range h.Checkers {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := c.Check(ctx)
		cancel()
		if err != nil {
			checks[c.Name()] = err.Error()
			healthy = false
			continue
		}
		checks[c.Name()] = "ok"
	}
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	common.JSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.Timeout
}
