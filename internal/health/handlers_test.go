package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/health"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func ready(t *testing.T, handler health.Handler) (int, readyBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyWithoutCheckers(t *testing.T) {
	code, body := ready(t, health.Handler{})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
}

func TestReadyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	handler := health.Handler{Checkers: []health.Checker{health.Redis{Client: client}}, Timeout: time.Second}

	code, body := ready(t, handler)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Checks["redis"])

	mr.Close()
	code, body = ready(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Status)
	require.NotEqual(t, "ok", body.Checks["redis"])
}

func TestReadyFailure(t *testing.T) {
	handler := health.Handler{Checkers: []health.Checker{
		stubChecker{name: "cache"},
		stubChecker{name: "store", err: errors.New("store down")},
	}}
	code, body := ready(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", body.Checks["cache"])
	require.Equal(t, "store down", body.Checks["store"])
}
