package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

type staticOutboxStats struct {
	domain.OutboxRepository
	stats domain.OutboxStats
	err   error
}

func (s *staticOutboxStats) Stats() (domain.OutboxStats, error) {
	return s.stats, s.err
}

func TestHandlerAggregatesChecks(t *testing.T) {
	handler := NewHandler("test")
	handler.Register("gateway", NewCheckFunc("gateway", func() error { return nil }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "test", resp.Version)
	require.Equal(t, StatusHealthy, resp.Checks["gateway"].Status)
}

func TestHandlerUnhealthyComponent(t *testing.T) {
	handler := NewHandler("test")
	handler.Register("storage", NewCheckFunc("storage", func() error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusUnhealthy, resp.Status)
	require.Equal(t, "connection refused", resp.Checks["storage"].Message)
}

func TestOutboxBacklogDegradesButStaysReady(t *testing.T) {
	repo := &staticOutboxStats{stats: domain.OutboxStats{PendingCount: 50}}

	handler := NewHandler("test")
	handler.Register("outbox", NewOutboxBacklogChecker(repo, 10))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusDegraded, resp.Status)
	require.Contains(t, resp.Checks["outbox"].Message, "backlog 50")
}

func TestOutboxBacklogStatsError(t *testing.T) {
	repo := &staticOutboxStats{err: errors.New("stats unavailable")}

	checker := NewOutboxBacklogChecker(repo, 10)
	check := checker.Check()

	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, "stats unavailable", check.Message)
}

func TestBreakerCheckerStates(t *testing.T) {
	state := "closed"
	checker := NewBreakerChecker("gateway", func() string { return state })

	require.Equal(t, StatusHealthy, checker.Check().Status)

	state = "open"
	check := checker.Check()
	require.Equal(t, StatusDegraded, check.Status)
	require.Equal(t, "circuit breaker open", check.Message)
}
