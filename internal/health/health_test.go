package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/clock"
)

func TestHealthRegistry(t *testing.T) {
	checker := NewChecker()
	checker.Register("router", func(ctx context.Context) Check {
		return Check{Status: StatusHealthy, Message: "OK"}
	})

	report := checker.Check(context.Background())
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "router", report.Checks["router"].Name)
}

func TestOverallStatus(t *testing.T) {
	checker := NewChecker()
	checker.Register("ok", FromError("fine", StatusUnhealthy, func(context.Context) error { return nil }))
	checker.Register("audit", FromError("fine", StatusDegraded, func(context.Context) error { return fmt.Errorf("db locked") }))

	report := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "db locked", report.Checks["audit"].Message)

	checker.Register("router", FromError("reachable", StatusUnhealthy, func(context.Context) error { return fmt.Errorf("timeout") }))
	report = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestCache(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	checker := NewChecker()
	checker.SetClock(mock)

	var calls atomic.Int32
	checker.Register("router", func(ctx context.Context) Check {
		calls.Add(1)
		return Check{Status: StatusHealthy}
	})

	checker.Check(context.Background())
	checker.Check(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	mock.Advance(6 * time.Second)
	checker.Check(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHandlers(t *testing.T) {
	checker := NewChecker()
	checker.Register("router", FromError("reachable", StatusUnhealthy, func(context.Context) error { return fmt.Errorf("down") }))

	rec := httptest.NewRecorder()
	checker.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Status)

	rec = httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, "NOT READY", rec.Body.String())

	rec = httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
