package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	// Liveness ignores failing dependencies.
	h.RegisterCheck(NewPingCheck("broken", func(ctx context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Checks)
}

func TestHealthHandler_Ready_AllPass(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("database", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("kanoon", func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Checks, 2)
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "pass", status.Checks["kanoon"].Status)
	assert.NotEmpty(t, status.Checks["database"].Latency)
}

func TestHealthHandler_Ready_OneFails(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("database", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "fail", status.Checks["redis"].Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
}

func TestHealthHandler_Ready_NoChecks(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-08-30", "abc123")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
}
