package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileshare/pkg/metrics"
	"github.com/marmos91/fileshare/pkg/store"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

type fakeAudit struct {
	entries []store.ActivityLog
	err     error
	limit   int
}

func (f *fakeAudit) RecentActivity(_ context.Context, limit int) ([]store.ActivityLog, error) {
	f.limit = limit
	return f.entries, f.err
}

func TestLiveness(t *testing.T) {
	router := NewRouter(metrics.NewRegistry(), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	checks := map[string]HealthChecker{
		"metadata": fakeChecker{},
		"blob":     fakeChecker{},
	}
	router := NewRouter(metrics.NewRegistry(), checks, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["metadata"])
}

func TestReadinessFailure(t *testing.T) {
	checks := map[string]HealthChecker{
		"metadata": fakeChecker{},
		"blob":     fakeChecker{err: errors.New("store closed")},
	}
	router := NewRouter(metrics.NewRegistry(), checks, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "store closed", body.Checks["blob"])
}

func TestMetricsEndpoint(t *testing.T) {
	registry := metrics.NewRegistry()
	sm := metrics.NewServerMetrics(registry)
	sm.ConnOpened()

	router := NewRouter(registry, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fileshare_active_connections 1")
}

func TestActivityEndpoint(t *testing.T) {
	audit := &fakeAudit{entries: []store.ActivityLog{
		{ID: 2, UserID: 1, Action: store.ActionUpload, Description: "report.txt", CreatedAt: time.Now()},
		{ID: 1, UserID: 1, Action: store.ActionLogin, CreatedAt: time.Now()},
	}}
	router := NewRouter(metrics.NewRegistry(), nil, audit)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?limit=50", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, audit.limit)

	var body struct {
		Count   int `json:"count"`
		Entries []struct {
			ID     int64  `json:"id"`
			UserID int64  `json:"user_id"`
			Action string `json:"action"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, int64(2), body.Entries[0].ID)
	assert.Equal(t, "UPLOAD", body.Entries[0].Action)
}

func TestActivityEndpointInvalidLimit(t *testing.T) {
	router := NewRouter(metrics.NewRegistry(), nil, &fakeAudit{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?limit=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityEndpointDisabled(t *testing.T) {
	router := NewRouter(metrics.NewRegistry(), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
