package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *ServerMetrics

	// None of these may panic.
	m.ConnOpened()
	m.ConnClosed()
	m.ConnRejected()
	m.ObserveRequest("LOGIN_REQUEST", time.Millisecond, false)
	m.AddUploadedBytes(10)
	m.AddDownloadedBytes(10)

	assert.Nil(t, NewServerMetrics(nil))
}

func TestConnectionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)
	require.NotNil(t, m)

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
}

func TestRequestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	m.ObserveRequest("LIST_DIR", 2*time.Millisecond, false)
	m.ObserveRequest("LIST_DIR", 3*time.Millisecond, true)
	m.ObserveRequest("MKDIR", time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("LIST_DIR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("LIST_DIR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("MKDIR")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.errors.WithLabelValues("MKDIR")))
}

func TestByteCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	m.AddUploadedBytes(5)
	m.AddUploadedBytes(7)
	m.AddDownloadedBytes(42)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.uploadedBytes))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.downloadedBytes))
}

func TestNewRegistryHasRuntimeCollectors(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
