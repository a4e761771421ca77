// Package metrics exposes Prometheus instrumentation for the fileshare
// server. A nil *ServerMetrics is valid and records nothing, so the server
// runs with zero overhead when the ops endpoint is disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewRegistry creates a registry pre-loaded with the standard Go runtime
// and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ServerMetrics instruments the TCP server.
type ServerMetrics struct {
	activeConnections   prometheus.Gauge
	rejectedConnections prometheus.Counter
	requests            *prometheus.CounterVec
	errors              *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	uploadedBytes       prometheus.Counter
	downloadedBytes     prometheus.Counter
}

// NewServerMetrics registers the server collectors with reg. A nil
// registerer returns a nil ServerMetrics, which is safe to use.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	if reg == nil {
		return nil
	}

	return &ServerMetrics{
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fileshare_active_connections",
			Help: "Number of currently connected clients",
		}),
		rejectedConnections: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fileshare_rejected_connections_total",
			Help: "Connections closed because the worker cap was reached",
		}),
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileshare_requests_total",
				Help: "Requests processed by command",
			},
			[]string{"command"},
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileshare_request_errors_total",
				Help: "Requests answered with an error response by command",
			},
			[]string{"command"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fileshare_request_duration_seconds",
				Help:    "Request handling latency by command",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		uploadedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fileshare_uploaded_bytes_total",
			Help: "File bytes received via upload-data",
		}),
		downloadedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fileshare_downloaded_bytes_total",
			Help: "File bytes sent via download-response",
		}),
	}
}

// ConnOpened records a new accepted connection.
func (m *ServerMetrics) ConnOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnClosed records a connection teardown.
func (m *ServerMetrics) ConnClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// ConnRejected records a connection closed at the worker cap.
func (m *ServerMetrics) ConnRejected() {
	if m == nil {
		return
	}
	m.rejectedConnections.Inc()
}

// ObserveRequest records one handled request.
func (m *ServerMetrics) ObserveRequest(command string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(command).Inc()
	m.requestDuration.WithLabelValues(command).Observe(duration.Seconds())
	if failed {
		m.errors.WithLabelValues(command).Inc()
	}
}

// AddUploadedBytes records received file bytes.
func (m *ServerMetrics) AddUploadedBytes(n int64) {
	if m == nil {
		return
	}
	m.uploadedBytes.Add(float64(n))
}

// AddDownloadedBytes records sent file bytes.
func (m *ServerMetrics) AddDownloadedBytes(n int64) {
	if m == nil {
		return
	}
	m.downloadedBytes.Add(float64(n))
}
