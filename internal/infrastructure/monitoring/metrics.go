package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detection outcomes used as metric labels
const (
	OutcomeFound       = "found"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "engine_unavailable"
	OutcomeLaunchError = "session_failed"
	OutcomeBusy        = "busy"
	OutcomeCancelled   = "cancelled"
)

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Detection metrics
	DetectionsTotal     *prometheus.CounterVec
	DetectionDuration   prometheus.Histogram
	DetectionCandidates prometheus.Histogram
	SessionsActive      prometheus.Gauge
	TriggerClicks       *prometheus.CounterVec
	NavigationFailures  prometheus.Counter

	// Relay metrics
	ProxyRequests *prometheus.CounterVec
	ProxyBytes    prometheus.Counter

	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for the JSON health API
type Snapshot struct {
	TotalRequests  int64 `json:"total_requests"`
	TotalErrors    int64 `json:"total_errors"`
	Detections     int64 `json:"detections"`
	DetectionsHits int64 `json:"detections_found"`
	ProxiedBytes   int64 `json:"proxied_bytes"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsdetect_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hlsdetect_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hlsdetect_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		DetectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsdetect_detections_total",
				Help: "Detection runs by outcome",
			},
			[]string{"outcome"},
		),
		DetectionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hlsdetect_detection_duration_seconds",
				Help:    "Wall time of detection runs",
				Buckets: []float64{.5, 1, 2.5, 5, 7.5, 10, 15, 20, 30, 45, 60},
			},
		),
		DetectionCandidates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hlsdetect_detection_candidates",
				Help:    "Candidate URLs found per detection run",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hlsdetect_browser_sessions_active",
				Help: "Browser sessions currently open",
			},
		),
		TriggerClicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsdetect_trigger_clicks_total",
				Help: "Successful playback trigger clicks by player family",
			},
			[]string{"player"},
		),
		NavigationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hlsdetect_navigation_failures_total",
				Help: "Page loads that failed or timed out",
			},
		),

		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsdetect_proxy_requests_total",
				Help: "Relayed stream requests by upstream status",
			},
			[]string{"status"},
		),
		ProxyBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hlsdetect_proxy_bytes_total",
				Help: "Bytes relayed from upstream to clients",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "hlsdetect_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return m.Uptime().Seconds() },
	)

	return m
}

// Handler returns the Prometheus exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Uptime returns the time since the collector was created
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDetection records the outcome of one detection run
func (m *Metrics) RecordDetection(outcome string, duration time.Duration, candidates int) {
	m.DetectionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFound || outcome == OutcomeEmpty {
		m.DetectionDuration.Observe(duration.Seconds())
		m.DetectionCandidates.Observe(float64(candidates))
	}

	m.mu.Lock()
	m.snapshot.Detections++
	if outcome == OutcomeFound {
		m.snapshot.DetectionsHits++
	}
	m.mu.Unlock()
}

// RecordTrigger records a successful playback trigger click
func (m *Metrics) RecordTrigger(player string) {
	if player == "" {
		player = "unknown"
	}
	m.TriggerClicks.WithLabelValues(player).Inc()
}

// IncNavigationFailures counts a degraded page load
func (m *Metrics) IncNavigationFailures() {
	m.NavigationFailures.Inc()
}

// IncSessionsActive increments open browser sessions
func (m *Metrics) IncSessionsActive() {
	m.SessionsActive.Inc()
}

// DecSessionsActive decrements open browser sessions
func (m *Metrics) DecSessionsActive() {
	m.SessionsActive.Dec()
}

// RecordProxy records one relayed response
func (m *Metrics) RecordProxy(status string, bytes int64) {
	m.ProxyRequests.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.ProxyBytes.Add(float64(bytes))
	}

	m.mu.Lock()
	m.snapshot.ProxiedBytes += bytes
	m.mu.Unlock()
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
