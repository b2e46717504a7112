package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the player orchestrator.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	sessionsStartedTotal  prometheus.Counter
	sessionsDisposedTotal prometheus.Counter
	fallbacksTotal        prometheus.Counter
	cspBlocksTotal        prometheus.Counter
	qualitySwitchesTotal  prometheus.Counter
	adoptionRetriesTotal  prometheus.Counter
	activeSessions        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the player orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_sessions_started_total",
		Help: "Total number of playback engine sessions initialized",
	})
	sessionsDisposedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_sessions_disposed_total",
		Help: "Total number of playback engine sessions torn down",
	})
	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_fallbacks_total",
		Help: "Total number of adaptive-to-progressive fallback attempts",
	})
	cspBlocksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_csp_blocks_total",
		Help: "Total number of confirmed security-policy playback blocks",
	})
	qualitySwitchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_quality_switches_total",
		Help: "Total number of rendition switches observed",
	})
	adoptionRetriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "player_adoption_retries_total",
		Help: "Total number of element adoption retries",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "player_active_sessions",
		Help: "Number of playback sessions that are not disposed",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessionsStartedTotal,
		sessionsDisposedTotal,
		fallbacksTotal,
		cspBlocksTotal,
		qualitySwitchesTotal,
		adoptionRetriesTotal,
		activeSessions,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		sessionsStartedTotal:  sessionsStartedTotal,
		sessionsDisposedTotal: sessionsDisposedTotal,
		fallbacksTotal:        fallbacksTotal,
		cspBlocksTotal:        cspBlocksTotal,
		qualitySwitchesTotal:  qualitySwitchesTotal,
		adoptionRetriesTotal:  adoptionRetriesTotal,
		activeSessions:        activeSessions,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncSessionsDisposed increments the sessions disposed counter.
func (m *Metrics) IncSessionsDisposed() {
	m.sessionsDisposedTotal.Inc()
}

// IncFallbacks increments the fallback attempts counter.
func (m *Metrics) IncFallbacks() {
	m.fallbacksTotal.Inc()
}

// IncCSPBlocks increments the confirmed security-policy block counter.
func (m *Metrics) IncCSPBlocks() {
	m.cspBlocksTotal.Inc()
}

// IncQualitySwitches increments the rendition switch counter.
func (m *Metrics) IncQualitySwitches() {
	m.qualitySwitchesTotal.Inc()
}

// IncAdoptionRetries increments the adoption retry counter.
func (m *Metrics) IncAdoptionRetries() {
	m.adoptionRetriesTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
