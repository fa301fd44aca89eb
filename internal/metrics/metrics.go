// ABOUTME: Prometheus metrics exposition for access decisions, scans, and sessions.
// ABOUTME: Records view and shell events and serves the /metrics endpoint.

package metrics

import (
	"net/http"
	"time"

	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SessionSource lists live sessions at scrape time
type SessionSource interface {
	Sessions() []shell.Session
}

type MetricsHandler struct {
	sessions SessionSource
	logger   *logrus.Logger
	registry *prometheus.Registry

	// Event counters
	accessDecisions *prometheus.CounterVec
	scans           *prometheus.CounterVec
	scanFindings    *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	assistRequests  *prometheus.CounterVec
	autosaves       prometheus.Counter

	// Scrape-time state
	activeSessions *prometheus.GaugeVec
}

// NewMetricsHandler registers every OpsDeck metric on a private registry.
// sessions may be nil when no session store exists yet.
func NewMetricsHandler(sessions SessionSource, logger *logrus.Logger) *MetricsHandler {
	m := &MetricsHandler{
		sessions: sessions,
		logger:   logger,
		registry: prometheus.NewRegistry(),

		accessDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdeck_access_decisions_total",
				Help: "Navigation and role-switch authorization decisions by view, role, and outcome",
			},
			[]string{"view", "role", "decision"},
		),

		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdeck_scans_total",
				Help: "Security scans by outcome",
			},
			[]string{"outcome"},
		),

		scanFindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdeck_scan_findings_total",
				Help: "Findings reported by completed scans, by severity",
			},
			[]string{"severity"},
		),

		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "opsdeck_scan_duration_seconds",
				Help:    "Time from scan request to result",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		assistRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdeck_assist_requests_total",
				Help: "Editor polish requests by outcome",
			},
			[]string{"outcome"},
		),

		autosaves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdeck_autosaves_total",
				Help: "Drafts saved by the autosave timer",
			},
		),

		activeSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opsdeck_sessions",
				Help: "Live sessions by role and active view",
			},
			[]string{"role", "view"},
		),
	}

	m.registry.MustRegister(
		m.accessDecisions,
		m.scans,
		m.scanFindings,
		m.scanDuration,
		m.assistRequests,
		m.autosaves,
		m.activeSessions,
	)

	// Severity series exist from the first scrape
	for _, sev := range types.Severities() {
		m.scanFindings.WithLabelValues(string(sev))
	}

	return m
}

// SetSessions attaches the session store once it exists
func (m *MetricsHandler) SetSessions(sessions SessionSource) {
	m.sessions = sessions
}

// Decided counts the decision reached by one navigation or role switch
func (m *MetricsHandler) Decided(role rbac.Role, d rbac.Decision) {
	m.accessDecisions.WithLabelValues(string(d.View), role.String(), d.Kind.String()).Inc()
}

// ScanFinished counts one scan and, for successful scans, its findings
func (m *MetricsHandler) ScanFinished(outcome string, elapsed time.Duration, findings []types.Finding) {
	m.scans.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.scanDuration.Observe(elapsed.Seconds())
	}
	for _, f := range findings {
		m.scanFindings.WithLabelValues(string(f.Severity)).Inc()
	}
}

// AssistFinished counts one polish request
func (m *MetricsHandler) AssistFinished(outcome string) {
	m.assistRequests.WithLabelValues(outcome).Inc()
}

// Autosaved counts one timer-driven save
func (m *MetricsHandler) Autosaved() {
	m.autosaves.Inc()
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Reset to avoid stale role/view pairs
	m.activeSessions.Reset()

	if m.sessions != nil {
		sessions := m.sessions.Sessions()
		for _, s := range sessions {
			m.activeSessions.WithLabelValues(s.Role.String(), string(s.View)).Inc()
		}
		m.logger.WithField("sessions", len(sessions)).Debug("Metrics scraped")
	}

	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	handler.ServeHTTP(w, r)
}
