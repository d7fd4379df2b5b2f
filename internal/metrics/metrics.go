// Package metrics exposes Prometheus collectors for the web server, the
// ledger service and the export worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomies"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.HistogramVec
	ledgerOperations   *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	exportOperations   *prometheus.CounterVec
	memberCacheLookups *prometheus.CounterVec
	rateLimited        prometheus.Counter
	suspiciousRequests prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amqp",
			Name:      "events_published_total",
			Help:      "Ledger events handed to the broker by type and outcome.",
		}, []string{"event", "outcome"}),
		exportOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "operations_total",
			Help:      "Spreadsheet export operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		memberCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "member_lookups_total",
			Help:      "Member directory cache lookups by result.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspiciousRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the security detector.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.ledgerOperations,
		m.eventsPublished,
		m.exportOperations,
		m.memberCacheLookups,
		m.rateLimited,
		m.suspiciousRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTPRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) LedgerOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) EventPublished(event, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) ExportOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.exportOperations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) MemberCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.memberCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) SuspiciousRequest() {
	if m == nil {
		return
	}
	m.suspiciousRequests.Inc()
}
