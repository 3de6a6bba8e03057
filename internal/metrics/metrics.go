package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors on a private registry.
type Metrics struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	violationsTotal *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	reloadsTotal    *prometheus.CounterVec
	rulesActive     prometheus.Gauge
	rulesetVersion  prometheus.Gauge
	providerMode    *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlint_scans_total",
				Help: "Total number of text scans by outcome",
			},
			[]string{"status"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adlint_scan_duration_seconds",
				Help:    "Scan plus report synthesis latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlint_violations_total",
				Help: "Total number of violations found by category and severity",
			},
			[]string{"category", "severity"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlint_report_cache_lookups_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlint_ruleset_reloads_total",
				Help: "Ruleset reload attempts by status",
			},
			[]string{"status"},
		),
		rulesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlint_rules_active",
				Help: "Number of active rules in the current ruleset",
			},
		),
		rulesetVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adlint_ruleset_version",
				Help: "Version of the current ruleset snapshot",
			},
		),
		providerMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adlint_provider_mode",
				Help: "Rule provider mode (1 for the current mode)",
			},
			[]string{"mode"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adlint_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adlint_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.violationsTotal,
		m.cacheLookups,
		m.reloadsTotal,
		m.rulesActive,
		m.rulesetVersion,
		m.providerMode,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// All recorders are no-ops on a nil *Metrics.

func (m *Metrics) RecordScan(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordViolation(category, severity string) {
	if m == nil {
		return
	}
	m.violationsTotal.WithLabelValues(category, severity).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordReload(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.reloadsTotal.WithLabelValues(status).Inc()
}

// SetRuleset publishes the state of the current snapshot.
func (m *Metrics) SetRuleset(version uint64, active int, mode string) {
	if m == nil {
		return
	}
	m.rulesetVersion.Set(float64(version))
	m.rulesActive.Set(float64(active))
	m.providerMode.Reset()
	m.providerMode.WithLabelValues(mode).Set(1)
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
