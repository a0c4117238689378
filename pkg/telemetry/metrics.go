package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	stageLatency   *prometheus.HistogramVec
	auditFailures  prometheus.Counter
	upstreamErrors prometheus.Counter
	emptyPrompts   prometheus.Counter
	policyReloads  *prometheus.CounterVec
	registry       *prometheus.Registry
}

// NewMetrics creates a metrics instance on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_decisions_total",
				Help: "Policy decisions by role, intent, reason and outcome",
			},
			[]string{"role", "intent", "reason", "allowed"},
		),

		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "End-to-end decision pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"allowed"},
		),

		stageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_stage_duration_seconds",
				Help:    "Per-stage pipeline latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"stage"},
		),

		auditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_audit_failures_total",
				Help: "Audit records that could not be persisted",
			},
		),

		upstreamErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_upstream_errors_total",
				Help: "Failed upstream model invocations",
			},
		),

		emptyPrompts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_empty_prompts_total",
				Help: "Requests rejected before classification for an empty prompt",
			},
		),

		policyReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_policy_reloads_total",
				Help: "Policy reload attempts by result",
			},
			[]string{"result"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.decisionsTotal,
		m.requestLatency,
		m.stageLatency,
		m.auditFailures,
		m.upstreamErrors,
		m.emptyPrompts,
		m.policyReloads,
	)

	return m
}

// RecordDecision counts one decision and observes its latencies.
func (m *Metrics) RecordDecision(role, intent, reason string, allowed bool, total, intentStage, policyStage time.Duration) {
	allowedLabel := strconv.FormatBool(allowed)
	m.decisionsTotal.WithLabelValues(role, intent, reason, allowedLabel).Inc()
	m.requestLatency.WithLabelValues(allowedLabel).Observe(total.Seconds())
	m.stageLatency.WithLabelValues("intent").Observe(intentStage.Seconds())
	m.stageLatency.WithLabelValues("policy").Observe(policyStage.Seconds())
}

// RecordAuditFailure counts one failed audit write.
func (m *Metrics) RecordAuditFailure() { m.auditFailures.Inc() }

// RecordUpstreamError counts one failed upstream invocation.
func (m *Metrics) RecordUpstreamError() { m.upstreamErrors.Inc() }

// RecordEmptyPrompt counts one pre-classification rejection.
func (m *Metrics) RecordEmptyPrompt() { m.emptyPrompts.Inc() }

// RecordPolicyReload counts one reload attempt.
func (m *Metrics) RecordPolicyReload(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.policyReloads.WithLabelValues(result).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
