// Package metrics exposes Prometheus collectors for reviews and agent runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	reviews       *prometheus.CounterVec
	agentRuns     *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	webhooks      *prometheus.CounterVec
}

// New creates the collectors and registers them with process and Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codelion",
			Name:      "reviews_total",
			Help:      "Reviews finished, by final status.",
		}, []string{"status"}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codelion",
			Name:      "agent_runs_total",
			Help:      "Agent executions, by agent and outcome.",
		}, []string{"agent", "status"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codelion",
			Name:      "agent_duration_seconds",
			Help:      "Wall time of a single agent on a single file.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"agent"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codelion",
			Name:      "webhooks_total",
			Help:      "GitHub webhook deliveries, by event and result.",
		}, []string{"event", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reviews, m.agentRuns, m.agentDuration, m.webhooks,
	)
	return m
}

// ObserveReview counts a review reaching a terminal status.
func (m *Metrics) ObserveReview(status string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(status).Inc()
}

// ObserveAgentRun records one agent execution.
func (m *Metrics) ObserveAgentRun(agent, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(agent, status).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// ObserveWebhook counts a webhook delivery.
func (m *Metrics) ObserveWebhook(event, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(event, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
