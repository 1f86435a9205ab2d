// Package telemetry provides logging and metrics for the agent.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the agent's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles         prometheus.Counter
	parseFailures  prometheus.Counter
	commands       *prometheus.CounterVec
	summarizations *prometheus.CounterVec
	tokens         *prometheus.CounterVec
	modelDuration  *prometheus.HistogramVec
	contextTokens  prometheus.Gauge
}

// NewMetrics creates and registers the agent collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniagi_cycles_total",
			Help: "Completed think cycles.",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniagi_parse_failures_total",
			Help: "Model responses rejected by the response grammar.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniagi_commands_total",
			Help: "Dispatched commands by outcome.",
		}, []string{"command", "status"}),
		summarizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniagi_summarizations_total",
			Help: "Summarizer calls by kind and outcome.",
		}, []string{"kind", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniagi_tokens_total",
			Help: "Model tokens consumed.",
		}, []string{"type"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "miniagi_model_call_duration_seconds",
			Help:    "Model call latency.",
			Buckets: durationBuckets,
		}, []string{"model"}),
		contextTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "miniagi_context_tokens",
			Help: "Estimated size of the last assembled context.",
		}),
	}
	m.registry.MustRegister(
		m.cycles, m.parseFailures, m.commands, m.summarizations,
		m.tokens, m.modelDuration, m.contextTokens,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordCycle counts one think cycle.
func (m *Metrics) RecordCycle() { m.cycles.Inc() }

// RecordParseFailure counts one malformed response.
func (m *Metrics) RecordParseFailure() { m.parseFailures.Inc() }

// UnknownCommand labels dispatches of names no handler is registered for,
// so model output cannot grow the label set.
const UnknownCommand = "unknown"

// RecordCommand counts one dispatch. A status of "unknown" is recorded under
// the UnknownCommand label.
func (m *Metrics) RecordCommand(command, status string) {
	if status == UnknownCommand {
		command = UnknownCommand
	}
	m.commands.WithLabelValues(command, status).Inc()
}

// RecordSummarization counts one summarizer call.
func (m *Metrics) RecordSummarization(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.summarizations.WithLabelValues(kind, status).Inc()
}

// RecordModelCall records latency and token usage of one model call.
func (m *Metrics) RecordModelCall(model string, d time.Duration, inputTokens, outputTokens int) {
	m.modelDuration.WithLabelValues(model).Observe(d.Seconds())
	m.tokens.WithLabelValues("input").Add(float64(inputTokens))
	m.tokens.WithLabelValues("output").Add(float64(outputTokens))
}

// SetContextTokens records the size of the last assembled context.
func (m *Metrics) SetContextTokens(n int) { m.contextTokens.Set(float64(n)) }

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
