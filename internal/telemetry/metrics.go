// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// used by the analysis pipeline and its LLM adapters.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joelkehle/legalbrief/internal/llm"
)

var (
	DefaultLLMDurationBuckets = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultRunDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600}
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	ChunkOutcomesTotal *prometheus.CounterVec
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalbrief_llm_requests_total",
			Help: "LLM completion requests by model and outcome class.",
		}, []string{"model", "outcome"}),
		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legalbrief_llm_request_duration_seconds",
			Help:    "LLM completion latency.",
			Buckets: DefaultLLMDurationBuckets,
		}, []string{"model"}),
		ChunkOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalbrief_chunk_outcomes_total",
			Help: "Analyzed chunks by outcome (analyzed, decode_failed, transport_failed, timeout).",
		}, []string{"outcome"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legalbrief_analysis_runs_total",
			Help: "Document analysis runs by status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "legalbrief_analysis_run_duration_seconds",
			Help:    "End-to-end document analysis duration.",
			Buckets: DefaultRunDurationBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LLMRequestsTotal, m.LLMRequestDuration, m.ChunkOutcomesTotal, m.RunsTotal, m.RunDuration)
	}
	return m
}

func (m *Metrics) ObserveChunk(outcome string) {
	if m == nil {
		return
	}
	m.ChunkOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// InstrumentedCompleter records request counts and latency for every call.
type InstrumentedCompleter struct {
	next    llm.Completer
	metrics *Metrics
}

func Instrument(next llm.Completer, m *Metrics) llm.Completer {
	if m == nil {
		return next
	}
	return &InstrumentedCompleter{next: next, metrics: m}
}

func (c *InstrumentedCompleter) ModelName() string { return llm.ModelName(c.next) }

func (c *InstrumentedCompleter) Complete(ctx context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	model := llm.ModelName(c.next)
	start := time.Now()
	out, err := c.next.Complete(ctx, prompt, opts)
	c.metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = llm.ClassifyError(err).String()
	}
	c.metrics.LLMRequestsTotal.WithLabelValues(model, outcome).Inc()
	return out, err
}
