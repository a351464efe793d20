// Package observability exposes pipeline counters and latency histograms
// over prometheus.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline instruments. A nil *Metrics is a no-op on
// every method so callers never need to guard.
type Metrics struct {
	stepsTotal        *prometheus.CounterVec
	retriesTotal      prometheus.Counter
	permanentFailures prometheus.Counter
	planValidation    *prometheus.CounterVec
	llmCalls          *prometheus.CounterVec
	sandboxGates      *prometheus.CounterVec
	stepDuration      prometheus.Histogram
}

// New registers the pipeline instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "steps_total",
			Help:      "Plan steps executed, by terminal status.",
		}, []string{"status"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "step_retries_total",
			Help:      "Retry attempts across all steps.",
		}),
		permanentFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "permanent_failures_total",
			Help:      "Step failures classified permanent.",
		}),
		planValidation: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "plan_validation_total",
			Help:      "Plan validation outcomes.",
		}, []string{"result"}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "llm_calls_total",
			Help:      "LLM invocations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		sandboxGates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectral",
			Name:      "sandbox_gates_total",
			Help:      "Sandbox verification gate outcomes.",
		}, []string{"gate", "result"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spectral",
			Name:      "step_duration_seconds",
			Help:      "Wall time per step including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) StepCompleted(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(status).Inc()
	m.stepDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StepRetried() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) PermanentFailure() {
	if m == nil {
		return
	}
	m.permanentFailures.Inc()
}

func (m *Metrics) PlanValidated(valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.planValidation.WithLabelValues(result).Inc()
}

func (m *Metrics) LLMCall(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) SandboxGate(gate string, passed bool) {
	if m == nil {
		return
	}
	result := "pass"
	if !passed {
		result = "fail"
	}
	m.sandboxGates.WithLabelValues(gate, result).Inc()
}

// Handler serves the registry's metrics for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
