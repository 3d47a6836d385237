package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clawinfra/clawroute/internal/types"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	EscalationTotal   *prometheus.CounterVec
	SavingsUSDTotal   *prometheus.CounterVec
	TokensTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clawroute_request_total",
			Help: "Total number of requests handled by the proxy.",
		}, []string{"tier", "model", "outcome"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clawroute_request_duration_ms",
			Help:    "Request duration in milliseconds, including provider latency.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"tier", "model"}),

		EscalationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clawroute_escalation_total",
			Help: "Total requests that escalated past the routed model.",
		}, []string{"tier"}),

		SavingsUSDTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clawroute_savings_usd_total",
			Help: "Estimated USD saved versus the originally requested model.",
		}, []string{"tier"}),

		TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clawroute_tokens_total",
			Help: "Total tokens processed.",
		}, []string{"model", "direction"}),
	}
}

// RecordExecution records metrics for one completed request.
func (m *Metrics) RecordExecution(res *types.ExecutionResult) {
	tier := res.Decision.Tier.String()
	outcome := "routed"
	switch {
	case res.Decision.IsPassthrough:
		outcome = "passthrough"
	case res.Decision.IsDryRun:
		outcome = "dry_run"
	case res.Decision.IsOverride:
		outcome = "override"
	case res.Escalated:
		outcome = "escalated"
	}

	m.RequestTotal.WithLabelValues(tier, res.ActualModel, outcome).Inc()
	m.RequestDurationMs.WithLabelValues(tier, res.ActualModel).Observe(float64(res.ResponseTimeMs))
	if res.Escalated {
		m.EscalationTotal.WithLabelValues(tier).Inc()
	}
	if res.SavingsUSD > 0 {
		m.SavingsUSDTotal.WithLabelValues(tier).Add(res.SavingsUSD)
	}
	if res.InputTokens > 0 {
		m.TokensTotal.WithLabelValues(res.ActualModel, "input").Add(float64(res.InputTokens))
	}
	if res.OutputTokens > 0 {
		m.TokensTotal.WithLabelValues(res.ActualModel, "output").Add(float64(res.OutputTokens))
	}
}
