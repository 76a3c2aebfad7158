package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus metrics
// ⭐ SSOT: 메트릭 이름/라벨은 여기서만 정의
// =============================================================================

const namespace = "aegis"

// Registry holds all trading-core metrics.
// nil *Registry 는 no-op (테스트/CLI 단발 실행)
type Registry struct {
	reg *prometheus.Registry

	PipelineRuns     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	StrategyFailures *prometheus.CounterVec
	SignalsScored    *prometheus.CounterVec
	Candidates       *prometheus.GaugeVec

	ScanDecisions *prometheus.CounterVec
	ScanDuration  *prometheus.HistogramVec
	Orders        *prometheus.CounterVec

	Exits         *prometheus.CounterVec
	OpenPositions *prometheus.GaugeVec
	MonitorPasses prometheus.Counter

	Headlines *prometheus.CounterVec
}

// New creates a registry with process and Go collectors
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Weekend pipeline runs by terminal state",
			},
			[]string{"state"},
		),
		PipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Weekend pipeline run duration",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		StrategyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_failures_total",
				Help:      "Strategy scoring failures isolated by the pipeline",
			},
			[]string{"strategy"},
		),
		SignalsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_scored_total",
				Help:      "Signals scored by strategy and score",
			},
			[]string{"strategy", "score"},
		),
		Candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frozen_candidates",
				Help:      "Candidates in the latest frozen universe",
			},
			[]string{"strategy"},
		),
		ScanDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_decisions_total",
				Help:      "Weekday scan decisions by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Weekday scan duration",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"strategy"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Orders sent to the broker by side and fill status",
			},
			[]string{"side", "status"},
		),
		Exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exits_total",
				Help:      "Invalidations by exit reason",
			},
			[]string{"reason"},
		),
		OpenPositions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_positions",
				Help:      "Active positions by strategy",
			},
			[]string{"strategy"},
		),
		MonitorPasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidation_passes_total",
				Help:      "Invalidation engine evaluation passes",
			},
		),
		Headlines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "news_headlines_total",
				Help:      "Classified headlines by impact",
			},
			[]string{"impact"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.PipelineRuns,
		r.PipelineDuration,
		r.StrategyFailures,
		r.SignalsScored,
		r.Candidates,
		r.ScanDecisions,
		r.ScanDuration,
		r.Orders,
		r.Exits,
		r.OpenPositions,
		r.MonitorPasses,
		r.Headlines,
	)
	return r
}

// Handler exposes the registry for /metrics
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObservePipelineRun records a finished weekend run
func (r *Registry) ObservePipelineRun(state string, d time.Duration) {
	if r == nil {
		return
	}
	r.PipelineRuns.WithLabelValues(state).Inc()
	r.PipelineDuration.Observe(d.Seconds())
}

// RecordStrategyFailure counts an isolated strategy failure
func (r *Registry) RecordStrategyFailure(strategy string) {
	if r == nil {
		return
	}
	r.StrategyFailures.WithLabelValues(strategy).Inc()
}

// RecordSignal counts a scored signal
func (r *Registry) RecordSignal(strategy, score string) {
	if r == nil {
		return
	}
	r.SignalsScored.WithLabelValues(strategy, score).Inc()
}

// SetCandidates sets the frozen candidate count for a strategy
func (r *Registry) SetCandidates(strategy string, n int) {
	if r == nil {
		return
	}
	r.Candidates.WithLabelValues(strategy).Set(float64(n))
}

// RecordScanDecision counts one candidate outcome (order, no-trade rule, skip reason)
func (r *Registry) RecordScanDecision(strategy, outcome string) {
	if r == nil {
		return
	}
	r.ScanDecisions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveScan records a scan duration
func (r *Registry) ObserveScan(strategy string, d time.Duration) {
	if r == nil {
		return
	}
	r.ScanDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordOrder counts a broker order result
func (r *Registry) RecordOrder(side, status string) {
	if r == nil {
		return
	}
	r.Orders.WithLabelValues(side, status).Inc()
}

// RecordExit counts an invalidation
func (r *Registry) RecordExit(reason string) {
	if r == nil {
		return
	}
	r.Exits.WithLabelValues(reason).Inc()
}

// SetOpenPositions sets the active position gauge
func (r *Registry) SetOpenPositions(strategy string, n int) {
	if r == nil {
		return
	}
	r.OpenPositions.WithLabelValues(strategy).Set(float64(n))
}

// RecordMonitorPass counts one invalidation pass
func (r *Registry) RecordMonitorPass() {
	if r == nil {
		return
	}
	r.MonitorPasses.Inc()
}

// RecordHeadline counts a classified headline
func (r *Registry) RecordHeadline(impact string) {
	if r == nil {
		return
	}
	r.Headlines.WithLabelValues(impact).Inc()
}
