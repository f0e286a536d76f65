package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

type Metrics struct {
	// Latency: длительность прогона анализа целиком
	AnalysisDuration prometheus.Histogram

	// Traffic: прогоны по итоговому статусу (ok, unsaved, cancelled, failed)
	AnalysisRuns *prometheus.CounterVec

	// Источник советов: model или fallback
	AdviceTotal *prometheus.CounterVec

	ModerationAlerts *prometheus.CounterVec

	// Деградация IdentityResolver к синтетическим именам
	IdentityFallbacks prometheus.Counter

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Заполненность буфера журнала алертов (backpressure)
	AlertBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AnalysisDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "guildpulse_analysis_duration_seconds",
			Help:    "Histogram of analysis run latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		AnalysisRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guildpulse_analysis_runs_total",
			Help: "Total number of analysis runs by outcome (ok, unsaved, cancelled, failed).",
		}, []string{"status"}),

		AdviceTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guildpulse_advice_total",
			Help: "Advice lists produced, by source.",
		}, []string{"source"}),

		ModerationAlerts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guildpulse_moderation_alerts_total",
			Help: "Moderation alerts emitted by the reactive trigger.",
		}, []string{"severity"}),

		IdentityFallbacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "guildpulse_identity_fallbacks_total",
			Help: "User identifiers resolved to synthetic names due to lookup failures.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "guildpulse_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"backend"}),

		AlertBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "guildpulse_alert_buffer_utilization",
			Help: "Current number of alerts waiting in the journal buffer.",
		}),
	}
}

// IdentityFallback реализует identity.FallbackReporter
func (m *Metrics) IdentityFallback(count int, _ error) {
	m.IdentityFallbacks.Add(float64(count))
}

// AdviceGenerated реализует advisor.SourceReporter
func (m *Metrics) AdviceGenerated(source string) {
	m.AdviceTotal.WithLabelValues(source).Inc()
}

// BufferFill реализует alertlog.BufferObserver
func (m *Metrics) BufferFill(n int) {
	m.AlertBufferFill.Set(float64(n))
}

func (m *Metrics) breakerStateChanged(backend string, to gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(backend).Set(float64(to))
}
