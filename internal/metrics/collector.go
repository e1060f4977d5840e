// Package metrics registers this platform's Prometheus collectors: one
// instance per process, exposed over /metrics via promhttp. cmd/bottomrun
// sets the calibration and drift gauges after each monitor tick; no
// component updates the other collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups every counter/gauge/histogram this platform exports,
// mirroring the teacher's category grouping (API health, circuit
// breakers, cache, latency, decile performance) but backed by real
// prometheus vectors instead of simulated fixture data - this tree has
// live components to instrument, not a demo endpoint to fill in.
type Collector struct {
	reg *prometheus.Registry

	IngestorTicks      *prometheus.CounterVec
	IngestorBarsClosed *prometheus.CounterVec
	IngestorGaps       *prometheus.CounterVec
	IngestorReconnects *prometheus.CounterVec

	FeatureSnapshotAge *prometheus.GaugeVec
	FeatureErrors      *prometheus.CounterVec

	PredictTotal   *prometheus.CounterVec
	PredictLatency *prometheus.HistogramVec
	PredictNoData  *prometheus.CounterVec
	PredictNoModel *prometheus.CounterVec

	LabelerRealized     *prometheus.CounterVec
	LabelerPending      prometheus.Gauge
	LabelerScanDuration prometheus.Histogram

	CalibrationECE   *prometheus.GaugeVec
	CalibrationBrier *prometheus.GaugeVec
	DriftAbsStreak   *prometheus.GaugeVec
	DriftRelStreak   *prometheus.GaugeVec
	DriftRecommended *prometheus.GaugeVec

	RiskRejects    *prometheus.CounterVec
	RiskSessionPnL *prometheus.GaugeVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec

	TrainingRuns    *prometheus.CounterVec
	PromotionEvents *prometheus.CounterVec
}

// NewCollector builds and registers every metric on a fresh registry so
// tests never collide with a process-global default registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	ns := "bottomrun"

	c := &Collector{
		reg: reg,

		IngestorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "ingestor", Name: "ticks_total",
			Help: "Trade ticks merged into the in-flight bar.",
		}, []string{"symbol"}),

		IngestorBarsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "ingestor", Name: "bars_closed_total",
			Help: "Closed bars persisted by the Ingestor.",
		}, []string{"symbol", "interval"}),

		IngestorGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "ingestor", Name: "gaps_total",
			Help: "Gap segments opened by the Ingestor.",
		}, []string{"symbol", "interval"}),

		IngestorReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "stream", Name: "reconnects_total",
			Help: "Reconnect attempts made by the realtime stream client.",
		}, []string{"symbol"}),

		FeatureSnapshotAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "features", Name: "snapshot_age_seconds",
			Help: "Age of the latest feature snapshot at last read.",
		}, []string{"symbol", "interval"}),

		FeatureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "features", Name: "errors_total",
			Help: "Feature Engine computation errors.",
		}, []string{"symbol", "reason"}),

		PredictTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "inference", Name: "predict_total",
			Help: "Predict ticks by resulting status.",
		}, []string{"symbol", "status"}),

		PredictLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "inference", Name: "predict_latency_seconds",
			Help:    "Predict tick latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol"}),

		PredictNoData: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "inference", Name: "no_data_total",
			Help: "Predict ticks that found no feature snapshot.",
		}, []string{"symbol"}),

		PredictNoModel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "inference", Name: "no_model_total",
			Help: "Predict ticks that found no usable model artifact.",
		}, []string{"symbol"}),

		LabelerRealized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "labeler", Name: "realized_total",
			Help: "Inference log rows resolved to a realized outcome.",
		}, []string{"symbol", "label"}),

		LabelerPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "labeler", Name: "pending",
			Help: "Inference log rows still awaiting a realized outcome.",
		}),

		LabelerScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "labeler", Name: "scan_duration_seconds",
			Help:    "Duration of one labeler scan pass.",
			Buckets: prometheus.DefBuckets,
		}),

		CalibrationECE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "calibration", Name: "ece",
			Help: "Expected calibration error over the live sample window.",
		}, []string{"symbol"}),

		CalibrationBrier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "calibration", Name: "brier",
			Help: "Brier score over the live sample window.",
		}, []string{"symbol"}),

		DriftAbsStreak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "calibration", Name: "drift_abs_streak",
			Help: "Consecutive samples exceeding the absolute ECE drift threshold.",
		}, []string{"symbol"}),

		DriftRelStreak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "calibration", Name: "drift_rel_streak",
			Help: "Consecutive samples exceeding the relative ECE drift threshold.",
		}, []string{"symbol"}),

		DriftRecommended: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "calibration", Name: "drift_recommend_retrain",
			Help: "1 when the drift monitor currently recommends a retrain.",
		}, []string{"symbol"}),

		RiskRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "risk", Name: "rejects_total",
			Help: "Entry candidates rejected by the Risk Engine, by reason.",
		}, []string{"symbol", "reason"}),

		RiskSessionPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "risk", Name: "session_pnl",
			Help: "Current risk session realized P&L.",
		}, []string{"symbol"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "cache", Name: "hits_total",
			Help: "Cache hits by tier.",
		}, []string{"tier"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "cache", Name: "misses_total",
			Help: "Cache misses by tier.",
		}, []string{"tier"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "stream", Name: "circuit_breaker_state",
			Help: "0=closed, 1=half-open, 2=open.",
		}, []string{"name"}),

		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "training", Name: "runs_total",
			Help: "Training runs by outcome.",
		}, []string{"outcome"}),

		PromotionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "registry", Name: "promotion_events_total",
			Help: "Artifact promotion/rollback events by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.IngestorTicks, c.IngestorBarsClosed, c.IngestorGaps, c.IngestorReconnects,
		c.FeatureSnapshotAge, c.FeatureErrors,
		c.PredictTotal, c.PredictLatency, c.PredictNoData, c.PredictNoModel,
		c.LabelerRealized, c.LabelerPending, c.LabelerScanDuration,
		c.CalibrationECE, c.CalibrationBrier, c.DriftAbsStreak, c.DriftRelStreak, c.DriftRecommended,
		c.RiskRejects, c.RiskSessionPnL,
		c.CacheHits, c.CacheMisses,
		c.CircuitBreakerState,
		c.TrainingRuns, c.PromotionEvents,
	)

	return c
}

// Handler returns the promhttp handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// CircuitState maps a gobreaker state name to the gauge convention used
// by CircuitBreakerState (0=closed, 1=half-open, 2=open).
func CircuitState(name string) float64 {
	switch name {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
