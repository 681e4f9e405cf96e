// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns every collector the price engine reports.
type Recorder struct {
	recommendations *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	boundHits       *prometheus.CounterVec
	confidence      prometheus.Histogram
	latency         prometheus.Histogram
	reloads         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	weightsInfo     *prometheus.GaugeVec
	trainingMAE     prometheus.Gauge
	trainingRows    *prometheus.GaugeVec
}

// New registers the collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceengine_recommendations_total",
				Help: "Total number of price recommendations served",
			},
			[]string{"branch"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceengine_errors_total",
				Help: "Total number of failed recommendation requests",
			},
			[]string{"kind"},
		),
		boundHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceengine_bound_hits_total",
				Help: "Recommendations clamped to the floor or ceiling",
			},
			[]string{"bound"},
		),
		confidence: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "priceengine_confidence",
				Help:    "Confidence of served recommendations",
				Buckets: prometheus.LinearBuckets(0.3, 0.05, 14),
			},
		),
		latency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "priceengine_recommend_duration_seconds",
				Help:    "Duration of recommendation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		reloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceengine_weights_reloads_total",
				Help: "Weights reload attempts by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceengine_cache_lookups_total",
				Help: "Recommendation cache lookups by result",
			},
			[]string{"result"},
		),
		weightsInfo: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceengine_weights_info",
				Help: "Currently active weights; value is always 1",
			},
			[]string{"model_version", "fingerprint"},
		),
		trainingMAE: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "priceengine_training_validation_mae",
				Help: "Validation MAE of the last training run",
			},
		),
		trainingRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceengine_training_rows",
				Help: "Row counts of the last training run",
			},
			[]string{"stage"},
		),
	}
}

// RecordRecommendation records one served recommendation.
func (r *Recorder) RecordRecommendation(branch string, confidence float64, minHit, ceilingHit bool, d time.Duration) {
	r.recommendations.WithLabelValues(branch).Inc()
	r.confidence.Observe(confidence)
	r.latency.Observe(d.Seconds())
	if minHit {
		r.boundHits.WithLabelValues("min_price").Inc()
	}
	if ceilingHit {
		r.boundHits.WithLabelValues("ceiling").Inc()
	}
}

// RecordError records a failed request by error kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordReload records a weights reload attempt.
func (r *Recorder) RecordReload(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.reloads.WithLabelValues(trigger, result).Inc()
}

// RecordCache records a cache hit or miss.
func (r *Recorder) RecordCache(hit bool) {
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// SetActiveWeights replaces the active weights info series.
func (r *Recorder) SetActiveWeights(modelVersion, fingerprint string) {
	r.weightsInfo.Reset()
	r.weightsInfo.WithLabelValues(modelVersion, fingerprint).Set(1)
}

// SetTraining publishes the report of the last training run.
func (r *Recorder) SetTraining(mae float64, rows map[string]int) {
	r.trainingMAE.Set(mae)
	for stage, n := range rows {
		r.trainingRows.WithLabelValues(stage).Set(float64(n))
	}
}
