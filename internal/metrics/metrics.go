// Package metrics exposes the inference service counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

const namespace = "emosense"

// Metrics contains Prometheus metrics for the analysis pipeline
type Metrics struct {
	analyses           *prometheus.CounterVec
	visionDegraded     *prometheus.CounterVec
	textDegraded       *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	generationDuration prometheus.Histogram
	confidence         *prometheus.HistogramVec
	sideEffectErrors   *prometheus.CounterVec
	moodShare          *prometheus.GaugeVec
	storedAnalyses     prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewMetrics creates and registers the pipeline metrics
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of analyses served, by detected mood and provider",
		},
		[]string{"mood", "provider"},
	)

	m.visionDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_degraded_total",
			Help:      "Vision sub-flows that fell back to Neutral, by cause",
		},
		[]string{"provider", "cause"},
	)

	m.textDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_degraded_total",
			Help:      "Text sub-flows that fell back to the offline reply, by cause",
		},
		[]string{"cause"},
	)

	m.analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"provider"},
	)

	m.generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the text-generation collaborator",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	m.confidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Confidence of non-degraded predictions",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"mood"},
	)

	m.sideEffectErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_errors_total",
			Help:      "Failed best-effort side effects (audit insert, event publish)",
		},
		[]string{"kind"},
	)

	m.moodShare = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_mood_share",
			Help:      "Share of each mood among stored analyses, refreshed by the aggregator",
		},
		[]string{"mood"},
	)

	m.storedAnalyses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_analyses",
			Help:      "Number of analyses in the audit store",
		},
	)

	m.collectors = []prometheus.Collector{
		m.analyses,
		m.visionDegraded,
		m.textDegraded,
		m.analysisDuration,
		m.generationDuration,
		m.confidence,
		m.sideEffectErrors,
		m.moodShare,
		m.storedAnalyses,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordAnalysis records one served analysis and its latency
func (m *Metrics) RecordAnalysis(mood domain.Emotion, provider string, seconds float64) {
	m.analyses.WithLabelValues(mood.String(), provider).Inc()
	m.analysisDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordConfidence records the confidence of a non-degraded prediction
func (m *Metrics) RecordConfidence(mood domain.Emotion, confidence float32) {
	m.confidence.WithLabelValues(mood.String()).Observe(float64(confidence))
}

func (m *Metrics) RecordVisionDegraded(provider, cause string) {
	m.visionDegraded.WithLabelValues(provider, cause).Inc()
}

func (m *Metrics) RecordTextDegraded(cause string) {
	m.textDegraded.WithLabelValues(cause).Inc()
}

func (m *Metrics) RecordGenerationDuration(seconds float64) {
	m.generationDuration.Observe(seconds)
}

// RecordSideEffectError counts a failed audit insert ("audit") or publish ("event")
func (m *Metrics) RecordSideEffectError(kind string) {
	m.sideEffectErrors.WithLabelValues(kind).Inc()
}

// SetMoodDistribution replaces the stored mood gauges
func (m *Metrics) SetMoodDistribution(counts []domain.MoodCount) {
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	m.storedAnalyses.Set(float64(total))

	m.moodShare.Reset()
	for _, e := range domain.Emotions() {
		m.moodShare.WithLabelValues(e.String()).Set(0)
	}
	if total == 0 {
		return
	}
	for _, c := range counts {
		m.moodShare.WithLabelValues(c.Mood.String()).Set(float64(c.Count) / float64(total))
	}
}
