package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics covers model loading, inference and prediction requests.
type ClassifierMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	InferenceErrors   *prometheus.CounterVec

	PredictionDuration *prometheus.HistogramVec
	PredictionTotal    *prometheus.CounterVec
	PredictionCache    *prometheus.CounterVec

	ModelLoadTotal *prometheus.CounterVec
	ModelsLoaded   prometheus.Gauge
}

// NewClassifierMetrics creates the classifier collectors and registers them.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantdoc_inference_duration_seconds",
			Help:    "Time taken to run one image through a classifier",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"plant"},
	)
	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantdoc_inferences_total",
			Help: "Total number of classifier invocations",
		},
		[]string{"plant", "status"},
	)
	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantdoc_inference_errors_total",
			Help: "Total number of failed classifier invocations",
		},
		[]string{"plant", "error_type"},
	)
	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantdoc_prediction_duration_seconds",
			Help:    "End to end time of a diagnosis including preprocessing and fusion",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"plant", "mode"},
	)
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantdoc_predictions_total",
			Help: "Total number of diagnosis requests",
		},
		[]string{"plant", "mode", "status"},
	)
	m.PredictionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantdoc_prediction_cache_total",
			Help: "Prediction cache lookups partitioned by result",
		},
		[]string{"result"},
	)
	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantdoc_model_load_total",
			Help: "Total number of classifier load attempts",
		},
		[]string{"status"},
	)
	m.ModelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "plantdoc_models_loaded",
			Help: "Number of plants with a loaded classifier",
		},
	)
}

func (m *ClassifierMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.InferenceDuration,
		m.InferenceTotal,
		m.InferenceErrors,
		m.PredictionDuration,
		m.PredictionTotal,
		m.PredictionCache,
		m.ModelLoadTotal,
		m.ModelsLoaded,
	}
}

// Describe implements prometheus.Collector.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordInference records one classifier invocation.
func (m *ClassifierMetrics) RecordInference(plant string, durationSeconds float64, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(plant, StatusError).Inc()
		m.InferenceErrors.WithLabelValues(plant, errorType(err)).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(plant, StatusSuccess).Inc()
	m.InferenceDuration.WithLabelValues(plant).Observe(durationSeconds)
}

// RecordPrediction records a complete diagnosis.
func (m *ClassifierMetrics) RecordPrediction(plant, mode string, durationSeconds float64, err error) {
	if err != nil {
		m.PredictionTotal.WithLabelValues(plant, mode, StatusError).Inc()
		return
	}
	m.PredictionTotal.WithLabelValues(plant, mode, StatusSuccess).Inc()
	m.PredictionDuration.WithLabelValues(plant, mode).Observe(durationSeconds)
}

// RecordCacheLookup records a prediction cache hit or miss.
func (m *ClassifierMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.PredictionCache.WithLabelValues("hit").Inc()
		return
	}
	m.PredictionCache.WithLabelValues("miss").Inc()
}

// RecordModelLoad records the outcome of loading the catalog.
func (m *ClassifierMetrics) RecordModelLoad(loaded int, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(StatusError).Inc()
	} else {
		m.ModelLoadTotal.WithLabelValues(StatusSuccess).Inc()
	}
	m.ModelsLoaded.Set(float64(loaded))
}
