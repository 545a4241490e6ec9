package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics covers reference data store operations.
type DatastoreMetrics struct {
	opsTotal    *prometheus.CounterVec
	opsDuration *prometheus.HistogramVec
	opsErrors   *prometheus.CounterVec
	resultSize  *prometheus.HistogramVec
}

// NewDatastoreMetrics creates and registers the datastore collectors.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_operations_total",
			Help: "Total number of datastore operations",
		},
		[]string{"operation", "status"},
	)
	m.opsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_operation_duration_seconds",
			Help:    "Time taken for datastore operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)
	m.opsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_operation_errors_total",
			Help: "Total number of failed datastore operations",
		},
		[]string{"operation", "error_type"},
	)
	m.resultSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_query_result_size",
			Help:    "Number of rows returned by datastore reads",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount10),
		},
		[]string{"operation"},
	)
}

func (m *DatastoreMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.opsTotal, m.opsDuration, m.opsErrors, m.resultSize}
}

// Describe implements prometheus.Collector.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordOperation records a datastore call. Not-found results count as
// successful reads.
func (m *DatastoreMetrics) RecordOperation(operation string, durationSeconds float64, resultSize int, err error) {
	m.opsDuration.WithLabelValues(operation).Observe(durationSeconds)
	if err != nil && errorType(err) != "not-found" {
		m.opsTotal.WithLabelValues(operation, StatusError).Inc()
		m.opsErrors.WithLabelValues(operation, errorType(err)).Inc()
		return
	}
	m.opsTotal.WithLabelValues(operation, StatusSuccess).Inc()
	if resultSize >= 0 {
		m.resultSize.WithLabelValues(operation).Observe(float64(resultSize))
	}
}
