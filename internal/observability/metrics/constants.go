// Package metrics provides the Prometheus collectors for PlantDoc.
package metrics

// Operation status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Prediction modes.
const (
	ModeSingle = "single"
	ModeDual   = "dual"
)

// Histogram bucket configuration.
const (
	// BucketStart1ms starts 1ms histograms (1ms to ~1s with 10 buckets).
	BucketStart1ms = 0.001
	// BucketStart100us starts 0.1ms histograms.
	BucketStart100us = 0.0001
	// BucketStart1KB starts size histograms at 1KB.
	BucketStart1KB = 1024.0

	BucketFactor2 = 2
	BucketFactor4 = 4

	BucketCount10 = 10
	BucketCount12 = 12
)
