// Package metrics provides per-component Prometheus metric collectors.
package metrics

// Status label values shared across collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation label values used across metric recordings.
const (
	// OpAnalyze represents a full single-image pipeline run.
	OpAnalyze = "analyze"
	// OpBatch represents a batch pipeline run.
	OpBatch = "batch"
	// OpModelCall represents a vision model invocation.
	OpModelCall = "model_call"
	// OpParse represents model response parsing.
	OpParse = "parse"
	// OpRender represents annotation rendering.
	OpRender = "render"
	// OpUpload represents an object store upload.
	OpUpload = "upload"
	// OpCatalogLookup represents a species catalog lookup.
	OpCatalogLookup = "catalog_lookup"
	// OpCatalogCreate represents a species catalog auto-creation.
	OpCatalogCreate = "catalog_create"
	// OpSightingCreate represents creation of a new sighting.
	OpSightingCreate = "sighting_create"
	// OpSightingReuse represents reuse of an existing open sighting.
	OpSightingReuse = "sighting_reuse"
	// OpPhotoAttach represents attaching a photo to a sighting.
	OpPhotoAttach = "photo_attach"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
