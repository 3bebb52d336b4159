// conf/consts.go hard coded constants
package conf

import "time"

const (
	QuotaWindow     = 24 * time.Hour // Length of the per-device quota window
	MaxUploadSizeMB = 32             // Maximum accepted photo upload size in megabytes
	MaxBatchImages  = 20             // Maximum images accepted in one batch request

	UnknownSpeciesName = "Unknown" // Species name assigned to unidentified detections
)
