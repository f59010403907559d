// Package config provides configuration management for phototidy.
package config

// Default configuration values.
const (
	DefaultHashChunkSizeKB = 1024
	DefaultHashWorkers     = 4
	DefaultHashCache       = true

	DefaultPHashEnabled   = true
	DefaultPHashThreshold = 8
	MaxPHashThreshold     = 16

	DefaultMaxRetries     = 5
	DefaultBackoffBaseSec = 1.0
	DefaultBackoffCapSec  = 30.0

	DefaultChunkedThresholdMB = 64
	DefaultCopyChunkSizeKB    = 1024
	DefaultAllowCrossVolume   = true

	DefaultHeartbeatIntervalSec   = 1.0
	DefaultEmitMinBytesKB         = 1024
	DefaultEmitMinIntervalSec     = 0.5
	DefaultSlowConsecutiveSamples = 3
	DefaultSlowMinSampleBytesKB   = 256
	DefaultSlowMinSampleSec       = 1.0
	DefaultSlowThresholdMBps      = 1.0

	DefaultThumbMaxSizeKB      = 120
	DefaultThumbMaxDimensionPx = 640
	DefaultThumbMinDimensionPx = 320

	DefaultArchiveEnabled = true
	DefaultArchiveRoot    = "KEEP"
	DefaultArchiveUnknown = "unknown"

	DefaultRenameEnabled        = false
	DefaultRenameSequenceDigits = 4

	DefaultScreenshotTemplate = "KEEP/Screenshots/{YYYY}-{MM}/"
)

// DefaultHashAlgorithms are computed for every file in a multi-file size bucket.
var DefaultHashAlgorithms = []string{"sha256", "md5"}

// DefaultExclusions are glob patterns skipped by the scanner, matched
// against directory base names.
var DefaultExclusions = []string{
	"Processed_*",
	"TO_DELETE",
	"KEEP",
	"REPORT",
	"ROLLBACK_TRASH",
	"ROLLBACK_CONFLICTS",
	".*",
	"@eaDir",
}
