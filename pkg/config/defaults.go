package config

import "time"

// Default configuration values.
const (
	DefaultLogMaxSize    = "512MB"
	DefaultTimezone      = "UTC"
	DefaultGranularity   = "week"
	DefaultLevel         = "file"
	DefaultBuckets       = 100
	DefaultOutputFormat  = "text"
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8080
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 60 * time.Second
	DefaultIdleTimeout   = 120 * time.Second
	DefaultMaxBodySize   = "64MB"
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

const (
	maxPort           = 65535
	envPrefix         = "EFFORT"
	configName        = "effort"
	loggingFormatJSON = "json"
	loggingFormatText = "text"
)

// DefaultExportTypes are the activity types written to the statistics file.
func DefaultExportTypes() []string {
	return []string{"code", "doc", "test", "unknown"}
}
