// Package timeline buckets classified changes or commits into time units and
// counts them per activity label.
package timeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultBuckets is the number of buckets used by PercentOfDuration.
	DefaultBuckets = 100
	// MaxBuckets bounds Config.Buckets.
	MaxBuckets = 10000
)

// Sentinel configuration errors.
var (
	ErrUnknownGranularity = errors.New("unknown granularity")
	ErrUnknownLevel       = errors.New("unknown level")
	ErrTooManyBuckets     = errors.New("too many buckets")
)

// Granularity selects the time unit of a bucket.
type Granularity int

// Supported granularities.
const (
	Day Granularity = iota
	Week
	Month
	// PercentOfDuration splits the project lifetime into Config.Buckets
	// equal slices.
	PercentOfDuration
)

var granularityNames = map[Granularity]string{
	Day:               "day",
	Week:              "week",
	Month:             "month",
	PercentOfDuration: "percent",
}

func (g Granularity) String() string {
	if name, ok := granularityNames[g]; ok {
		return name
	}

	return fmt.Sprintf("granularity(%d)", int(g))
}

// ParseGranularity parses "day", "week", "month" or "percent".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days", "daily":
		return Day, nil
	case "week", "weeks", "weekly":
		return Week, nil
	case "month", "months", "monthly":
		return Month, nil
	case "percent", "percentage", "percent-of-duration", "duration":
		return PercentOfDuration, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Level selects what a single increment of a curve represents.
type Level int

// Supported levels.
const (
	// FileLevel counts every classified change under its own label.
	FileLevel Level = iota
	// CommitLevel counts every commit once under its majority-vote type.
	CommitLevel
)

func (l Level) String() string {
	switch l {
	case FileLevel:
		return "file"
	case CommitLevel:
		return "commit"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses "file" or "commit".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "files", "change", "changes":
		return FileLevel, nil
	case "commit", "commits":
		return CommitLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Config controls aggregation.
type Config struct {
	Granularity Granularity
	Level       Level
	// Buckets is the bucket count of PercentOfDuration. Zero means
	// DefaultBuckets; values above MaxBuckets are rejected.
	Buckets int
	// ShowZero makes Series materialise buckets without data as zero points.
	ShowZero bool
	// Location is the zone calendar boundaries are computed in. Nil means UTC.
	Location *time.Location
}

func (c Config) normalized() (Config, error) {
	if _, ok := granularityNames[c.Granularity]; !ok {
		return c, fmt.Errorf("%w: %d", ErrUnknownGranularity, int(c.Granularity))
	}

	if c.Level != FileLevel && c.Level != CommitLevel {
		return c, fmt.Errorf("%w: %d", ErrUnknownLevel, int(c.Level))
	}

	if c.Buckets <= 0 {
		c.Buckets = DefaultBuckets
	}

	if c.Buckets > MaxBuckets {
		return c, fmt.Errorf("%w: %d exceeds %d", ErrTooManyBuckets, c.Buckets, MaxBuckets)
	}

	if c.Location == nil {
		c.Location = time.UTC
	}

	return c, nil
}
