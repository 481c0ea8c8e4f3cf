package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution maps a configured time resolution to the comparison and
// bucketing semantics used when interpreting candle timestamps.
type Resolution string

// Supported resolutions.
const (
	ResolutionMillisecond Resolution = "millisecond"
	ResolutionSecond      Resolution = "second"
	ResolutionMinute      Resolution = "minute"
	ResolutionHour        Resolution = "hour"
)

// ErrUnknownResolution is returned for resolutions outside the supported set.
var ErrUnknownResolution = errors.New("unknown resolution")

// ParseResolution parses a resolution name (case-insensitive).
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate fails closed on anything outside the supported set.
func (r Resolution) Validate() error {
	switch r {
	case ResolutionMillisecond, ResolutionSecond, ResolutionMinute, ResolutionHour:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResolution, string(r))
	}
}

// DurationMs returns the bucket width in milliseconds.
func (r Resolution) DurationMs() int64 {
	switch r {
	case ResolutionMillisecond:
		return 1
	case ResolutionSecond:
		return 1_000
	case ResolutionMinute:
		return 60_000
	case ResolutionHour:
		return 3_600_000
	default:
		return 0
	}
}

// BucketMs truncates a timestamp to the start of its bucket.
func (r Resolution) BucketMs(tsMs int64) int64 {
	d := r.DurationMs()
	if d <= 1 {
		return tsMs
	}
	return tsMs - tsMs%d
}

// SameBucket reports whether two timestamps fall into the same bucket.
func (r Resolution) SameBucket(a, b int64) bool {
	return r.BucketMs(a) == r.BucketMs(b)
}
