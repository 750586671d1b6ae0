package scrobble

import "time"

// Policy decides whether a finalized play session qualifies as a scrobble.
//
// Three tiers: long tracks must play to within CompletionGrace of the end,
// short tracks must play CompletionFraction of their duration, and tracks
// with unknown duration must play at least FallbackMinimum. A single fraction
// is too lenient for long tracks and too strict for short ones.
type Policy struct {
	CompletionFraction float64
	CompletionGrace    time.Duration
	FallbackMinimum    time.Duration
	LongTrackMinimum   time.Duration
}

// DefaultPolicy returns the standard eligibility thresholds.
func DefaultPolicy() Policy {
	return Policy{
		CompletionFraction: 0.8,
		CompletionGrace:    30 * time.Second,
		FallbackMinimum:    30 * time.Second,
		LongTrackMinimum:   60 * time.Second,
	}
}

// ShouldScrobble reports whether a session that played for played out of a
// track of the given duration (zero = unknown) is eligible. All thresholds
// are boundary-inclusive.
func (p Policy) ShouldScrobble(played, duration time.Duration) bool {
	switch {
	case duration >= p.LongTrackMinimum:
		return played >= duration-p.CompletionGrace
	case duration > 0:
		return played >= time.Duration(float64(duration)*p.CompletionFraction)
	default:
		return played >= p.FallbackMinimum
	}
}
