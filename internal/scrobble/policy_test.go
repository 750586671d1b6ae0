package scrobble

import (
	"testing"
	"time"
)

func TestShouldScrobble(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		played   time.Duration
		duration time.Duration
		want     bool
	}{
		{"long track just short of grace", 269 * time.Second, 300 * time.Second, false},
		{"long track at grace boundary", 270 * time.Second, 300 * time.Second, true},
		{"long track played fully", 300 * time.Second, 300 * time.Second, true},
		{"exactly at long track minimum", 30 * time.Second, 60 * time.Second, true},
		{"short track below fraction", 39 * time.Second, 50 * time.Second, false},
		{"short track at fraction boundary", 40 * time.Second, 50 * time.Second, true},
		{"short track played fully", 50 * time.Second, 50 * time.Second, true},
		{"unknown duration below fallback", 29 * time.Second, 0, false},
		{"unknown duration at fallback", 30 * time.Second, 0, true},
		{"nothing played", 0, 300 * time.Second, false},
		{"nothing played unknown duration", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ShouldScrobble(tt.played, tt.duration)
			if got != tt.want {
				t.Errorf("ShouldScrobble(%v, %v) = %v, want %v", tt.played, tt.duration, got, tt.want)
			}
		})
	}
}

func TestShouldScrobble_CustomThresholds(t *testing.T) {
	p := Policy{
		CompletionFraction: 0.5,
		CompletionGrace:    10 * time.Second,
		FallbackMinimum:    5 * time.Second,
		LongTrackMinimum:   2 * time.Minute,
	}

	// 90s track is below the long-track minimum, so the fraction rule applies.
	if !p.ShouldScrobble(45*time.Second, 90*time.Second) {
		t.Error("expected fraction rule to pass at exactly half")
	}
	// 3m track uses the grace rule.
	if p.ShouldScrobble(169*time.Second, 180*time.Second) {
		t.Error("expected grace rule to fail 11s from the end")
	}
	if !p.ShouldScrobble(170*time.Second, 180*time.Second) {
		t.Error("expected grace rule to pass 10s from the end")
	}
}
