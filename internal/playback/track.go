package playback

import (
	"strings"
	"time"
)

// Track is an immutable description of the media being played.
// Duration is zero when the player does not report one.
type Track struct {
	Identifier string // player-provided stable ID, may be empty
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
}

// Identity returns the value used to compare tracks and derive dedup keys:
// the player identifier when present, otherwise the lowercase artist|title pair.
func (t Track) Identity() string {
	if t.Identifier != "" {
		return t.Identifier
	}
	return strings.ToLower(t.Artist) + "|" + strings.ToLower(t.Title)
}

// Same reports whether two tracks refer to the same media.
func (t Track) Same(other Track) bool {
	return t.Identity() == other.Identity()
}
