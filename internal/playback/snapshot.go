package playback

import "time"

// Intent carries hints about why the player is playing something.
type Intent struct {
	// UsePreview marks short preview playback that must never scrobble.
	UsePreview bool
}

// Snapshot is one observation of the player, emitted whenever its state
// changes. Track is nil when nothing is loaded.
type Snapshot struct {
	Track     *Track
	State     State
	Position  time.Duration // elapsed playback time within the track
	Timestamp time.Time     // when the observation was made
	Intent    *Intent
}
