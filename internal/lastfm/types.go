package lastfm

import "time"

// Session is the durable proof of sign-in returned by auth.getSession.
type Session struct {
	Name string
	Key  string
}

// Submission contains track metadata for a scrobble or now-playing call.
type Submission struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration // zero when unknown
	Timestamp time.Time     // when playback started; ignored for now playing
}
