package state

import (
	"time"

	"github.com/llehouerou/wake/internal/playback"
)

// Session is a stored Last.fm session.
type Session struct {
	Username   string
	SessionKey string
	LinkedAt   time.Time
}

// PendingScrobble is a durable delivery task awaiting confirmed submission.
type PendingScrobble struct {
	ID            string
	Track         playback.Track
	StartedAt     time.Time
	Attempts      int
	LastAttemptAt time.Time // zero when never attempted
	CreatedAt     time.Time
}

// Candidate is the persisted play session under evaluation. At most one
// exists at a time.
type Candidate struct {
	Track          playback.Track
	StartedAt      time.Time
	LastPosition   time.Duration // monotonic progress watermark
	UpdatedAt      time.Time
	NowPlayingSent bool
}

// LedgerEntry records one successfully delivered scrobble key.
type LedgerEntry struct {
	Key         string
	ScrobbledAt time.Time
}

// LogStatus is the outcome recorded in the scrobble log.
type LogStatus string

const (
	LogPending   LogStatus = "pending"
	LogScrobbled LogStatus = "scrobbled"
	LogFailed    LogStatus = "failed"
	LogSkipped   LogStatus = "skipped"
)

// LogEntry is one line of the user-visible scrobble history.
type LogEntry struct {
	At      time.Time
	Track   playback.Track
	Status  LogStatus
	Message string
}
