package state

import "time"

// Interface defines the persistence contract for dependency injection and
// testing. Manager is the SQLite-backed implementation; Mock keeps everything
// in memory.
type Interface interface {
	// Auth session
	GetSession() (*Session, error)
	SaveSession(username, sessionKey string) error
	DeleteSession() error
	// ClearSessionData atomically removes the session, the pending queue
	// and the ledger (sign-out semantics).
	ClearSessionData() error

	// Pending delivery queue
	AddPendingScrobble(p PendingScrobble) error
	GetPendingScrobbles() ([]PendingScrobble, error)
	DeletePendingScrobble(id string) error
	MarkPendingAttempt(id string, at time.Time) error
	ClearPendingScrobbles() error

	// Dedup ledger
	AddLedgerEntry(key string, at time.Time) error
	HasLedgerKey(key string) (bool, error)
	PruneLedger(before time.Time) error
	ClearLedger() error

	// Current candidate
	GetCandidate() (*Candidate, error)
	SaveCandidate(c Candidate) error
	ClearCandidate() error

	// Scrobble log
	AppendLogEntry(e LogEntry, max int) error
	GetLogEntries(limit int) ([]LogEntry, error)

	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
