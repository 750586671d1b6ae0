package scrobble

import (
	"strconv"
	"strings"
	"time"

	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

// unknownDuration is the ledger key sentinel for tracks without a duration.
const unknownDuration = "unknown"

// Ledger guarantees at-most-once delivery per play session. Keys of
// delivered scrobbles are kept for a retention window and checked at enqueue
// time, so a track replayed from scratch (new startedAt) is never blocked.
type Ledger struct {
	store     state.Interface
	retention time.Duration
}

// NewLedger creates a ledger over the given store.
func NewLedger(store state.Interface, retention time.Duration) *Ledger {
	return &Ledger{store: store, retention: retention}
}

// Key derives the dedup key for a play session: track identity, start time
// in epoch seconds, rounded duration (or the unknown sentinel) and lowercase
// artist. Two distinct listens of the same track differ in start time; retried
// attempts of the same session collapse to one key.
func (l *Ledger) Key(t playback.Track, startedAt time.Time) string {
	dur := unknownDuration
	if t.Duration > 0 {
		dur = strconv.Itoa(int(t.Duration.Round(time.Second).Seconds()))
	}
	return strings.Join([]string{
		t.Identity(),
		strconv.FormatInt(startedAt.Unix(), 10),
		dur,
		strings.ToLower(t.Artist),
	}, "|")
}

// Contains reports whether a session key was already delivered.
func (l *Ledger) Contains(key string) (bool, error) {
	return l.store.HasLedgerKey(key)
}

// Record appends a delivered key and prunes entries past retention.
func (l *Ledger) Record(key string, at time.Time) error {
	if err := l.store.AddLedgerEntry(key, at); err != nil {
		return err
	}
	return l.store.PruneLedger(at.Add(-l.retention))
}

// Prune removes entries older than the retention window. Called once on
// startup; Record prunes after every append.
func (l *Ledger) Prune(now time.Time) error {
	return l.store.PruneLedger(now.Add(-l.retention))
}
