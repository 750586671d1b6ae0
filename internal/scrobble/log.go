package scrobble

import (
	"github.com/llehouerou/wake/internal/playback"
	"github.com/llehouerou/wake/internal/state"
)

// Log is the bounded user-visible scrobble history. It is observability
// only: append failures never affect delivery.
type Log struct {
	store state.Interface
	max   int
}

// NewLog creates a log keeping at most max entries.
func NewLog(store state.Interface, max int) *Log {
	return &Log{store: store, max: max}
}

// Append records an entry, best-effort.
func (l *Log) Append(status state.LogStatus, track playback.Track, message string) {
	_ = l.store.AppendLogEntry(state.LogEntry{
		Track:   track,
		Status:  status,
		Message: message,
	}, l.max)
}

// Entries returns the newest entries, most recent first.
func (l *Log) Entries(limit int) ([]state.LogEntry, error) {
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	return l.store.GetLogEntries(limit)
}
