package state

import (
	"sync"
	"time"
)

// Mock is an in-memory test double for Manager.
type Mock struct {
	mu      sync.Mutex
	session *Session
	pending []PendingScrobble
	ledger  map[string]time.Time
	cand    *Candidate
	log     []LogEntry
	closed  bool
}

// NewMock creates a new in-memory state store for testing.
func NewMock() *Mock {
	return &Mock{ledger: make(map[string]time.Time)}
}

func (m *Mock) GetSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil //nolint:nilnil // signed out
	}
	s := *m.session
	return &s, nil
}

func (m *Mock) SaveSession(username, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &Session{Username: username, SessionKey: sessionKey, LinkedAt: time.Now()}
	return nil
}

func (m *Mock) DeleteSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *Mock) ClearSessionData() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.pending = nil
	m.ledger = make(map[string]time.Time)
	return nil
}

func (m *Mock) AddPendingScrobble(p PendingScrobble) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.pending = append(m.pending, p)
	return nil
}

func (m *Mock) GetPendingScrobbles() ([]PendingScrobble, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingScrobble, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *Mock) DeletePendingScrobble(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) MarkPendingAttempt(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pending {
		if m.pending[i].ID == id {
			m.pending[i].Attempts++
			m.pending[i].LastAttemptAt = at
			break
		}
	}
	return nil
}

func (m *Mock) ClearPendingScrobbles() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}

func (m *Mock) AddLedgerEntry(key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[key] = at
	return nil
}

func (m *Mock) HasLedgerKey(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledger[key]
	return ok, nil
}

func (m *Mock) PruneLedger(before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, at := range m.ledger {
		if at.Before(before) {
			delete(m.ledger, k)
		}
	}
	return nil
}

func (m *Mock) ClearLedger() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = make(map[string]time.Time)
	return nil
}

func (m *Mock) GetCandidate() (*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cand == nil {
		return nil, nil //nolint:nilnil // nothing in flight
	}
	c := *m.cand
	return &c, nil
}

func (m *Mock) SaveCandidate(c Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cand = &c
	return nil
}

func (m *Mock) ClearCandidate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cand = nil
	return nil
}

func (m *Mock) AppendLogEntry(e LogEntry, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.log = append(m.log, e)
	if len(m.log) > max {
		m.log = m.log[len(m.log)-max:]
	}
	return nil
}

func (m *Mock) GetLogEntries(limit int) ([]LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for i := len(m.log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.log[i])
	}
	return out, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Mock) LedgerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
