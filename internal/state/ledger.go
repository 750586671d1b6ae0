package state

import "time"

// AddLedgerEntry records a delivered scrobble key. Re-recording an existing
// key refreshes its timestamp.
func (m *Manager) AddLedgerEntry(key string, at time.Time) error {
	_, err := m.db.Exec(`
		INSERT INTO scrobble_ledger (key, scrobbled_at)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET scrobbled_at = excluded.scrobbled_at
	`, key, at.Unix())
	return err
}

// HasLedgerKey reports whether a scrobble key has been delivered before.
func (m *Manager) HasLedgerKey(key string) (bool, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(1) FROM scrobble_ledger WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneLedger removes entries older than the cutoff.
func (m *Manager) PruneLedger(before time.Time) error {
	_, err := m.db.Exec(`DELETE FROM scrobble_ledger WHERE scrobbled_at < ?`, before.Unix())
	return err
}

// ClearLedger empties the ledger.
func (m *Manager) ClearLedger() error {
	_, err := m.db.Exec(`DELETE FROM scrobble_ledger`)
	return err
}
