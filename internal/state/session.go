package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/wake/internal/db"
)

// GetSession returns the stored session, or nil if not signed in.
func (m *Manager) GetSession() (*Session, error) {
	var username, sessionKey string
	var linkedAt int64

	err := m.db.QueryRow(`
		SELECT username, session_key, linked_at FROM lastfm_session WHERE id = 1
	`).Scan(&username, &sessionKey, &linkedAt)

	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // nil session means signed out, not an error
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		Username:   username,
		SessionKey: sessionKey,
		LinkedAt:   time.Unix(linkedAt, 0),
	}, nil
}

// SaveSession stores the session after successful authentication.
func (m *Manager) SaveSession(username, sessionKey string) error {
	now := time.Now().Unix()
	_, err := m.db.Exec(`
		INSERT INTO lastfm_session (id, username, session_key, linked_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`, username, sessionKey, now)
	return err
}

// DeleteSession removes the stored session.
func (m *Manager) DeleteSession() error {
	_, err := m.db.Exec(`DELETE FROM lastfm_session WHERE id = 1`)
	return err
}

// ClearSessionData removes the session together with everything scoped to it:
// the pending delivery queue and the dedup ledger. One transaction, so a crash
// mid-sign-out cannot leave a queue without a session to deliver it.
func (m *Manager) ClearSessionData() error {
	return db.WithTx(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM lastfm_session WHERE id = 1`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM pending_scrobbles`); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM scrobble_ledger`)
		return err
	})
}
