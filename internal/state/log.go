package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/wake/internal/db"
)

// AppendLogEntry appends to the scrobble log and trims it to max entries.
func (m *Manager) AppendLogEntry(e LogEntry, max int) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return db.WithTx(m.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO scrobble_log (at, title, artist, album, status, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, at.Unix(), e.Track.Title, e.Track.Artist, e.Track.Album, string(e.Status), e.Message)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			DELETE FROM scrobble_log WHERE id NOT IN (
				SELECT id FROM scrobble_log ORDER BY id DESC LIMIT ?
			)
		`, max)
		return err
	})
}

// GetLogEntries returns the newest log entries, most recent first.
func (m *Manager) GetLogEntries(limit int) ([]LogEntry, error) {
	rows, err := m.db.Query(`
		SELECT at, title, artist, album, status, message
		FROM scrobble_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var at int64
		var album, message sql.NullString
		var status string

		if err := rows.Scan(&at, &e.Track.Title, &e.Track.Artist, &album, &status, &message); err != nil {
			return nil, err
		}

		e.At = time.Unix(at, 0)
		e.Track.Album = db.NullStringValue(album)
		e.Status = LogStatus(status)
		e.Message = db.NullStringValue(message)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
