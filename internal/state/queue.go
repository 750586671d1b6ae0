package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/wake/internal/db"
)

// AddPendingScrobble persists a delivery task.
func (m *Manager) AddPendingScrobble(p PendingScrobble) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var lastAttempt any
	if !p.LastAttemptAt.IsZero() {
		lastAttempt = p.LastAttemptAt.Unix()
	}
	_, err := m.db.Exec(`
		INSERT INTO pending_scrobbles
		(id, identifier, title, artist, album, duration_seconds, started_at, attempts, last_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Track.Identifier, p.Track.Title, p.Track.Artist, p.Track.Album,
		int(p.Track.Duration.Seconds()), p.StartedAt.Unix(), p.Attempts, lastAttempt, createdAt.Unix())
	return err
}

// GetPendingScrobbles returns all pending deliveries ordered by creation time.
// Attempt counters are returned exactly as persisted so backoff continuity
// survives restarts.
func (m *Manager) GetPendingScrobbles() ([]PendingScrobble, error) {
	rows, err := m.db.Query(`
		SELECT id, identifier, title, artist, album, duration_seconds, started_at, attempts, last_attempt_at, created_at
		FROM pending_scrobbles
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingScrobble
	for rows.Next() {
		var p PendingScrobble
		var identifier, album sql.NullString
		var durationSecs, startedAt, createdAt int64
		var lastAttemptAt sql.NullInt64

		err := rows.Scan(
			&p.ID, &identifier, &p.Track.Title, &p.Track.Artist, &album,
			&durationSecs, &startedAt, &p.Attempts, &lastAttemptAt, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		p.Track.Identifier = db.NullStringValue(identifier)
		p.Track.Album = db.NullStringValue(album)
		p.Track.Duration = time.Duration(durationSecs) * time.Second
		p.StartedAt = time.Unix(startedAt, 0)
		p.CreatedAt = time.Unix(createdAt, 0)
		if at := db.NullInt64Value(lastAttemptAt); at != 0 {
			p.LastAttemptAt = time.Unix(at, 0)
		}

		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// DeletePendingScrobble removes a delivered (or dropped) task.
func (m *Manager) DeletePendingScrobble(id string) error {
	_, err := m.db.Exec(`DELETE FROM pending_scrobbles WHERE id = ?`, id)
	return err
}

// MarkPendingAttempt increments the attempt counter and stamps the attempt
// time for one task.
func (m *Manager) MarkPendingAttempt(id string, at time.Time) error {
	_, err := m.db.Exec(`
		UPDATE pending_scrobbles
		SET attempts = attempts + 1, last_attempt_at = ?
		WHERE id = ?
	`, at.Unix(), id)
	return err
}

// ClearPendingScrobbles empties the delivery queue.
func (m *Manager) ClearPendingScrobbles() error {
	_, err := m.db.Exec(`DELETE FROM pending_scrobbles`)
	return err
}
