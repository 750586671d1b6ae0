package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/wake/internal/db"
)

// GetCandidate returns the persisted candidate, or nil if none is live.
func (m *Manager) GetCandidate() (*Candidate, error) {
	var c Candidate
	var identifier, album sql.NullString
	var durationSecs, startedAt, lastPositionMs, updatedAt int64
	var nowPlayingSent int

	err := m.db.QueryRow(`
		SELECT identifier, title, artist, album, duration_seconds, started_at, last_position_ms, updated_at, now_playing_sent
		FROM current_candidate WHERE id = 1
	`).Scan(&identifier, &c.Track.Title, &c.Track.Artist, &album,
		&durationSecs, &startedAt, &lastPositionMs, &updatedAt, &nowPlayingSent)

	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // nil candidate means nothing in flight
	}
	if err != nil {
		return nil, err
	}

	c.Track.Identifier = db.NullStringValue(identifier)
	c.Track.Album = db.NullStringValue(album)
	c.Track.Duration = time.Duration(durationSecs) * time.Second
	c.StartedAt = time.Unix(startedAt, 0)
	c.LastPosition = time.Duration(lastPositionMs) * time.Millisecond
	c.UpdatedAt = time.Unix(updatedAt, 0)
	c.NowPlayingSent = nowPlayingSent != 0

	return &c, nil
}

// SaveCandidate persists the candidate, replacing any previous one.
func (m *Manager) SaveCandidate(c Candidate) error {
	nowPlayingSent := 0
	if c.NowPlayingSent {
		nowPlayingSent = 1
	}
	_, err := m.db.Exec(`
		INSERT INTO current_candidate
		(id, identifier, title, artist, album, duration_seconds, started_at, last_position_ms, updated_at, now_playing_sent)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identifier = excluded.identifier,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration_seconds = excluded.duration_seconds,
			started_at = excluded.started_at,
			last_position_ms = excluded.last_position_ms,
			updated_at = excluded.updated_at,
			now_playing_sent = excluded.now_playing_sent
	`, c.Track.Identifier, c.Track.Title, c.Track.Artist, c.Track.Album,
		int(c.Track.Duration.Seconds()), c.StartedAt.Unix(),
		c.LastPosition.Milliseconds(), c.UpdatedAt.Unix(), nowPlayingSent)
	return err
}

// ClearCandidate removes the persisted candidate.
func (m *Manager) ClearCandidate() error {
	_, err := m.db.Exec(`DELETE FROM current_candidate WHERE id = 1`)
	return err
}
