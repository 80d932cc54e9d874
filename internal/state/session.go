package state

import (
	"database/sql"
	"errors"
	"time"
)

// Session is the playback position recorded for the next launch.
type Session struct {
	LastIndex int
	Position  time.Duration
}

func getSession(db *sql.DB) (*Session, error) {
	row := db.QueryRow(`SELECT last_index, position_ms FROM session WHERE id = 1`)

	var s Session
	var positionMs int64
	err := row.Scan(&s.LastIndex, &positionMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no saved session is valid on first run
	}
	if err != nil {
		return nil, err
	}

	s.Position = time.Duration(positionMs) * time.Millisecond
	return &s, nil
}

func saveSession(db *sql.DB, s Session) error {
	_, err := db.Exec(`
		INSERT INTO session (id, last_index, position_ms, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_index = excluded.last_index,
			position_ms = excluded.position_ms,
			updated_at = excluded.updated_at
	`, s.LastIndex, s.Position.Milliseconds(), time.Now().Unix())

	return err
}
