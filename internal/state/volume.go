package state

import "database/sql"

// GetVolume returns the saved volume in percent and the pre-mute volume
// (-1 when not muted). Missing state yields the defaults.
func (m *Manager) GetVolume() (volume, volumeBeforeMute int, err error) {
	row := m.db.QueryRow(`SELECT volume, volume_before_mute FROM player_state WHERE id = 1`)
	err = row.Scan(&volume, &volumeBeforeMute)
	if err == sql.ErrNoRows {
		return 70, -1, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return volume, volumeBeforeMute, nil
}

// SaveVolume persists the volume and mute memory.
func (m *Manager) SaveVolume(volume, volumeBeforeMute int) error {
	_, err := m.db.Exec(`
		INSERT INTO player_state (id, volume, volume_before_mute)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			volume_before_mute = excluded.volume_before_mute
	`, volume, volumeBeforeMute)
	return err
}
