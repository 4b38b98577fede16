package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting: %w", err)
	}
	return value, nil
}

const settingUpsert = `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(settingUpsert, key, value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting setting %q: %w", key, err)
	}
	return nil
}

// Display settings are the client-facing preferences (brightness, theme,
// time format and so on). They live in the settings KV under a prefix so
// the daemon's own keys never leak to paired displays.
const displayPrefix = "display."

func (s *Store) GetDisplaySettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE key LIKE ?`, displayPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("listing display settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning display setting: %w", err)
		}
		out[strings.TrimPrefix(k, displayPrefix)] = v
	}
	return out, rows.Err()
}

func (s *Store) SetDisplaySetting(key, value string) error {
	if key == "" {
		return fmt.Errorf("empty display setting key")
	}
	return s.SetSetting(displayPrefix+key, value)
}

const pairingHashKey = "pairing.key_hash"

// GetPairingHash returns the stored argon2id hash of the pairing key, or
// empty if no key has been generated yet.
func (s *Store) GetPairingHash() (string, error) {
	return s.GetSetting(pairingHashKey)
}

func (s *Store) SetPairingHash(hash string) error {
	return s.SetSetting(pairingHashKey, hash)
}

const activeProviderKey = "playback.provider"

// GetActiveProvider names the playback provider that should be activated
// at startup, or empty if none was ever configured.
func (s *Store) GetActiveProvider() (string, error) {
	return s.GetSetting(activeProviderKey)
}

func (s *Store) SetActiveProvider(provider string) error {
	if provider == "" {
		return s.DeleteSetting(activeProviderKey)
	}
	return s.SetSetting(activeProviderKey, provider)
}
