package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"glancehub/internal/models"
)

// StoreProviderCredentials encrypts a provider config and upserts it.
func (s *Store) StoreProviderCredentials(provider string, cfg models.ProviderConfig) error {
	if s.encryptor == nil {
		return fmt.Errorf("encryption not configured")
	}

	plain, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	encrypted, err := s.encryptor.Encrypt(string(plain))
	if err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO provider_credentials (provider, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		provider, encrypted, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing provider credentials: %w", err)
	}
	return nil
}

// GetProviderCredentials retrieves and decrypts a stored provider config.
// Returns nil (no error) if nothing is stored or no encryptor is configured.
func (s *Store) GetProviderCredentials(provider string) (models.ProviderConfig, error) {
	if s.encryptor == nil {
		return nil, nil
	}

	var encrypted string
	err := s.db.QueryRow(
		`SELECT config FROM provider_credentials WHERE provider = ?`,
		provider,
	).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting provider credentials: %w", err)
	}

	plain, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	var cfg models.ProviderConfig
	if err := json.Unmarshal([]byte(plain), &cfg); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return cfg, nil
}

// DeleteProviderCredentials removes stored credentials for a provider.
func (s *Store) DeleteProviderCredentials(provider string) error {
	_, err := s.db.Exec(`DELETE FROM provider_credentials WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("deleting %s credentials: %w", provider, err)
	}
	return nil
}
