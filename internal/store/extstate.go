package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadExtState returns a persisted extension-state value.
// The boolean is false when no value is stored.
func (s *Store) ReadExtState(ctx context.Context, section, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM ext_state WHERE section = ? AND key = ?
	`, section, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read ext state %s/%s: %w", section, key, err)
	}
	return value, true, nil
}

// WriteExtState stores a value, replacing any previous one.
func (s *Store) WriteExtState(ctx context.Context, section, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ext_state (section, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(section, key) DO UPDATE SET value = excluded.value
	`, section, key, value)
	if err != nil {
		return fmt.Errorf("write ext state %s/%s: %w", section, key, err)
	}
	return nil
}

// DeleteExtState removes a value. Deleting a missing key is not an error.
func (s *Store) DeleteExtState(ctx context.Context, section, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM ext_state WHERE section = ? AND key = ?
	`, section, key)
	if err != nil {
		return fmt.Errorf("delete ext state %s/%s: %w", section, key, err)
	}
	return nil
}
