package catalog

import (
	"database/sql"
	"strconv"
	"time"
)

// GetConfig reads a key/value SyncConfig row (§3, §9 "tunables ... live in
// SyncConfig rows of the catalog, not in process globals").
func (s *Store) GetConfig(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM sync_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetConfig writes a key/value SyncConfig row.
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

const cursorKeyPrefix = "last_cursor:"

// GetCursor returns SyncConfig.last_cursor[platform] (§4.9 step 1).
func (s *Store) GetCursor(platform string) (time.Time, bool, error) {
	value, ok, err := s.GetConfig(cursorKeyPrefix + platform)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// SetCursor advances SyncConfig.last_cursor[platform].
func (s *Store) SetCursor(platform string, cursor time.Time) error {
	return s.SetConfig(cursorKeyPrefix+platform, cursor.UTC().Format(time.RFC3339))
}

const migrationCompletedKey = "migration_completed_at"

// MigrationCompleted reports whether the one-shot legacy-state migration
// (C8) has already run.
func (s *Store) MigrationCompleted() (bool, error) {
	_, ok, err := s.GetConfig(migrationCompletedKey)
	return ok, err
}

// MarkMigrationCompleted records that C8's migration ran, so it is never
// re-applied.
func (s *Store) MarkMigrationCompleted() error {
	return s.SetConfig(migrationCompletedKey, time.Now().UTC().Format(time.RFC3339))
}

// GetIntConfig is a convenience wrapper for tunables stored as integers,
// falling back to def when absent or unparsable.
func (s *Store) GetIntConfig(key string, def int) (int, error) {
	value, ok, err := s.GetConfig(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def, nil
	}
	return n, nil
}
