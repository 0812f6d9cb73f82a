package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordMapping records that a platform holds a copy of a fingerprinted
// activity. Unique per (fingerprint, platform); re-recording the same
// pair with a different activity_id overwrites (§4.4's "unique upsert").
// Mappings are never deleted.
func (s *Store) RecordMapping(fingerprint, platform, activityID string) error {
	_, err := s.db.Exec(`
		INSERT INTO platform_mappings (fingerprint, platform, activity_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint, platform) DO UPDATE SET activity_id = excluded.activity_id
	`, fingerprint, platform, activityID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording mapping (%s, %s): %w", fingerprint, platform, err)
	}
	return nil
}

// GetMapping returns the platform-local activity id for a fingerprint, if
// one has been recorded.
func (s *Store) GetMapping(fingerprint, platform string) (string, bool, error) {
	var activityID string
	err := s.db.QueryRow(`
		SELECT activity_id FROM platform_mappings WHERE fingerprint = ? AND platform = ?
	`, fingerprint, platform).Scan(&activityID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return activityID, true, nil
}

// GetMappingByPlatformID is the reverse lookup: platform + its own
// activity id -> fingerprint, if known.
func (s *Store) GetMappingByPlatformID(platform, activityID string) (string, bool, error) {
	var fingerprint string
	err := s.db.QueryRow(`
		SELECT fingerprint FROM platform_mappings WHERE platform = ? AND activity_id = ?
	`, platform, activityID).Scan(&fingerprint)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return fingerprint, true, nil
}

// MappingPlatforms returns every platform that currently holds a copy of
// the given fingerprint, used by the file cache to choose a download
// source (§4.8 step 3).
func (s *Store) MappingPlatforms(fingerprint string) ([]string, error) {
	rows, err := s.db.Query(`SELECT platform FROM platform_mappings WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}
