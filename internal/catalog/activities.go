package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertActivity inserts or updates an activity record by fingerprint.
// Idempotent: calling it twice with identical fields leaves the row
// unchanged except for updated_at (§4.4, §8 idempotence).
func (s *Store) UpsertActivity(a *ActivityRecord) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO activity_records
			(fingerprint, name, sport_type, start_time, distance, duration, elevation_gain, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			name = excluded.name,
			sport_type = excluded.sport_type,
			start_time = excluded.start_time,
			distance = excluded.distance,
			duration = excluded.duration,
			elevation_gain = excluded.elevation_gain,
			updated_at = excluded.updated_at
	`,
		a.Fingerprint, a.Name, a.SportType, a.StartTime.UTC().Format(time.RFC3339),
		a.Distance, a.Duration, a.ElevationGain,
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting activity %s: %w", a.Fingerprint, err)
	}
	return nil
}

// GetActivity looks up an activity by fingerprint.
func (s *Store) GetActivity(fingerprint string) (*ActivityRecord, error) {
	row := s.db.QueryRow(`
		SELECT fingerprint, name, sport_type, start_time, distance, duration, elevation_gain, created_at, updated_at
		FROM activity_records WHERE fingerprint = ?
	`, fingerprint)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, ErrActivityNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*ActivityRecord, error) {
	var a ActivityRecord
	var startTime, createdAt, updatedAt string

	if err := row.Scan(
		&a.Fingerprint, &a.Name, &a.SportType, &startTime, &a.Distance, &a.Duration,
		&a.ElevationGain, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if a.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return nil, fmt.Errorf("parsing start_time: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
