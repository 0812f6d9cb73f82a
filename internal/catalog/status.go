package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// GetStatus returns the current sync status for a direction, if any row
// exists yet.
func (s *Store) GetStatus(fingerprint, source, target string) (*SyncStatusRow, error) {
	row := s.db.QueryRow(`
		SELECT fingerprint, source_platform, target_platform, status, reason, retry_count, updated_at
		FROM sync_status WHERE fingerprint = ? AND source_platform = ? AND target_platform = ?
	`, fingerprint, source, target)

	var st SyncStatusRow
	var status, updatedAt string
	var reason sql.NullString

	err := row.Scan(&st.Fingerprint, &st.SourcePlatform, &st.TargetPlatform, &status, &reason, &st.RetryCount, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Status = Status(status)
	st.Reason = reason.String
	if st.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &st, nil
}

// SetStatus transitions a (fingerprint, source, destination) status row.
// Terminal statuses (synced, duplicate) never regress to pending —
// attempting to do so is a silent no-op, matching §4.4's "the only
// allowed reset is an explicit administrative clear" (ClearStatus below).
func (s *Store) SetStatus(fingerprint, source, target string, status Status, reason string) error {
	current, err := s.GetStatus(fingerprint, source, target)
	if err != nil {
		return err
	}
	if current != nil && current.Status.terminal() && status == StatusPending {
		return nil
	}

	retryCount := 0
	if current != nil {
		retryCount = current.RetryCount
	}
	if status == StatusPending && current != nil && current.Status == StatusPending {
		retryCount++
	}

	_, err = s.db.Exec(`
		INSERT INTO sync_status (fingerprint, source_platform, target_platform, status, reason, retry_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, source_platform, target_platform) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at
	`, fingerprint, source, target, string(status), reason, retryCount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("setting status (%s, %s->%s): %w", fingerprint, source, target, err)
	}
	return nil
}

// ClearStatus performs the explicit administrative reset §4.4 allows,
// deleting the row entirely so the next sync treats the activity as new
// for this direction.
func (s *Store) ClearStatus(fingerprint, source, target string) error {
	_, err := s.db.Exec(`
		DELETE FROM sync_status WHERE fingerprint = ? AND source_platform = ? AND target_platform = ?
	`, fingerprint, source, target)
	return err
}

// ListPending returns up to limit fingerprints with status pending (or no
// row yet is not covered here — callers check GetStatus's nil case
// themselves) for a direction, used to resume partially-retried activities.
func (s *Store) ListPending(source, target string, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT fingerprint FROM sync_status
		WHERE source_platform = ? AND target_platform = ? AND status = ?
		ORDER BY updated_at ASC
		LIMIT ?
	`, source, target, string(StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// DirectionCounts summarizes terminal/pending counts for a direction, fed
// into the driver's user-visible per-direction summary (§7).
type DirectionCounts struct {
	Synced, Duplicate, Skipped, Failed, Pending int
}

func (s *Store) DirectionCounts(source, target string) (DirectionCounts, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*) FROM sync_status
		WHERE source_platform = ? AND target_platform = ?
		GROUP BY status
	`, source, target)
	if err != nil {
		return DirectionCounts{}, err
	}
	defer rows.Close()

	var counts DirectionCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return DirectionCounts{}, err
		}
		switch Status(status) {
		case StatusSynced:
			counts.Synced = n
		case StatusDuplicate:
			counts.Duplicate = n
		case StatusSkipped:
			counts.Skipped = n
		case StatusFailed:
			counts.Failed = n
		case StatusPending:
			counts.Pending = n
		}
	}
	return counts, rows.Err()
}
