package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordCache registers a downloaded or transcoded file against its
// (fingerprint, format) key (§3, §4.8).
func (s *Store) RecordCache(fingerprint, format, path string, size int64) error {
	_, err := s.db.Exec(`
		INSERT INTO file_cache (fingerprint, file_format, file_path, file_size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, file_format) DO UPDATE SET
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			created_at = excluded.created_at
	`, fingerprint, format, path, size, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording cache entry (%s, %s): %w", fingerprint, format, err)
	}
	return nil
}

// GetCache looks up a cache entry.
func (s *Store) GetCache(fingerprint, format string) (*CacheEntry, error) {
	row := s.db.QueryRow(`
		SELECT fingerprint, file_format, file_path, file_size, created_at
		FROM file_cache WHERE fingerprint = ? AND file_format = ?
	`, fingerprint, format)

	var e CacheEntry
	var createdAt string
	err := row.Scan(&e.Fingerprint, &e.FileFormat, &e.FilePath, &e.FileSize, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &e, nil
}

// AnyCacheFormat returns any one cached entry for the fingerprint,
// regardless of format, used by ensure_file's transcode branch (§4.8 step
// 2: "if cache has (fp, any_format)...").
func (s *Store) AnyCacheFormat(fingerprint string) (*CacheEntry, error) {
	row := s.db.QueryRow(`
		SELECT fingerprint, file_format, file_path, file_size, created_at
		FROM file_cache WHERE fingerprint = ? LIMIT 1
	`, fingerprint)

	var e CacheEntry
	var createdAt string
	err := row.Scan(&e.Fingerprint, &e.FileFormat, &e.FilePath, &e.FileSize, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &e, nil
}

// PurgeCache deletes cache entries older than the given age and returns
// their file paths so the caller can remove them from disk. A zero
// olderThan purges everything (used by §8's round-trip law test and by
// --cleanup-cache).
func (s *Store) PurgeCache(olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	rows, err := s.db.Query(`SELECT file_path FROM file_cache WHERE created_at <= ?`, cutoff)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM file_cache WHERE created_at <= ?`, cutoff); err != nil {
		return nil, err
	}
	return paths, nil
}

// RemoveCacheEntry deletes a single (fingerprint, format) row, used by the
// sweep validator when the referenced file is missing on disk (§3
// invariant: "on startup a validator sweeps and removes dangling
// entries").
func (s *Store) RemoveCacheEntry(fingerprint, format string) error {
	_, err := s.db.Exec(`DELETE FROM file_cache WHERE fingerprint = ? AND file_format = ?`, fingerprint, format)
	return err
}

// AllCacheEntries returns every cache row, used by the sweep validator.
func (s *Store) AllCacheEntries() ([]CacheEntry, error) {
	rows, err := s.db.Query(`SELECT fingerprint, file_format, file_path, file_size, created_at FROM file_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var createdAt string
		if err := rows.Scan(&e.Fingerprint, &e.FileFormat, &e.FilePath, &e.FileSize, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
