package catalog

import "database/sql"

// migrate runs all schema migrations. Grounded on the teacher's
// internal/store/migrations.go (sequential db.Exec over a migration
// slice); the table shapes follow §6's representative DDL sketch, with
// indices per §4.4 ("indices on (platform, platform_id), (source,
// destination, status), and (fingerprint, format)").
func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS activity_records (
			fingerprint TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sport_type TEXT NOT NULL,
			start_time TEXT NOT NULL,
			distance REAL NOT NULL,
			duration INTEGER NOT NULL,
			elevation_gain REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_records_start_time ON activity_records(start_time)`,

		`CREATE TABLE IF NOT EXISTS platform_mappings (
			fingerprint TEXT NOT NULL,
			platform TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (fingerprint, platform),
			FOREIGN KEY (fingerprint) REFERENCES activity_records(fingerprint)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_platform_mappings_reverse ON platform_mappings(platform, activity_id)`,

		`CREATE TABLE IF NOT EXISTS sync_status (
			fingerprint TEXT NOT NULL,
			source_platform TEXT NOT NULL,
			target_platform TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (fingerprint, source_platform, target_platform),
			FOREIGN KEY (fingerprint) REFERENCES activity_records(fingerprint)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_status_direction ON sync_status(source_platform, target_platform, status)`,

		`CREATE TABLE IF NOT EXISTS file_cache (
			fingerprint TEXT NOT NULL,
			file_format TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (fingerprint, file_format)
		)`,

		`CREATE TABLE IF NOT EXISTS sync_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS api_limits (
			platform TEXT PRIMARY KEY,
			daily_calls INTEGER NOT NULL DEFAULT 0,
			quarter_hour_calls INTEGER NOT NULL DEFAULT 0,
			daily_limit INTEGER NOT NULL DEFAULT 0,
			quarter_hour_limit INTEGER NOT NULL DEFAULT 0,
			last_reset TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
