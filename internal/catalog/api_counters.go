package catalog

import (
	"database/sql"
	"time"
)

// BumpAPI increments the durable per-platform call counters (§4.4
// "bump_api(platform, n)"). This mirrors, but is independent of, the live
// in-memory ratelimit.Governor: the governor is what gates calls in real
// time, this row is what survives a restart for audit/--status purposes.
func (s *Store) BumpAPI(platform string, n int) error {
	row := s.db.QueryRow(`SELECT daily_calls, quarter_hour_calls FROM api_limits WHERE platform = ?`, platform)
	var daily, quarter int
	err := row.Scan(&daily, &quarter)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`
			INSERT INTO api_limits (platform, daily_calls, quarter_hour_calls, daily_limit, quarter_hour_limit, last_reset)
			VALUES (?, ?, ?, 0, 0, ?)
		`, platform, n, n, time.Now().UTC().Format(time.RFC3339))
		return err
	}
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		UPDATE api_limits SET daily_calls = ?, quarter_hour_calls = ? WHERE platform = ?
	`, daily+n, quarter+n, platform)
	return err
}

// ResetAPIWindow zeroes the 15-minute counter for a platform (the daily
// counter resets on its own 24h cycle and is left alone).
func (s *Store) ResetAPIWindow(platform string) error {
	_, err := s.db.Exec(`
		UPDATE api_limits SET quarter_hour_calls = 0, last_reset = ? WHERE platform = ?
	`, time.Now().UTC().Format(time.RFC3339), platform)
	return err
}

// GetAPI returns the durable counters for a platform, or a zero row if
// none has been recorded yet.
func (s *Store) GetAPI(platform string) (ApiCounterRow, error) {
	row := s.db.QueryRow(`
		SELECT platform, daily_calls, quarter_hour_calls, daily_limit, quarter_hour_limit, last_reset
		FROM api_limits WHERE platform = ?
	`, platform)

	var c ApiCounterRow
	var lastReset string
	err := row.Scan(&c.Platform, &c.DailyCalls, &c.QuarterHourCalls, &c.DailyLimit, &c.QuarterHourLimit, &lastReset)
	if err == sql.ErrNoRows {
		return ApiCounterRow{Platform: platform}, nil
	}
	if err != nil {
		return ApiCounterRow{}, err
	}
	c.LastReset, err = time.Parse(time.RFC3339, lastReset)
	return c, err
}
