// Package config loads and validates FitSync's persistent configuration
// file, .app_config.json (§6). Grounded on the teacher's
// internal/config/config.go: the same Load/Save/CreateExample/Validate
// shape and ErrNoConfig sentinel, generalized from one platform's
// credentials to one credential block per supported platform plus a
// SyncTunables block.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root of .app_config.json.
type Config struct {
	Strava      StravaConfig      `json:"strava"`
	Garmin      GarminConfig      `json:"garmin"`
	IGPSport    IGPSportConfig    `json:"igpsport"`
	OneDrive    OneDriveConfig    `json:"onedrive"`
	IntervalsICU IntervalsICUConfig `json:"intervals_icu"`
	Tunables    SyncTunables      `json:"sync"`
}

// StravaConfig holds Strava OAuth2 client credentials. Session tokens
// (access/refresh token, expiry) are adapter-writable and live in the
// Catalog Store's SyncConfig table, not here — §6 distinguishes
// user-supplied credentials from adapter-rewritable session state.
type StravaConfig struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// GarminConfig holds Garmin Connect's username/password pair (Garmin has
// no public OAuth2 flow; the adapter establishes and persists its own
// session cookie, again via the Catalog Store).
type GarminConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// IGPSportConfig holds IGPSport credentials.
type IGPSportConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// OneDriveConfig holds a Microsoft Graph OAuth2 app registration.
type OneDriveConfig struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TenantID     string `json:"tenant_id"`
	FolderPath   string `json:"folder_path"`
}

// IntervalsICUConfig holds an intervals.icu API key (athlete-scoped,
// HTTP basic auth, no refresh cycle).
type IntervalsICUConfig struct {
	Enabled   bool   `json:"enabled"`
	AthleteID string `json:"athlete_id"`
	APIKey    string `json:"api_key"`
}

// SyncTunables are the sync knobs, kept in config rather than process
// globals. This block is the only source of their values: they are not
// written to or read from the Catalog Store's SyncConfig rows.
type SyncTunables struct {
	BatchSize           int     `json:"batch_size"`
	MatcherMatchScore   float64 `json:"matcher_match_score"`
	MatcherAmbiguousScore float64 `json:"matcher_ambiguous_score"`
	CacheTTLDays        int     `json:"cache_ttl_days"`
	MaxRetries          int     `json:"max_retries"`
	Directions          []string `json:"directions"`
}

// ErrNoConfig is returned when the config file doesn't exist.
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the configuration used to seed a fresh install.
func DefaultConfig() Config {
	return Config{
		Tunables: SyncTunables{
			BatchSize:             10,
			MatcherMatchScore:     0.80,
			MatcherAmbiguousScore: 0.60,
			CacheTTLDays:          30,
			MaxRetries:            3,
		},
	}
}

// Load reads the configuration from the given project root's
// .app_config.json.
func Load(projectRoot string) (*Config, error) {
	path := configPath(projectRoot)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Tunables.BatchSize == 0 {
		cfg.Tunables.BatchSize = defaults.Tunables.BatchSize
	}
	if cfg.Tunables.MatcherMatchScore == 0 {
		cfg.Tunables.MatcherMatchScore = defaults.Tunables.MatcherMatchScore
	}
	if cfg.Tunables.MatcherAmbiguousScore == 0 {
		cfg.Tunables.MatcherAmbiguousScore = defaults.Tunables.MatcherAmbiguousScore
	}
	if cfg.Tunables.CacheTTLDays == 0 {
		cfg.Tunables.CacheTTLDays = defaults.Tunables.CacheTTLDays
	}
	if cfg.Tunables.MaxRetries == 0 {
		cfg.Tunables.MaxRetries = defaults.Tunables.MaxRetries
	}

	return &cfg, nil
}

// Save writes the configuration to <projectRoot>/.app_config.json.
func Save(projectRoot string, cfg *Config) error {
	if err := os.MkdirAll(projectRoot, 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(configPath(projectRoot), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample writes a placeholder config if none exists yet.
func CreateExample(projectRoot string) error {
	path := configPath(projectRoot)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{ClientID: "YOUR_CLIENT_ID", ClientSecret: "YOUR_CLIENT_SECRET"}
	example.Tunables.Directions = []string{"strava_to_garmin"}

	return Save(projectRoot, &example)
}

// Validate checks that every enabled platform has the credentials it
// needs, and that tunables are in sane ranges.
func (c *Config) Validate() error {
	if c.Strava.Enabled {
		if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
			return errors.New("strava.client_id is required when strava is enabled")
		}
		if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
			return errors.New("strava.client_secret is required when strava is enabled")
		}
	}
	if c.Garmin.Enabled {
		if c.Garmin.Username == "" || c.Garmin.Password == "" {
			return errors.New("garmin.username and garmin.password are required when garmin is enabled")
		}
	}
	if c.IGPSport.Enabled {
		if c.IGPSport.Username == "" || c.IGPSport.Password == "" {
			return errors.New("igpsport.username and igpsport.password are required when igpsport is enabled")
		}
	}
	if c.OneDrive.Enabled {
		if c.OneDrive.ClientID == "" || c.OneDrive.ClientSecret == "" || c.OneDrive.TenantID == "" {
			return errors.New("onedrive.client_id, client_secret and tenant_id are required when onedrive is enabled")
		}
	}
	if c.IntervalsICU.Enabled {
		if c.IntervalsICU.AthleteID == "" || c.IntervalsICU.APIKey == "" {
			return errors.New("intervals_icu.athlete_id and api_key are required when intervals_icu is enabled")
		}
	}

	if c.Tunables.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Tunables.BatchSize)
	}
	if c.Tunables.MatcherAmbiguousScore > c.Tunables.MatcherMatchScore {
		return fmt.Errorf("sync.matcher_ambiguous_score (%v) must be <= sync.matcher_match_score (%v)",
			c.Tunables.MatcherAmbiguousScore, c.Tunables.MatcherMatchScore)
	}

	return nil
}

// CacheTTL returns the configured cache TTL as a time.Duration (§4.8).
func (t SyncTunables) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLDays) * 24 * time.Hour
}

func configPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".app_config.json")
}

// DefaultProjectRoot returns ~/.fitsync, the default persisted-state
// directory (§6), mirroring the teacher's ~/.runner convention.
func DefaultProjectRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".fitsync"), nil
}
