package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.Tunables.BatchSize)
	assert.Equal(t, 0.80, cfg.Tunables.MatcherMatchScore)
	assert.Equal(t, 0.60, cfg.Tunables.MatcherAmbiguousScore)
	assert.Equal(t, 30, cfg.Tunables.CacheTTLDays)
	assert.False(t, cfg.Strava.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errContains string
	}{
		{
			name:   "disabled platforms need no credentials",
			mutate: func(c *Config) {},
		},
		{
			name: "enabled strava without client id",
			mutate: func(c *Config) {
				c.Strava = StravaConfig{Enabled: true, ClientSecret: "s"}
			},
			expectError: true,
			errContains: "strava.client_id",
		},
		{
			name: "enabled strava with placeholder secret",
			mutate: func(c *Config) {
				c.Strava = StravaConfig{Enabled: true, ClientID: "1", ClientSecret: "YOUR_CLIENT_SECRET"}
			},
			expectError: true,
			errContains: "strava.client_secret",
		},
		{
			name: "enabled garmin without password",
			mutate: func(c *Config) {
				c.Garmin = GarminConfig{Enabled: true, Username: "u"}
			},
			expectError: true,
			errContains: "garmin",
		},
		{
			name: "bad batch size",
			mutate: func(c *Config) {
				c.Tunables.BatchSize = 0
			},
			expectError: true,
			errContains: "batch_size",
		},
		{
			name: "ambiguous threshold above match threshold",
			mutate: func(c *Config) {
				c.Tunables.MatcherAmbiguousScore = 0.9
			},
			expectError: true,
			errContains: "matcher_ambiguous_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrNoConfig)

	require.NoError(t, CreateExample(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "YOUR_CLIENT_ID", loaded.Strava.ClientID)
	assert.Equal(t, []string{"strava_to_garmin"}, loaded.Tunables.Directions)

	_, statErr := os.Stat(filepath.Join(dir, ".app_config.json"))
	require.NoError(t, statErr)
}

func TestCacheTTL(t *testing.T) {
	tun := SyncTunables{CacheTTLDays: 30}
	assert.Equal(t, 30*24, int(tun.CacheTTL().Hours()))
}
