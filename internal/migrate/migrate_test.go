package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/catalog"
)

func TestLoadHistory_MissingFileReturnsEmptyMap(t *testing.T) {
	history, err := LoadHistory(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLoadHistory_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `{"w1":[{"workout_id":"w1","platform":"strava","external_id":"S1","success":true}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	history, err := LoadHistory(path)
	require.NoError(t, err)
	require.Len(t, history["w1"], 1)
	assert.Equal(t, "strava", history["w1"][0].Platform)
}

func TestRun_MigratesSuccessAndFailure(t *testing.T) {
	store, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	history := map[string][]LegacyStatus{
		"w1": {{WorkoutID: "w1", Platform: "strava", ExternalID: "S1", Success: true}},
		"w2": {{WorkoutID: "w2", Platform: "garmin", Success: false, ErrorMessage: "upload rejected"}},
	}
	activities := map[string]LegacyActivity{
		"w1": {WorkoutID: "w1", SportType: "ride", StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Distance: 10000, Duration: 1800},
		"w2": {WorkoutID: "w2", SportType: "run", StartTime: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Distance: 5000, Duration: 1500},
	}

	result, err := Run(store, history, activities)
	require.NoError(t, err)
	assert.Equal(t, 2, result.WorkoutsSeen)
	assert.Equal(t, 1, result.MappingsWritten)
	assert.Equal(t, 2, result.StatusesWritten)

	done, err := store.MigrationCompleted()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_SkipsWorkoutsWithoutActivityData(t *testing.T) {
	store, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	history := map[string][]LegacyStatus{"w1": {{WorkoutID: "w1", Platform: "strava", Success: true}}}

	result, err := Run(store, history, map[string]LegacyActivity{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedNoActivity)
	assert.Equal(t, 0, result.StatusesWritten)
}

func TestRun_IsNoOpAfterCompletion(t *testing.T) {
	store, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.MarkMigrationCompleted())

	result, err := Run(store, map[string][]LegacyStatus{"w1": {{WorkoutID: "w1", Platform: "strava", Success: true}}}, map[string]LegacyActivity{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}
