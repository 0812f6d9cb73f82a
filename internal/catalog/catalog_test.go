package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedActivity inserts the parent activity record that platform_mappings
// and sync_status rows reference through their foreign keys.
func seedActivity(t *testing.T, s *Store, fp string) {
	t.Helper()
	require.NoError(t, s.UpsertActivity(&ActivityRecord{
		Fingerprint: fp,
		SportType:   "ride",
		StartTime:   time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC),
	}))
}

func TestUpsertActivity_IdempotentOnIdenticalInput(t *testing.T) {
	s := setupTestStore(t)
	a := &ActivityRecord{
		Fingerprint: "abc123",
		Name:        "Morning Ride",
		SportType:   "ride",
		StartTime:   time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC),
		Distance:    20000,
		Duration:    3600,
	}
	require.NoError(t, s.UpsertActivity(a))
	require.NoError(t, s.UpsertActivity(a))

	got, err := s.GetActivity("abc123")
	require.NoError(t, err)
	assert.Equal(t, "Morning Ride", got.Name)
}

func TestRecordMapping_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	seedActivity(t, s, "fp1")
	require.NoError(t, s.RecordMapping("fp1", "strava", "S1"))

	id, ok, err := s.GetMapping("fp1", "strava")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "S1", id)

	fp, ok, err := s.GetMappingByPlatformID("strava", "S1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fp1", fp)
}

func TestSetStatus_NeverRegressesFromSynced(t *testing.T) {
	s := setupTestStore(t)
	seedActivity(t, s, "fp1")
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusSynced, ""))
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusPending, ""))

	got, err := s.GetStatus("fp1", "strava", "garmin")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, got.Status)
}

func TestSetStatus_IdempotentUnderRetry(t *testing.T) {
	s := setupTestStore(t)
	seedActivity(t, s, "fp1")
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusSynced, ""))
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusSynced, ""))

	counts, err := s.DirectionCounts("strava", "garmin")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Synced)
}

func TestClearStatus_IsTheOnlyReset(t *testing.T) {
	s := setupTestStore(t)
	seedActivity(t, s, "fp1")
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusSynced, ""))
	require.NoError(t, s.ClearStatus("fp1", "strava", "garmin"))

	got, err := s.GetStatus("fp1", "strava", "garmin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_RoundTripAndPurge(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.RecordCache("fp1", "fit", "/cache/fp1.fit", 1024))

	entry, err := s.GetCache("fp1", "fit")
	require.NoError(t, err)
	assert.Equal(t, "/cache/fp1.fit", entry.FilePath)

	paths, err := s.PurgeCache(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/cache/fp1.fit"}, paths)

	_, err = s.GetCache("fp1", "fit")
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCursor_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	_, ok, err := s.GetCursor("strava")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetCursor("strava", now))

	got, ok, err := s.GetCursor("strava")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestSyncedImpliesMappingInvariant(t *testing.T) {
	// §8: if sync_status(fp, src, dst) = synced, then
	// platform_mappings(fp, dst) exists. The executor is responsible for
	// establishing this ordering (record mapping before marking synced);
	// this test documents and locks in that contract at the store level.
	s := setupTestStore(t)
	seedActivity(t, s, "fp1")
	require.NoError(t, s.RecordMapping("fp1", "garmin", "G1"))
	require.NoError(t, s.SetStatus("fp1", "strava", "garmin", StatusSynced, ""))

	_, ok, err := s.GetMapping("fp1", "garmin")
	require.NoError(t, err)
	assert.True(t, ok)
}
