package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/catalog"
	"github.com/Dunky-Z/FitSync/internal/filecache"
	"github.com/Dunky-Z/FitSync/internal/platform"
)

// fitData is a minimal valid FIT file (header, one file_id message, CRC),
// so the file cache's FIT validation accepts the fake download.
var fitData = []byte{
	0x0E, 0x20, 0x54, 0x08, 0x0B, 0x00, 0x00, 0x00, 0x2E, 0x46, 0x49, 0x54, 0xF8, 0x62,
	0x40, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x04,
	0x54, 0x2F,
}

type fakeAdapter struct {
	name       string
	activities []platform.ActivityRecord
	downloads  map[string][]byte
	uploads    []platform.UploadMetadata
	uploadID   string
	listErr    error
	uploadErr  error
	// failAfter, when nonzero, makes the (failAfter+1)th Upload call
	// onward return uploadErr instead of succeeding — used to simulate a
	// governor denial partway through a batch.
	failAfter int
}

func (f *fakeAdapter) ListActivities(ctx context.Context, since time.Time, limit int) ([]platform.ActivityRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []platform.ActivityRecord
	for _, a := range f.activities {
		if since.IsZero() || a.StartTime.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAdapter) Download(ctx context.Context, id, format string) ([]byte, string, error) {
	data, ok := f.downloads[id]
	if !ok {
		return nil, "", platform.ErrNotFound
	}
	return data, "fit", nil
}

func (f *fakeAdapter) Upload(ctx context.Context, data []byte, format string, meta platform.UploadMetadata) (platform.UploadOutcome, error) {
	if f.failAfter > 0 && len(f.uploads) >= f.failAfter {
		return platform.UploadOutcome{}, f.uploadErr
	}
	if f.uploadErr != nil && f.failAfter == 0 {
		return platform.UploadOutcome{}, f.uploadErr
	}
	f.uploads = append(f.uploads, meta)
	return platform.UploadOutcome{Status: platform.UploadAccepted, RemoteID: f.uploadID}, nil
}

func (f *fakeAdapter) SupportedUploadFormats() []string { return []string{"fit"} }
func (f *fakeAdapter) Info() platform.Info              { return platform.Info{PlatformName: f.name} }
func (f *fakeAdapter) HealthCheck(ctx context.Context) platform.HealthStatus {
	return platform.HealthOK
}

func setup(t *testing.T) (*Executor, *catalog.Store, *fakeAdapter, *fakeAdapter) {
	t.Helper()
	store, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cache, err := filecache.New(t.TempDir(), store)
	require.NoError(t, err)

	src := &fakeAdapter{name: "strava", downloads: map[string][]byte{"S1": fitData}}
	dst := &fakeAdapter{name: "garmin", uploadID: "G1"}

	reg := platform.NewRegistry()
	reg.Register("strava", src)
	reg.Register("garmin", dst)

	exec := New(reg, store, cache, DefaultConfig(), nil)
	return exec, store, src, dst
}

func TestRun_FreshSyncOneActivity(t *testing.T) {
	exec, store, src, _ := setup(t)
	src.activities = []platform.ActivityRecord{{
		PlatformActivityID: "S1",
		SportType:          "ride",
		StartTime:          time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC),
		Distance:           20034,
		Duration:           3612,
		AvailableFormats:   []string{"fit"},
	}}

	dir := Direction{Source: "strava", Destination: "garmin"}
	report, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)

	counts := report.PerDirection[dir]
	assert.Equal(t, 1, counts.Synced)

	cursor, ok, err := store.GetCursor("strava")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cursor.Equal(src.activities[0].StartTime))
}

func TestRun_RerunProducesZeroUploads(t *testing.T) {
	exec, _, src, dst := setup(t)
	src.activities = []platform.ActivityRecord{{
		PlatformActivityID: "S1",
		SportType:          "ride",
		StartTime:          time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC),
		Distance:           20034,
		Duration:           3612,
		AvailableFormats:   []string{"fit"},
	}}
	dir := Direction{Source: "strava", Destination: "garmin"}

	_, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)
	require.Len(t, dst.uploads, 1)

	_, err = exec.Run(context.Background(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.Len(t, dst.uploads, 1) // unchanged
}

func TestRun_ManualActivitySkipped(t *testing.T) {
	exec, store, src, dst := setup(t)
	src.activities = []platform.ActivityRecord{{
		PlatformActivityID: "S2",
		SportType:          "run",
		StartTime:          time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC),
		Manual:             true,
	}}
	dir := Direction{Source: "strava", Destination: "garmin"}

	_, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.Empty(t, dst.uploads)

	counts, err := store.DirectionCounts("strava", "garmin")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Skipped)
}

func TestRun_EmptyListingAdvancesCursor(t *testing.T) {
	exec, store, _, _ := setup(t)
	dir := Direction{Source: "strava", Destination: "garmin"}

	_, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)

	_, ok, err := store.GetCursor("strava")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_RateLimitMidBatchAdvancesCursorToLastSuccess(t *testing.T) {
	exec, store, src, dst := setup(t)

	var activities []platform.ActivityRecord
	for i := 0; i < 10; i++ {
		id := string(rune('A' + i))
		src.downloads[id] = fitData
		activities = append(activities, platform.ActivityRecord{
			PlatformActivityID: id,
			SportType:          "ride",
			StartTime:          time.Date(2025, 1, 10, 6, i, 0, 0, time.UTC),
			AvailableFormats:   []string{"fit"},
		})
	}
	src.activities = activities
	dst.failAfter = 5
	dst.uploadErr = platform.ErrRateLimited

	dir := Direction{Source: "strava", Destination: "garmin"}
	report, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Halted[dir], platform.ErrRateLimited)
	assert.Len(t, dst.uploads, 5)

	cursor, ok, err := store.GetCursor("strava")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cursor.Equal(activities[4].StartTime), "cursor should sit at the 5th activity's start time, not the 10th's")
}

func TestRun_DuplicateAndSkippedShortCircuitOnRerun(t *testing.T) {
	exec, store, src, dst := setup(t)
	src.activities = []platform.ActivityRecord{{
		PlatformActivityID: "S1",
		SportType:          "ride",
		StartTime:          time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC),
		AvailableFormats:   []string{"fit"},
	}}
	dir := Direction{Source: "strava", Destination: "garmin"}

	_, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)

	rows, err := store.AllCacheEntries()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	fp := rows[0].Fingerprint

	require.NoError(t, store.SetStatus(fp, "strava", "garmin", catalog.StatusDuplicate, ""))
	_, err = exec.Run(context.Background(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.Len(t, dst.uploads, 1, "a duplicate status must not be re-uploaded")

	require.NoError(t, store.SetStatus(fp, "strava", "garmin", catalog.StatusSkipped, ""))
	_, err = exec.Run(context.Background(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.Len(t, dst.uploads, 1, "a skipped status must not be re-uploaded")
}

func TestRun_UnauthorizedHaltsDirectionNotProcess(t *testing.T) {
	exec, _, src, _ := setup(t)
	src.listErr = platform.ErrUnauthorized
	dir := Direction{Source: "strava", Destination: "garmin"}

	report, err := exec.Run(t.Context(), []Direction{dir}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Halted[dir], platform.ErrUnauthorized)
}

func TestPickFormat(t *testing.T) {
	assert.Equal(t, "fit", pickFormat("garmin", []string{"fit", "gpx"}, []string{"tcx", "fit"}))
	assert.Equal(t, "", pickFormat("garmin", []string{"gpx"}, []string{"tcx"}))
}

func TestPickFormat_PrefersFitOverTcxOverGpx(t *testing.T) {
	assert.Equal(t, "fit", pickFormat("garmin", []string{"gpx", "tcx", "fit"}, []string{"fit", "tcx", "gpx"}))
	assert.Equal(t, "tcx", pickFormat("garmin", []string{"gpx", "tcx"}, []string{"tcx", "gpx"}))
}

func TestPickFormat_OneDrivePrefersGPX(t *testing.T) {
	assert.Equal(t, "gpx", pickFormat("onedrive", []string{"fit", "gpx"}, []string{"fit", "gpx", "tcx"}))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, TierFatal, classifyError(platform.ErrUnauthorized))
	assert.Equal(t, TierFatal, classifyError(platform.ErrRateLimited))
	assert.Equal(t, TierSkip, classifyError(platform.ErrNoOriginalFile))
	assert.Equal(t, TierSkip, classifyError(platform.ErrNotFound))
	assert.Equal(t, TierRetryable, classifyError(platform.ErrTransport))
	assert.Equal(t, TierCatalogCorruption, classifyError(ErrCatalogCorruption))
	assert.Equal(t, TierSkip, classifyError(nil))
}
