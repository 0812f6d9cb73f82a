package onedrive

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

func TestSupportedUploadFormats_PrefersGPX(t *testing.T) {
	c := NewClient(http.DefaultClient, ratelimit.New(ratelimit.StravaDefaults()), "")
	assert.Equal(t, "gpx", c.SupportedUploadFormats()[0])
}

func TestSanitizeFileName(t *testing.T) {
	start := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	name := sanitizeFileName("Morning/Ride: fast", start)
	assert.Equal(t, "20250110T060000Z_Morning_Ride_ fast", name)
}

func TestListActivities_NotSupported(t *testing.T) {
	c := NewClient(http.DefaultClient, ratelimit.New(ratelimit.StravaDefaults()), "")
	_, err := c.ListActivities(t.Context(), time.Time{}, 10)
	require.Error(t, err)
}

func TestUpload_ConflictIsDuplicateNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "")
	prev := graphBaseURL
	graphBaseURL = srv.URL
	defer func() { graphBaseURL = prev }()

	outcome, err := c.Upload(t.Context(), []byte("gpxdata"), "gpx", platform.UploadMetadata{Name: "Ride", StartTime: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, platform.UploadDuplicate, outcome.Status)
}
