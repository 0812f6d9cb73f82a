package intervalsicu

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

func TestGet_UnauthorizedMapsToErrUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	c := NewClient(srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "42", "key")
	_, err := c.get(t.Context(), "/athlete/42")
	require.ErrorIs(t, err, platform.ErrUnauthorized)
}

func TestInfo(t *testing.T) {
	c := NewClient(nil, ratelimit.New(ratelimit.StravaDefaults()), "42", "key")
	assert.Equal(t, "intervals_icu", c.Info().PlatformName)
}

func TestUpload_ConflictIsDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	c := NewClient(srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "42", "key")
	outcome, err := c.Upload(t.Context(), []byte("data"), "fit", platform.UploadMetadata{})
	require.NoError(t, err)
	assert.Equal(t, platform.UploadDuplicate, outcome.Status)
}
