package igpsport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

func TestLogin_MissingTokenIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	_, err := Login(t.Context(), srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "user", "pass")
	require.ErrorIs(t, err, platform.ErrUnauthorized)
}

func TestLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"access_token":"tok123"}}`))
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	c, err := Login(t.Context(), srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "user", "pass")
	require.NoError(t, err)
	assert.Equal(t, "tok123", c.token)
}

func TestInfo(t *testing.T) {
	c := NewClient(nil, ratelimit.New(ratelimit.StravaDefaults()), "tok")
	assert.Equal(t, "igpsport", c.Info().PlatformName)
}

func TestUpload_DuplicateCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":4001,"message":"duplicate"}`))
	}))
	defer srv.Close()

	prev := baseURL
	baseURL = srv.URL
	defer func() { baseURL = prev }()

	c := NewClient(srv.Client(), ratelimit.New(ratelimit.StravaDefaults()), "tok")
	outcome, err := c.Upload(t.Context(), []byte("data"), "fit", platform.UploadMetadata{})
	require.NoError(t, err)
	assert.Equal(t, platform.UploadDuplicate, outcome.Status)
}
