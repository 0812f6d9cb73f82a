package garmin

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/ratelimit"
)

type memSessionStore struct {
	cookies   []*http.Cookie
	expiresAt time.Time
	loadErr   error
}

func (m *memSessionStore) Load() ([]*http.Cookie, time.Time, error) {
	if m.loadErr != nil {
		return nil, time.Time{}, m.loadErr
	}
	return m.cookies, m.expiresAt, nil
}

func (m *memSessionStore) Save(cookies []*http.Cookie, expiresAt time.Time) error {
	m.cookies = cookies
	m.expiresAt = expiresAt
	return nil
}

func TestNewClient_NoStoredSessionStaysLoggedOut(t *testing.T) {
	store := &memSessionStore{loadErr: assertError{}}
	c, err := NewClient(store, ratelimit.New(ratelimit.StravaDefaults()))
	require.NoError(t, err)
	assert.False(t, c.loggedIn)
}

type assertError struct{}

func (assertError) Error() string { return "no session" }

func TestCheckAuth_RequiresLogin(t *testing.T) {
	c := &Client{}
	err := c.checkAuth()
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrUnauthorized)
}

func TestListActivities_RequiresAuth(t *testing.T) {
	c := &Client{governor: ratelimit.New(ratelimit.StravaDefaults())}
	_, err := c.ListActivities(t.Context(), time.Time{}, 10)
	assert.ErrorIs(t, err, platform.ErrUnauthorized)
}

func TestHealthCheck_LoggedOutIsDown(t *testing.T) {
	c := &Client{}
	assert.Equal(t, platform.HealthDown, c.HealthCheck(t.Context()))
}

func TestInfo(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "garmin", c.Info().PlatformName)
}
