package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) ListActivities(ctx context.Context, since time.Time, limit int) ([]ActivityRecord, error) {
	return nil, nil
}
func (s *stubAdapter) Download(ctx context.Context, id, format string) ([]byte, string, error) {
	return nil, "", nil
}
func (s *stubAdapter) Upload(ctx context.Context, data []byte, format string, meta UploadMetadata) (UploadOutcome, error) {
	return UploadOutcome{}, nil
}
func (s *stubAdapter) SupportedUploadFormats() []string { return []string{"fit"} }
func (s *stubAdapter) Info() Info                        { return Info{PlatformName: s.name} }
func (s *stubAdapter) HealthCheck(ctx context.Context) HealthStatus { return HealthOK }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("strava", &stubAdapter{name: "strava"})

	a, ok := r.Get("strava")
	assert.True(t, ok)
	assert.Equal(t, "strava", a.Info().PlatformName)

	_, ok = r.Get("garmin")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("strava", &stubAdapter{name: "strava"})
	r.Register("garmin", &stubAdapter{name: "garmin"})

	assert.ElementsMatch(t, []string{"strava", "garmin"}, r.Names())
}
