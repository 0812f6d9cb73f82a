package transcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupports(t *testing.T) {
	tr := Transcoder{}
	assert.True(t, tr.Supports("fit", "gpx"))
	assert.True(t, tr.Supports("fit", "tcx"))
	assert.False(t, tr.Supports("fit", "fit"))
	assert.False(t, tr.Supports("gpx", "fit"))
	assert.False(t, tr.Supports("tcx", "gpx"))
}

func TestEncodeGPX_RequiresGeolocatedPoints(t *testing.T) {
	_, err := encodeGPX([]trackPoint{{Time: time.Now(), HasLatLon: false}})
	require.Error(t, err)
}

func TestEncodeGPX_ProducesTrackpoints(t *testing.T) {
	points := []trackPoint{
		{Time: time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC), Lat: 45.5, Lon: -122.6, HasLatLon: true, Elevation: 12.3, HasElev: true},
		{Time: time.Date(2025, 1, 10, 6, 0, 1, 0, time.UTC), Lat: 45.501, Lon: -122.601, HasLatLon: true},
	}
	data, err := encodeGPX(points)
	require.NoError(t, err)
	assert.Contains(t, string(data), `lat="45.5"`)
	assert.Contains(t, string(data), "<trkpt")
}

func TestEncodeTCX_ProducesTrackpoints(t *testing.T) {
	points := []trackPoint{
		{Time: time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC), Lat: 45.5, Lon: -122.6, HasLatLon: true, HeartRate: 142},
	}
	data, err := encodeTCX(points)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<HeartRateBpm>")
	assert.Contains(t, string(data), "<LatitudeDegrees>45.5</LatitudeDegrees>")
}

func TestTranscode_UnsupportedSourceRejected(t *testing.T) {
	tr := Transcoder{}
	_, err := tr.Transcode([]byte("data"), "gpx", "fit")
	require.Error(t, err)
}

func TestTranscode_EmptyFitRejected(t *testing.T) {
	tr := Transcoder{}
	_, err := tr.Transcode([]byte{}, "fit", "gpx")
	require.Error(t, err)
}
