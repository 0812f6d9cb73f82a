package filecache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dunky-Z/FitSync/internal/catalog"
)

// fitData is a minimal valid FIT file: a 14-byte header, one file_id
// definition and data message (type activity), and the file CRC, so it
// passes validateFIT.
var fitData = []byte{
	0x0E, 0x20, 0x54, 0x08, 0x0B, 0x00, 0x00, 0x00, 0x2E, 0x46, 0x49, 0x54, 0xF8, 0x62,
	0x40, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x04,
	0x54, 0x2F,
}

type fakeDownloader struct {
	data   []byte
	format string
	err    error
}

func (f *fakeDownloader) Download(id, preferred string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.format, nil
}

type fakeTranscoder struct{}

func (fakeTranscoder) Supports(from, to string) bool { return from == "fit" && to == "gpx" }
func (fakeTranscoder) Transcode(data []byte, from, to string) ([]byte, error) {
	return append([]byte("gpx:"), data...), nil
}

func newTestCache(t *testing.T) (*Cache, *catalog.Store) {
	t.Helper()
	store, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	c, err := New(dir, store)
	require.NoError(t, err)
	return c, store
}

func TestEnsureFile_DownloadsOnMiss(t *testing.T) {
	c, _ := newTestCache(t)
	src := Source{Platform: "strava", ActivityID: "S1", Downloader: &fakeDownloader{data: fitData, format: "fit"}}

	path, err := c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(fitData), string(data))
}

func TestEnsureFile_CacheHitSkipsDownload(t *testing.T) {
	c, _ := newTestCache(t)
	calls := 0
	src := Source{Platform: "strava", ActivityID: "S1", Downloader: &countingDownloader{&calls}}

	_, err := c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)
	_, err = c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

type countingDownloader struct{ calls *int }

func (d *countingDownloader) Download(id, preferred string) ([]byte, string, error) {
	*d.calls++
	return fitData, "fit", nil
}

func TestEnsureFile_TranscodesFromCachedFormat(t *testing.T) {
	c, _ := newTestCache(t)
	src := Source{Platform: "strava", ActivityID: "S1", Downloader: &fakeDownloader{data: fitData, format: "fit"}}

	_, err := c.EnsureFile("fp1", "fit", []Source{src}, fakeTranscoder{})
	require.NoError(t, err)

	path, err := c.EnsureFile("fp1", "gpx", nil, fakeTranscoder{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gpx:"+string(fitData), string(data))
}

func TestSweep_RemovesDanglingEntry(t *testing.T) {
	c, store := newTestCache(t)
	src := Source{Platform: "strava", ActivityID: "S1", Downloader: &fakeDownloader{data: fitData, format: "fit"}}
	path, err := c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	require.NoError(t, c.Sweep(30*24*time.Hour))

	_, err = store.GetCache("fp1", "fit")
	assert.ErrorIs(t, err, catalog.ErrCacheNotFound)
}

func TestEnsureFile_EmptyCacheDirCausesRedownloadNotFailure(t *testing.T) {
	c, _ := newTestCache(t)
	src := Source{Platform: "strava", ActivityID: "S1", Downloader: &fakeDownloader{data: fitData, format: "fit"}}
	path, err := c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(c.dir))
	require.NoError(t, os.MkdirAll(c.dir, 0755))

	path2, err := c.EnsureFile("fp1", "fit", []Source{src}, nil)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}
