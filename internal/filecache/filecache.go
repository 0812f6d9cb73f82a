// Package filecache implements the content-addressed local store of
// activity media files (C6, §4.8). Grounded on the Catalog Store's
// CacheEntry bookkeeping plus onedrive-go's executor.go download pattern
// (atomic write via a temp file + rename) for the actual download-to-disk
// mechanics.
package filecache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dunky-Z/FitSync/internal/catalog"
)

// Downloader is the subset of a Platform Adapter the cache needs to
// satisfy a miss (§4.6 download).
type Downloader interface {
	Download(platformActivityID, preferredFormat string) (data []byte, actualFormat string, err error)
}

// Transcoder is the opaque external collaborator §1 describes: FIT <-> TCX
// <-> GPX conversion is out of scope for the core, so the cache only
// depends on this narrow interface.
type Transcoder interface {
	// Supports reports whether a conversion from one format to another is
	// available.
	Supports(from, to string) bool
	// Transcode converts data from one format to another.
	Transcode(data []byte, from, to string) ([]byte, error)
}

// Cache is the file cache. One instance per process; EnsureFile writes
// files under a per-fingerprint advisory lock for the download window
// (§5), and Sweep deletes expired files and drops entries whose file is
// missing.
type Cache struct {
	dir     string
	catalog *catalog.Store

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a Cache rooted at <projectRoot>/activity_cache (§6).
func New(projectRoot string, store *catalog.Store) (*Cache, error) {
	dir := filepath.Join(projectRoot, "activity_cache")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir, catalog: store, locks: make(map[string]*sync.Mutex)}, nil
}

func (c *Cache) lockFor(fingerprint string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	m, ok := c.locks[fingerprint]
	if !ok {
		m = &sync.Mutex{}
		c.locks[fingerprint] = m
	}
	return m
}

func (c *Cache) path(fingerprint, format string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.%s", fingerprint, format))
}

// Source describes a platform known to hold the activity, used to satisfy
// a cache miss.
type Source struct {
	Platform   string
	ActivityID string
	Downloader Downloader
}

// EnsureFile implements §4.8's ensure_file fallback chain: cache hit,
// transcode from a different cached format, or download from a source
// platform (optionally transcoding the result). Returns the local file
// path.
func (c *Cache) EnsureFile(fingerprint, requiredFormat string, sources []Source, tc Transcoder) (string, error) {
	lock := c.lockFor(fingerprint)
	lock.Lock()
	defer lock.Unlock()

	// Step 1: exact cache hit.
	if entry, err := c.catalog.GetCache(fingerprint, requiredFormat); err == nil {
		if _, statErr := os.Stat(entry.FilePath); statErr == nil {
			return entry.FilePath, nil
		}
		_ = c.catalog.RemoveCacheEntry(fingerprint, requiredFormat)
	} else if err != catalog.ErrCacheNotFound {
		return "", err
	}

	// Step 2: transcode from a different cached format.
	if entry, err := c.catalog.AnyCacheFormat(fingerprint); err == nil {
		if _, statErr := os.Stat(entry.FilePath); statErr == nil && tc != nil && tc.Supports(entry.FileFormat, requiredFormat) {
			data, readErr := os.ReadFile(entry.FilePath)
			if readErr == nil {
				converted, tErr := tc.Transcode(data, entry.FileFormat, requiredFormat)
				if tErr == nil {
					return c.writeAndRegister(fingerprint, requiredFormat, converted)
				}
			}
		}
	} else if err != catalog.ErrCacheNotFound {
		return "", err
	}

	// Step 3: download from a source platform, transcoding if needed.
	for _, src := range sources {
		data, actualFormat, err := src.Downloader.Download(src.ActivityID, requiredFormat)
		if err != nil {
			continue
		}
		if actualFormat == "fit" {
			if err := validateFIT(data); err != nil {
				continue
			}
		}

		if _, err := c.writeAndRegister(fingerprint, actualFormat, data); err != nil {
			return "", err
		}

		if actualFormat == requiredFormat {
			return c.path(fingerprint, actualFormat), nil
		}
		if tc != nil && tc.Supports(actualFormat, requiredFormat) {
			converted, err := tc.Transcode(data, actualFormat, requiredFormat)
			if err != nil {
				return "", fmt.Errorf("transcoding %s->%s: %w", actualFormat, requiredFormat, err)
			}
			return c.writeAndRegister(fingerprint, requiredFormat, converted)
		}
		return "", fmt.Errorf("no transcoder path from %s to %s", actualFormat, requiredFormat)
	}

	return "", fmt.Errorf("no source platform available to fetch %s", fingerprint)
}

// writeAndRegister atomically writes data to the cache directory (temp
// file + rename, per onedrive-go's download pattern) and records the
// resulting CacheEntry.
func (c *Cache) writeAndRegister(fingerprint, format string, data []byte) (string, error) {
	final := c.path(fingerprint, format)
	tmp := final + ".partial-" + uuid.NewString()

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("renaming into place: %w", err)
	}

	if err := c.catalog.RecordCache(fingerprint, format, final, int64(len(data))); err != nil {
		return "", err
	}
	return final, nil
}

// Sweep removes entries whose TTL has expired or whose backing file is
// missing on disk (§4.8 sweep policy, §3 invariant). Deleting the entire
// cache directory is safe: a subsequent Sweep simply removes every
// dangling row, and the next EnsureFile re-downloads.
func (c *Cache) Sweep(ttl time.Duration) error {
	paths, err := c.catalog.PurgeCache(ttl)
	if err != nil {
		return err
	}
	for _, p := range paths {
		_ = os.Remove(p)
	}

	entries, err := c.catalog.AllCacheEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := os.Stat(e.FilePath); os.IsNotExist(err) {
			_ = c.catalog.RemoveCacheEntry(e.Fingerprint, e.FileFormat)
		}
	}
	return nil
}
