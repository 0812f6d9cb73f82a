// Package sync implements the Sync Executor (C7, §4.9): the directional
// reconcile loop that enumerates a source platform, matches against the
// catalog, transfers activities to a destination platform, and advances
// the cursor. Grounded on the teacher's internal/service/sync.go
// (sequential phases, progress channel, ctx.Done() checks between
// iterations) generalized from a single Strava-only sync into the
// (source, destination) direction model, and on onedrive-go's
// executor.go dispatchPhase/classifyError shape for per-activity error
// tiering against §7's error-kind table.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Dunky-Z/FitSync/internal/catalog"
	"github.com/Dunky-Z/FitSync/internal/fingerprint"
	"github.com/Dunky-Z/FitSync/internal/filecache"
	"github.com/Dunky-Z/FitSync/internal/match"
	"github.com/Dunky-Z/FitSync/internal/platform"
	"github.com/Dunky-Z/FitSync/internal/sporttype"
)

// ErrorTier classifies an error for recovery purposes (§7).
type ErrorTier int

const (
	// TierSkip: stays local to the activity, direction continues.
	TierSkip ErrorTier = iota
	// TierRetryable: mark pending so a later run retries it. Config.MaxRetries
	// is not consulted, so a retryable error never moves the status to failed.
	TierRetryable
	// TierFatal: halts the direction, not the process.
	TierFatal
	// TierCatalogCorruption: aborts the entire invocation.
	TierCatalogCorruption
)

// classifyError maps an adapter or catalog error to a recovery tier,
// mirroring onedrive-go's classifyError against this system's own
// error-kind table (§7).
func classifyError(err error) ErrorTier {
	switch {
	case err == nil:
		return TierSkip
	case errors.Is(err, ErrCatalogCorruption):
		return TierCatalogCorruption
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return TierFatal
	case errors.Is(err, platform.ErrUnauthorized):
		return TierFatal
	case errors.Is(err, platform.ErrRateLimited):
		return TierFatal
	case errors.Is(err, platform.ErrNoOriginalFile):
		return TierSkip
	case errors.Is(err, platform.ErrNotFound):
		return TierSkip
	case errors.Is(err, platform.ErrTransport):
		return TierRetryable
	case errors.Is(err, catalog.ErrActivityNotFound), errors.Is(err, catalog.ErrMappingNotFound):
		return TierRetryable
	default:
		return TierRetryable
	}
}

// Transcoder is re-exported here so callers only need to import
// internal/sync to wire an executor; it is the same interface
// internal/filecache uses.
type Transcoder = filecache.Transcoder

// Direction is an ordered pair of platform names enabled for sync
// (§4.9, GLOSSARY).
type Direction struct {
	Source      string
	Destination string
}

func (d Direction) String() string { return d.Source + "->" + d.Destination }

// Config tunes one Executor run. Callers read SyncTunables from
// internal/config and translate into this struct rather than the
// executor reading process globals; no value is read from the catalog's
// SyncConfig rows.
type Config struct {
	BatchSize  int
	MaxRetries int
	Thresholds match.Thresholds
	CacheTTL   time.Duration
}

// DefaultConfig matches internal/config.DefaultConfig's tunables.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		MaxRetries: 3,
		Thresholds: match.DefaultThresholds(),
		CacheTTL:   30 * 24 * time.Hour,
	}
}

// Executor runs directional reconcile loops against a Registry and a
// Catalog Store.
type Executor struct {
	registry   *platform.Registry
	catalog    *catalog.Store
	cache      *filecache.Cache
	cfg        Config
	transcoder Transcoder
}

// New builds an Executor. transcoder may be nil, in which case
// ensure_file only ever succeeds on an exact cache hit or a source that
// already serves the destination's chosen format (§4.8 step 1/3 without
// step 2/the transcoding fallback of step 3).
func New(registry *platform.Registry, store *catalog.Store, cache *filecache.Cache, cfg Config, transcoder Transcoder) *Executor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Executor{registry: registry, catalog: store, cache: cache, cfg: cfg, transcoder: transcoder}
}

// Progress reports step-by-step status during a Run, the direct
// analogue of the teacher's SyncProgress channel.
type Progress struct {
	Direction       Direction
	Phase           string // "enumerate", "transfer"
	Total           int
	Completed       int
	CurrentActivity string
	Err             error
}

// Counts mirrors catalog.DirectionCounts, returned per direction for the
// post-run report (§7 "per-direction summary").
type Counts = catalog.DirectionCounts

// Report is the outcome of running one or more directions.
type Report struct {
	PerDirection map[Direction]Counts
	// Halted records directions that stopped early due to a
	// direction-fatal error (Unauthorized, RateLimited), keyed by
	// direction with the triggering error.
	Halted map[Direction]error
}

// ErrCatalogCorruption aborts the entire invocation per §7: "Only
// CatalogCorruption aborts the entire invocation."
var ErrCatalogCorruption = errors.New("sync: catalog corruption, aborting run")

// Run executes one or more directions in order (§9: "any concurrency
// should be explicit... executor's suspension points are adapter I/O
// calls, and cancellation is checked between activities"). A single
// direction halting on a direction-fatal error does not stop remaining
// directions; only ErrCatalogCorruption aborts the whole call.
func (e *Executor) Run(ctx context.Context, directions []Direction, progress chan<- Progress) (*Report, error) {
	if progress != nil {
		defer close(progress)
	}

	report := &Report{
		PerDirection: make(map[Direction]Counts),
		Halted:       make(map[Direction]error),
	}

	for _, dir := range directions {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		err := e.runDirection(ctx, dir, progress)
		if err != nil {
			if errors.Is(err, ErrCatalogCorruption) {
				return report, err
			}
			report.Halted[dir] = err
		}

		counts, countErr := e.catalog.DirectionCounts(dir.Source, dir.Destination)
		if countErr == nil {
			report.PerDirection[dir] = counts
		}
	}

	return report, nil
}

// runDirection implements §4.9's 8-step reconcile loop for one
// direction.
func (e *Executor) runDirection(ctx context.Context, dir Direction, progress chan<- Progress) error {
	src, ok := e.registry.Get(dir.Source)
	if !ok {
		return fmt.Errorf("sync: no adapter registered for source %q", dir.Source)
	}
	dst, ok := e.registry.Get(dir.Destination)
	if !ok {
		return fmt.Errorf("sync: no adapter registered for destination %q", dir.Destination)
	}

	// Step 1: window selection.
	since, _, err := e.catalog.GetCursor(dir.Source)
	if err != nil {
		return fmt.Errorf("%w: reading cursor: %v", ErrCatalogCorruption, err)
	}

	runStart := time.Now().UTC()

	// Step 2: enumerate.
	activities, err := src.ListActivities(ctx, since, e.cfg.BatchSize)
	if err != nil {
		if tier := classifyError(err); tier == TierFatal {
			return err
		}
		return fmt.Errorf("listing %s activities: %w", dir.Source, err)
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].StartTime.Before(activities[j].StartTime)
	})

	if progress != nil {
		progress <- Progress{Direction: dir, Phase: "enumerate", Total: len(activities)}
	}

	if len(activities) == 0 {
		// Boundary: a platform returning zero activities advances the
		// cursor to now iff no error occurred.
		return e.catalog.SetCursor(dir.Source, runStart)
	}

	// latestTerminalStart tracks the max start_time among activities whose
	// status row left "pending" this run (§4.9 step 8, §8's cancellation
	// invariant) — not simply the max start_time enumerated, since a
	// still-pending tail must not drag the cursor past itself.
	var latestTerminalStart time.Time
	commitCursor := func() error {
		if latestTerminalStart.IsZero() {
			return nil
		}
		return e.catalog.SetCursor(dir.Source, latestTerminalStart)
	}

	for i, act := range activities {
		select {
		case <-ctx.Done():
			if cerr := commitCursor(); cerr != nil {
				return cerr
			}
			return ctx.Err()
		default:
		}

		fp := fingerprint.Compute(fingerprint.Source{
			SportType: sporttype.Normalize(act.SportType),
			StartTime: act.StartTime,
			Distance:  act.Distance,
			Duration:  act.Duration,
		})

		if progress != nil {
			progress <- Progress{Direction: dir, Phase: "transfer", Total: len(activities), Completed: i, CurrentActivity: act.Name}
		}

		err := e.transferOne(ctx, dir, src, dst, act, fp)

		if status, statusErr := e.catalog.GetStatus(fp, dir.Source, dir.Destination); statusErr == nil && status != nil && status.Status != catalog.StatusPending {
			if act.StartTime.After(latestTerminalStart) {
				latestTerminalStart = act.StartTime
			}
		}

		if err != nil {
			tier := classifyError(err)
			if tier == TierFatal || tier == TierCatalogCorruption {
				if cerr := commitCursor(); cerr != nil {
					return cerr
				}
				return err
			}
			// TierSkip and TierRetryable both leave the loop running;
			// status bookkeeping for the activity already happened in
			// transferOne.
			if progress != nil {
				progress <- Progress{Direction: dir, Phase: "transfer", CurrentActivity: act.Name, Err: err}
			}
		}
	}

	return commitCursor()
}

// transferOne implements steps 3-7 for a single activity: identify,
// decide, select transfer format, fetch, upload.
func (e *Executor) transferOne(ctx context.Context, dir Direction, src, dst platform.Adapter, act platform.ActivityRecord, fp string) error {
	if err := e.upsertAndMapSource(fp, dir.Source, act); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogCorruption, err)
	}

	// Step 4 (decide): manual activities never have a source file.
	if act.Manual {
		return e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusSkipped, "no_source_file")
	}

	existing, err := e.catalog.GetStatus(fp, dir.Source, dir.Destination)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogCorruption, err)
	}
	if existing != nil && isTerminalSuccess(existing.Status) {
		return nil // idempotent re-run: synced, duplicate and skipped all stay put
	}
	if _, ok, err := e.catalog.GetMapping(fp, dir.Destination); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogCorruption, err)
	} else if ok {
		return e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusSynced, "")
	}

	// Step 5: transfer format selection — rank the intersection by
	// FIT > TCX > GPX, unless the destination names its own preference.
	format := pickFormat(dir.Destination, act.AvailableFormats, dst.SupportedUploadFormats())
	if format == "" && len(dst.SupportedUploadFormats()) > 0 {
		format = dst.SupportedUploadFormats()[0]
	}

	// Step 6: fetch via the file cache.
	path, err := e.cache.EnsureFile(fp, format, []filecache.Source{{
		Platform:   dir.Source,
		ActivityID: act.PlatformActivityID,
		Downloader: adapterDownloader{ctx: ctx, adapter: src},
	}}, e.transcoder)
	if err != nil {
		if errors.Is(err, platform.ErrNoOriginalFile) {
			return e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusSkipped, "no_source_file")
		}
		_ = e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusPending, err.Error())
		return err
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return fmt.Errorf("%w: %v", ErrCatalogCorruption, readErr)
	}

	// Step 7: upload.
	outcome, err := dst.Upload(ctx, data, format, platform.UploadMetadata{
		Name:      act.Name,
		SportType: act.SportType,
		StartTime: act.StartTime,
		Distance:  act.Distance,
		Duration:  act.Duration,
	})
	if err != nil {
		_ = e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusPending, err.Error())
		return err
	}

	switch outcome.Status {
	case platform.UploadAccepted, platform.UploadDuplicate:
		if outcome.RemoteID != "" {
			if err := e.catalog.RecordMapping(fp, dir.Destination, outcome.RemoteID); err != nil {
				return fmt.Errorf("%w: %v", ErrCatalogCorruption, err)
			}
		}
		status := catalog.StatusSynced
		if outcome.Status == platform.UploadDuplicate {
			status = catalog.StatusDuplicate
		}
		return e.catalog.SetStatus(fp, dir.Source, dir.Destination, status, "")
	case platform.UploadRejected:
		return e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusFailed, outcome.RejectReason)
	default: // transient_error
		return e.catalog.SetStatus(fp, dir.Source, dir.Destination, catalog.StatusPending, "transient upload error")
	}
}

func (e *Executor) upsertAndMapSource(fp, sourcePlatform string, act platform.ActivityRecord) error {
	if err := e.catalog.UpsertActivity(&catalog.ActivityRecord{
		Fingerprint:   fp,
		Name:          act.Name,
		SportType:     act.SportType,
		StartTime:     act.StartTime,
		Distance:      act.Distance,
		Duration:      act.Duration,
		ElevationGain: act.ElevationGain,
	}); err != nil {
		return err
	}
	return e.catalog.RecordMapping(fp, sourcePlatform, act.PlatformActivityID)
}

// isTerminalSuccess reports whether a status means step 4's "decide"
// phase should skip the activity outright without re-transferring it
// (§4.9 step 4): synced, duplicate and skipped are all settled outcomes;
// failed and pending are not, so a retry can still pick them up.
func isTerminalSuccess(s catalog.Status) bool {
	return s == catalog.StatusSynced || s == catalog.StatusDuplicate || s == catalog.StatusSkipped
}

// formatPreference is §4.9 step 5's default transfer-format ranking.
var formatPreference = []string{"fit", "tcx", "gpx"}

// destinationFormatPreference overrides formatPreference for
// destinations that prefer a different format than the default ranking
// (§4.9 step 5: "OneDrive prefers GPX").
var destinationFormatPreference = map[string][]string{
	"onedrive": {"gpx", "tcx", "fit"},
}

// pickFormat ranks the intersection of available and supported formats
// by the destination's preference order, falling back to any common
// format if neither side names one from that list.
func pickFormat(destination string, available, supported []string) string {
	pref := formatPreference
	if p, ok := destinationFormatPreference[destination]; ok {
		pref = p
	}

	availableSet := make(map[string]bool, len(available))
	for _, f := range available {
		availableSet[f] = true
	}
	supportedSet := make(map[string]bool, len(supported))
	for _, f := range supported {
		supportedSet[f] = true
	}

	for _, f := range pref {
		if availableSet[f] && supportedSet[f] {
			return f
		}
	}
	for _, f := range available {
		if supportedSet[f] {
			return f
		}
	}
	return ""
}

// adapterDownloader adapts a platform.Adapter to filecache.Downloader,
// binding the context the executor already has in scope.
type adapterDownloader struct {
	ctx     context.Context
	adapter platform.Adapter
}

func (a adapterDownloader) Download(platformActivityID, preferredFormat string) ([]byte, string, error) {
	return a.adapter.Download(a.ctx, platformActivityID, preferredFormat)
}
