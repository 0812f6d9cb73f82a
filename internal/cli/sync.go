package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Dunky-Z/FitSync/internal/migrate"
	"github.com/Dunky-Z/FitSync/internal/platform"
	syncpkg "github.com/Dunky-Z/FitSync/internal/sync"
	"github.com/Dunky-Z/FitSync/internal/transcode"
)

// rateLimitedExitIfHalted returns ErrRateLimitedStop if any direction
// in the report halted on a rate-limit tier, so main can select exit
// code 3 rather than the generic operational-failure code.
func rateLimitedExitIfHalted(report *syncpkg.Report) error {
	if report == nil {
		return nil
	}
	for _, haltErr := range report.Halted {
		if errors.Is(haltErr, platform.ErrRateLimited) {
			return ErrRateLimitedStop
		}
	}
	return nil
}

// knownDirections is the closed set §6 names; a direction not in this
// set is a usage error (exit code 2), not an operational one.
var knownDirections = map[string]bool{
	"strava_to_garmin":          true,
	"garmin_to_strava":          true,
	"strava_to_onedrive":        true,
	"garmin_to_onedrive":        true,
	"strava_to_igpsport":        true,
	"igpsport_to_intervals_icu": true,
	"strava_to_intervals_icu":   true,
	"garmin_to_intervals_icu":   true,
}

func parseDirection(s string) (syncpkg.Direction, error) {
	if !knownDirections[s] {
		return syncpkg.Direction{}, fmt.Errorf("unknown direction %q", s)
	}
	idx := strings.Index(s, "_to_")
	return syncpkg.Direction{Source: s[:idx], Destination: s[idx+4:]}, nil
}

func newSyncCmd(app *App, v *viper.Viper) *cobra.Command {
	var (
		auto             bool
		directionFlags   []string
		batchSize        int
		migrationMode    bool
		cleanupCache     bool
		status           bool
		clearSessionFlag string
		authPlatform     string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile activities across configured platform directions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize > 0 {
				v.Set("batch_size", batchSize)
			}

			if authPlatform != "" {
				return runAuth(cmd.Context(), app, authPlatform)
			}

			if clearSessionFlag != "" {
				return clearSession(app, clearSessionFlag)
			}

			if status {
				return printStatus(app)
			}

			if migrationMode {
				return runMigration(app)
			}

			directions, err := resolveDirections(app, auto, directionFlags)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			if len(directions) == 0 {
				return fmt.Errorf("%w: no directions to sync, pass --directions or --auto", ErrUsage)
			}

			registry, err := buildRegistry(app)
			if err != nil {
				return err
			}

			for _, dir := range directions {
				if _, ok := registry.Get(dir.Source); !ok {
					return fmt.Errorf("%w: direction %s: platform %q is not configured", ErrUsage, dir, dir.Source)
				}
				if _, ok := registry.Get(dir.Destination); !ok {
					return fmt.Errorf("%w: direction %s: platform %q is not configured", ErrUsage, dir, dir.Destination)
				}
			}

			execCfg := syncpkg.DefaultConfig()
			if app.Config.Tunables.BatchSize > 0 {
				execCfg.BatchSize = app.Config.Tunables.BatchSize
			}
			if v.IsSet("batch_size") {
				execCfg.BatchSize = v.GetInt("batch_size")
			}
			if app.Config.Tunables.MaxRetries > 0 {
				execCfg.MaxRetries = app.Config.Tunables.MaxRetries
			}
			if app.Config.Tunables.CacheTTLDays > 0 {
				execCfg.CacheTTL = time.Duration(app.Config.Tunables.CacheTTLDays) * 24 * time.Hour
			}

			executor := syncpkg.New(registry, app.Store, app.Cache, execCfg, transcode.Transcoder{})

			var report *syncpkg.Report
			err = runWithSignalHandling(func(ctx context.Context) error {
				r, runErr := executor.Run(ctx, directions, nil)
				report = r
				return runErr
			})
			if err != nil {
				app.Logger.Error("sync run aborted", "error", err)
				return err
			}

			if cleanupCache {
				ttl := execCfg.CacheTTL
				if ttl <= 0 {
					ttl = 30 * 24 * time.Hour
				}
				if sweepErr := app.Cache.Sweep(ttl); sweepErr != nil {
					app.Logger.Warn("cache sweep failed", "error", sweepErr)
				} else {
					fmt.Println("cache: swept expired entries")
				}
			}

			if err := printReport(report); err != nil {
				return err
			}
			return rateLimitedExitIfHalted(report)
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "sync every direction named in sync.directions in config")
	cmd.Flags().StringSliceVar(&directionFlags, "directions", nil, "explicit list of src_to_dst directions")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override the configured per-run activity batch size")
	cmd.Flags().BoolVar(&migrationMode, "migration-mode", false, "migrate a legacy JSON sync-history file instead of syncing")
	cmd.Flags().BoolVar(&cleanupCache, "cleanup-cache", false, "sweep expired file cache entries after the run")
	cmd.Flags().BoolVar(&status, "status", false, "print platform health, cursor ages and cache size, then exit")
	cmd.Flags().StringVar(&clearSessionFlag, "clear-session", "", "clear the persisted session for the named platform and exit")
	cmd.Flags().StringVar(&authPlatform, "auth", "", "run the named platform's login flow and persist its session, then exit")

	return cmd
}

func resolveDirections(app *App, auto bool, explicit []string) ([]syncpkg.Direction, error) {
	var names []string
	switch {
	case len(explicit) > 0:
		names = explicit
	case auto:
		names = app.Config.Tunables.Directions
	}

	directions := make([]syncpkg.Direction, 0, len(names))
	for _, n := range names {
		d, err := parseDirection(n)
		if err != nil {
			return nil, err
		}
		directions = append(directions, d)
	}
	return directions, nil
}

func clearSession(app *App, platformName string) error {
	if err := app.Store.SetConfig("session_"+platformName, ""); err != nil {
		return err
	}
	if err := app.Store.SetConfig("token_"+platformName, ""); err != nil {
		return err
	}
	fmt.Printf("cleared session for %s\n", platformName)
	return nil
}

func runMigration(app *App) error {
	path := app.ProjectRoot + "/legacy_sync_history.json"
	history, err := migrate.LoadHistory(path)
	if err != nil {
		return err
	}

	result, err := migrate.Run(app.Store, history, map[string]migrate.LegacyActivity{})
	if err != nil {
		return err
	}

	fmt.Printf("migration: %d workouts seen, %d mappings written, %d statuses written, %d skipped (no activity data)\n",
		result.WorkoutsSeen, result.MappingsWritten, result.StatusesWritten, result.SkippedNoActivity)
	return nil
}

func printStatus(app *App) error {
	registry, err := buildRegistry(app)
	if err != nil {
		return err
	}

	ctx := context.Background()
	names := registry.Names()
	usage := make([]float64, 0, len(names))
	for _, name := range names {
		adapter, _ := registry.Get(name)
		health := adapter.HealthCheck(ctx)
		cursor, ok, err := app.Store.GetCursor(name)
		age := "never synced"
		if err == nil && ok {
			age = humanize.Time(cursor)
		}

		counter, err := app.Store.GetAPI(name)
		pct := 0.0
		if err == nil && counter.DailyLimit > 0 {
			pct = 100 * float64(counter.DailyCalls) / float64(counter.DailyLimit)
		}
		usage = append(usage, pct)

		fmt.Printf("%-16s health=%-9s cursor=%-16s daily_api=%.0f%%\n", name, health, age, pct)
	}

	if len(usage) > 1 {
		graph := asciigraph.Plot(usage, asciigraph.Height(4), asciigraph.Caption("daily API usage % by platform (listed order above)"))
		fmt.Println()
		fmt.Println(graph)
	}

	entries, err := app.Store.AllCacheEntries()
	if err != nil {
		return err
	}
	var totalSize int64
	for _, e := range entries {
		totalSize += e.FileSize
	}
	fmt.Printf("\ncache: %d files, %s\n", len(entries), humanize.Bytes(uint64(totalSize)))
	return nil
}
