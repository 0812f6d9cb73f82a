// Package cli implements the command driver (C9, §6), grounded on
// Matbe34-aimharder-sync's cmd/main.go cobra command tree (persistent
// flags, signal-driven graceful shutdown, PersistentPreRunE config load)
// and on viper for overlaying flags onto the JSON-file config the
// teacher's internal/config already established.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Dunky-Z/FitSync/internal/catalog"
	"github.com/Dunky-Z/FitSync/internal/config"
	"github.com/Dunky-Z/FitSync/internal/filecache"
	"github.com/Dunky-Z/FitSync/internal/logging"
)

// Exit codes per §6.
const (
	ExitSuccess         = 0
	ExitOperationalFail = 1
	ExitUsageError      = 2
	ExitRateLimited     = 3
)

// ErrUsage wraps argument/flag problems the driver detects itself
// (an unknown direction, a direction naming an unconfigured platform),
// distinguishing them from an operational failure once main inspects
// the returned error via errors.Is.
var ErrUsage = errors.New("usage error")

// ErrRateLimitedStop wraps a Report in which at least one direction
// halted on a rate-limit tier, so main can map it to exit code 3 (§6:
// "partial progress committed") instead of a generic operational
// failure.
var ErrRateLimitedStop = errors.New("rate-limited stop")

// App holds the process-wide dependencies a command needs once the
// config is loaded and the store is open. Commands receive it via
// closures built in NewRootCommand rather than package globals, so
// tests can construct an App against a temp directory.
type App struct {
	ProjectRoot string
	Config      *config.Config
	Store       *catalog.Store
	Cache       *filecache.Cache
	Logger      *slog.Logger
}

// NewRootCommand builds the "fitsync" command tree.
func NewRootCommand() *cobra.Command {
	var (
		projectRoot string
		debug       bool
	)

	v := viper.New()
	app := &App{}

	root := &cobra.Command{
		Use:   "fitsync",
		Short: "Synchronize athletic activities across Strava, Garmin, IGPSport, OneDrive and intervals.icu",
		Long: `FitSync keeps activity history consistent across multiple fitness
platforms. It fingerprints activities to detect the same workout recorded on
different services, and copies missing activities between enabled
directions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "init" || cmd.Name() == "convert" {
				return nil
			}

			root := projectRoot
			if root == "" {
				var err error
				root, err = config.DefaultProjectRoot()
				if err != nil {
					return err
				}
			}

			cfg, err := loadWithOverrides(v, root)
			if err != nil {
				return err
			}

			logFile, err := os.OpenFile(filepath.Join(root, "sync_logs.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			logger, err := logging.New(logging.Options{Output: logFile, Debug: debug})
			if err != nil {
				return err
			}

			store, err := catalog.Open(root)
			if err != nil {
				return fmt.Errorf("opening catalog: %w", err)
			}

			cache, err := filecache.New(root, store)
			if err != nil {
				return fmt.Errorf("opening file cache: %w", err)
			}

			app.ProjectRoot = root
			app.Config = cfg
			app.Store = store
			app.Cache = cache
			app.Logger = logger
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.Store != nil {
				return app.Store.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&projectRoot, "project-root", "", "FitSync data directory (default: ~/.fitsync)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newSyncCmd(app, v),
		newConvertCmd(),
		newInitCmd(),
	)

	return root
}

// loadWithOverrides reads .app_config.json via internal/config, then
// lets viper-bound flags/environment override individual tunables, per
// SPEC_FULL.md §10.1.
func loadWithOverrides(v *viper.Viper, projectRoot string) (*config.Config, error) {
	cfg, err := config.Load(projectRoot)
	if err == config.ErrNoConfig {
		return nil, fmt.Errorf("no config at %s: run 'fitsync init' first", projectRoot)
	}
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix("FITSYNC")
	v.AutomaticEnv()

	if v.IsSet("batch_size") {
		cfg.Tunables.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("max_retries") {
		cfg.Tunables.MaxRetries = v.GetInt("max_retries")
	}

	return cfg, cfg.Validate()
}

// runWithSignalHandling wraps a long-running command body in a
// cancellable context that a SIGINT/SIGTERM cancels once, escalating to
// a forced exit on a second signal; grounded on the teacher's runSync
// signal-handling goroutine.
func runWithSignalHandling(body func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ncancelling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nforced exit")
		os.Exit(ExitOperationalFail)
	}()

	return body(ctx)
}
