// Package logging builds the structured logger FitSync threads through
// every subsystem, and an optional Sentry-backed error reporter for
// direction-fatal errors. Grounded on the log/slog + sentry-go pairing
// used throughout FitGlue-server and ripixel-fitglue-server (e.g.
// pkg/infrastructure/sentry, pkg/enricher/orchestrator.go); the reference
// repo itself only ever calls bare log.Fatal, which doesn't scale to an
// unattended multi-platform sync run.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
)

// Options configures New.
type Options struct {
	// Output is the destination for structured log records, typically
	// sync_logs.log (§6 persisted state layout).
	Output io.Writer
	// Debug mirrors records to stderr at slog.LevelDebug when true.
	Debug bool
	// SentryDSN enables error-level forwarding to Sentry when non-empty.
	SentryDSN string
}

// sentryHandler wraps a slog.Handler and forwards records at
// slog.LevelError or above to Sentry, in addition to the wrapped handler's
// own behavior.
type sentryHandler struct {
	next slog.Handler
}

func (h *sentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		sentry.WithScope(func(scope *sentry.Scope) {
			r.Attrs(func(a slog.Attr) bool {
				scope.SetExtra(a.Key, a.Value.Any())
				return true
			})
			sentry.CaptureMessage(r.Message)
		})
	}
	return h.next.Handle(ctx, r)
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sentryHandler{next: h.next.WithAttrs(attrs)}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{next: h.next.WithGroup(name)}
}

// New builds the application logger. internal/cli creates one logger per
// invocation and keeps it on its App rather than relying on slog's
// default global logger.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	writers := []io.Writer{out}
	if opts.Debug {
		writers = append(writers, os.Stderr)
	}

	var handler slog.Handler = slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})

	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: opts.SentryDSN}); err != nil {
			return nil, err
		}
		handler = &sentryHandler{next: handler}
	}

	return slog.New(handler), nil
}

// Noop returns a logger that discards all output.
func Noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
