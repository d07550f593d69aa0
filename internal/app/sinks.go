package app

import (
	"context"
	"io"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/kiko1842/vaultwire/internal/ledger"
)

// openSinks returns the event sinks of a run. Optional sinks that cannot
// be opened are skipped with a warning; progress reporting never blocks a
// deployment.
func (a *App) openSinks(ctx context.Context) ([]events.Sink, []io.Closer) {
	logger := ctxlog.FromContext(ctx)
	sinks := []events.Sink{events.LogSink{}, a.tracker}
	var closers []io.Closer

	if a.config.EventsURL != "" {
		sio, err := events.DialSocketIO(ctx, events.SocketIOConfig{URL: a.config.EventsURL})
		if err != nil {
			logger.Warn("Live event stream unavailable, continuing without it.", "url", a.config.EventsURL, "error", err)
		} else {
			sinks = append(sinks, sio)
			closers = append(closers, sio)
		}
	}

	cfg, enabled, err := ledger.ConfigFromEnv()
	switch {
	case err != nil:
		logger.Warn("Deployment ledger misconfigured, continuing without it.", "error", err)
	case enabled:
		store, err := ledger.Open(ctx, cfg)
		if err != nil {
			logger.Warn("Deployment ledger unavailable, continuing without it.", "error", err)
			break
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
	}
	return sinks, closers
}
