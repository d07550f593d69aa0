package events

import (
	"context"
	"log/slog"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

// LogSink writes every event as a structured debug record.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Publish(ctx context.Context, e Event) error {
	ctxlog.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "Run event.",
		slog.String("run_id", e.RunID),
		slog.Int("seq", e.Seq),
		slog.String("stage", e.Stage),
		slog.String("kind", string(e.Kind)),
		slog.String("subject", e.Subject),
		slog.Any("detail", e.Detail),
	)
	return nil
}
