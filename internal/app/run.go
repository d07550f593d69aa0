package app

import (
	"context"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/pipeline"
	"github.com/kiko1842/vaultwire/internal/report"
)

// Run executes one deployment run for the configured network, prints the
// summary and writes the report. The returned error is the run's abort
// error, if any; reporting problems are logged but do not fail the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	sinks, closers := a.openSinks(ctx)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				a.logger.Warn("Closing event sink failed.", "error", err)
			}
		}
	}()

	driver := pipeline.NewDriver(a.model, a.converter, a.connect, pipeline.Options{
		VerifyConcurrency: a.config.VerifyConcurrency,
		Sinks:             sinks,
	})
	st, runErr := driver.Run(ctx, a.config.Network)

	a.publishReport(ctx, report.FromState(st, runErr))
	a.logger.Debug("App.Run method finished.")
	return runErr
}

func (a *App) publishReport(ctx context.Context, r report.Report) {
	if err := report.Render(a.outW, r); err != nil {
		a.logger.Warn("Rendering summary failed.", "error", err)
	}

	if a.config.ReportPath != "" {
		if err := report.WriteYAML(a.config.ReportPath, r); err != nil {
			a.logger.Error("Writing report failed.", "path", a.config.ReportPath, "error", err)
		} else {
			a.logger.Info("Report written.", "path", a.config.ReportPath)
		}
	}

	cfg, enabled, err := report.ArchiveConfigFromEnv()
	if err != nil {
		a.logger.Warn("Report archive misconfigured, skipping.", "error", err)
		return
	}
	if !enabled {
		return
	}
	archiver, err := report.NewMinioArchiver(cfg)
	if err != nil {
		a.logger.Warn("Report archive unavailable, skipping.", "error", err)
		return
	}
	key, err := archiver.Archive(ctx, r)
	if err != nil {
		a.logger.Error("Archiving report failed.", "error", err)
		return
	}
	a.logger.Info("Report archived.", "bucket", cfg.Bucket, "key", key)
}
