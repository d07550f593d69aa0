package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/kiko1842/vaultwire/internal/pipeline"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	ctx       context.Context
	config    *Config
	model     *config.Model
	converter config.Converter
	tracker   *events.Tracker

	// connect opens the ledger backend; tests replace it.
	connect    pipeline.Connector
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads and
// validates the deployment configuration; a failure to do so is a fatal
// startup error and panics.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cfgModel, converter, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if err := cfgModel.Validate(); err != nil {
		panic(fmt.Errorf("invalid deployment configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.",
		"components", len(cfgModel.Components),
		"wires", len(cfgModel.Wires),
		"upgrades", len(cfgModel.Upgrades),
	)

	a := &App{
		outW:      outW,
		logger:    logger,
		ctx:       ctx,
		config:    appConfig,
		model:     cfgModel,
		converter: converter,
		tracker:   &events.Tracker{},
	}
	if appConfig.DryRun {
		a.connect = a.connectSimulated
	} else {
		a.connect = a.connectLive
	}
	return a
}

// Model returns the loaded deployment model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
