package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kiko1842/vaultwire/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPaths []string // hcl files or directories
	Network     string

	// DryRun runs the pipeline against an in-memory ledger.
	DryRun        bool
	KeyRef        string // env:NAME or keyring:SERVICE/USER
	ArtifactsPath string
	// RPCURL overrides the network's rpc_url.
	RPCURL         string
	ConfirmTimeout time.Duration

	VerifyConcurrency int
	ReportPath        string
	EventsURL         string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if len(cfg.ConfigPaths) == 0 {
		errs = append(errs, errors.New("at least one configuration path is required"))
	}
	if cfg.Network == "" {
		errs = append(errs, fmt.Errorf("network is required (one of %v)", config.KnownNetworks()))
	} else if _, err := config.ParseNetworkID(cfg.Network); err != nil {
		errs = append(errs, err)
	}
	if !cfg.DryRun {
		if cfg.KeyRef == "" {
			errs = append(errs, errors.New("a signing key is required unless running dry"))
		}
		if cfg.ArtifactsPath == "" {
			errs = append(errs, errors.New("an artifacts directory is required unless running dry"))
		}
	}
	if cfg.VerifyConcurrency == 0 {
		cfg.VerifyConcurrency = 4
	}
	if cfg.VerifyConcurrency < 0 {
		errs = append(errs, errors.New("verify concurrency must be positive"))
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 3 * time.Minute
	}
	if cfg.ConfirmTimeout < 0 {
		errs = append(errs, errors.New("confirm timeout must be positive"))
	}
	if cfg.HealthcheckPort < 0 {
		errs = append(errs, errors.New("healthcheck port must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
