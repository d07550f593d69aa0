package ledger

import (
	"errors"
	"time"

	"github.com/kiko1842/vaultwire/internal/env"
)

// Config locates the Postgres database that records deployment events.
type Config struct {
	URL          string
	PingTimeout  time.Duration
	WriteTimeout time.Duration
	MaxOpenConns int
}

// ConfigFromEnv reads the ledger settings. The ledger is disabled when
// VAULTWIRE_LEDGER_URL is unset; ok reports whether it is on.
func ConfigFromEnv() (cfg Config, ok bool, err error) {
	url := env.String("VAULTWIRE_LEDGER_URL", "")
	if url == "" {
		return Config{}, false, nil
	}
	pingTimeout, err := env.Duration("VAULTWIRE_LEDGER_PING_TIMEOUT", 2*time.Second)
	if err != nil {
		return Config{}, false, err
	}
	writeTimeout, err := env.Duration("VAULTWIRE_LEDGER_WRITE_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, false, err
	}
	maxOpenConns, err := env.Int("VAULTWIRE_LEDGER_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, false, err
	}

	cfg = Config{
		URL:          url,
		PingTimeout:  pingTimeout,
		WriteTimeout: writeTimeout,
		MaxOpenConns: maxOpenConns,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("VAULTWIRE_LEDGER_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("VAULTWIRE_LEDGER_PING_TIMEOUT must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("VAULTWIRE_LEDGER_WRITE_TIMEOUT must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("VAULTWIRE_LEDGER_MAX_OPEN_CONNS must be >= 1")
	}
	return nil
}
