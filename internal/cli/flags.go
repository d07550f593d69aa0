package cli

import (
	"time"

	"github.com/urfave/cli/v2"
)

// EnvVarPrefix namespaces the environment variables that mirror flags.
const EnvVarPrefix = "VAULTWIRE"

func prefixEnvVars(names ...string) []string {
	envs := make([]string, 0, len(names))
	for _, name := range names {
		envs = append(envs, EnvVarPrefix+"_"+name)
	}
	return envs
}

// Flag names.
const (
	flagConfig            = "config"
	flagNetwork           = "network"
	flagDryRun            = "dry-run"
	flagKey               = "key"
	flagArtifacts         = "artifacts"
	flagRPCURL            = "rpc-url"
	flagConfirmTimeout    = "confirm-timeout"
	flagVerifyConcurrency = "verify-concurrency"
	flagReport            = "report"
	flagEventsURL         = "events-url"
	flagHealthcheckPort   = "healthcheck-port"
	flagLogFormat         = "log-format"
	flagLogLevel          = "log-level"
)

// newFlags returns a fresh set of flags. urfave/cli keeps parsed values on
// the flag structs, so every parse needs its own set.
func newFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "HCL file or directory holding the deployment configuration. Repeatable.",
			EnvVars: prefixEnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    flagNetwork,
			Aliases: []string{"n"},
			Usage:   "Target network: local, bsc or bsc_testnet.",
			EnvVars: prefixEnvVars("NETWORK"),
		},
		&cli.BoolFlag{
			Name:    flagDryRun,
			Usage:   "Run the whole pipeline against an in-memory ledger.",
			EnvVars: prefixEnvVars("DRY_RUN"),
		},
		&cli.StringFlag{
			Name:    flagKey,
			Usage:   "Signing key reference: env:NAME or keyring:SERVICE/USER.",
			EnvVars: prefixEnvVars("KEY"),
		},
		&cli.StringFlag{
			Name:    flagArtifacts,
			Usage:   "Directory of compiled contract artifacts.",
			EnvVars: prefixEnvVars("ARTIFACTS"),
			Value:   "artifacts",
		},
		&cli.StringFlag{
			Name:    flagRPCURL,
			Usage:   "Override the network's RPC endpoint.",
			EnvVars: prefixEnvVars("RPC_URL"),
		},
		&cli.DurationFlag{
			Name:    flagConfirmTimeout,
			Usage:   "How long to wait for each transaction to be mined.",
			EnvVars: prefixEnvVars("CONFIRM_TIMEOUT"),
			Value:   3 * time.Minute,
		},
		&cli.IntFlag{
			Name:    flagVerifyConcurrency,
			Usage:   "Number of concurrent source verification requests.",
			EnvVars: prefixEnvVars("VERIFY_CONCURRENCY"),
			Value:   4,
		},
		&cli.StringFlag{
			Name:    flagReport,
			Usage:   "Write the run report as YAML to this path.",
			EnvVars: prefixEnvVars("REPORT"),
		},
		&cli.StringFlag{
			Name:    flagEventsURL,
			Usage:   "socket.io server that receives live progress events.",
			EnvVars: prefixEnvVars("EVENTS_URL"),
		},
		&cli.IntFlag{
			Name:    flagHealthcheckPort,
			Usage:   "Port for the HTTP health check server. 0 is disabled.",
			EnvVars: prefixEnvVars("HEALTHCHECK_PORT"),
		},
		&cli.StringFlag{
			Name:    flagLogFormat,
			Usage:   "Log output format. Options: 'text' or 'json'.",
			EnvVars: prefixEnvVars("LOG_FORMAT"),
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.",
			EnvVars: prefixEnvVars("LOG_LEVEL"),
			Value:   "info",
		},
	}
}
