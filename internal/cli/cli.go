package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/kiko1842/vaultwire/internal/app"
	"github.com/urfave/cli/v2"
)

// Exit codes of the vaultwire process.
const (
	ExitAborted = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Positional arguments are treated as additional configuration paths.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		parsed *app.Config
		ran    bool
	)
	cliApp := cli.NewApp()
	cliApp.Name = "vaultwire"
	cliApp.Usage = "Deploy and wire a vault with its strategies."
	cliApp.UsageText = "vaultwire --network NETWORK --config PATH [options] [PATH...]"
	cliApp.Flags = newFlags()
	cliApp.Writer = output
	cliApp.ErrWriter = output
	cliApp.HideVersion = true
	// Errors are returned to the caller, never turned into os.Exit here.
	cliApp.ExitErrHandler = func(*cli.Context, error) {}
	cliApp.OnUsageError = func(_ *cli.Context, err error, _ bool) error {
		return err
	}
	cliApp.Action = func(ctx *cli.Context) error {
		ran = true
		cfg, err := configFromContext(ctx)
		if err != nil {
			return err
		}
		parsed = cfg
		return nil
	}

	if err := cliApp.Run(append([]string{cliApp.Name}, args...)); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if !ran || parsed == nil {
		slog.Debug("Help requested, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "network", parsed.Network, "paths", parsed.ConfigPaths)
	return parsed, false, nil
}

func configFromContext(ctx *cli.Context) (*app.Config, error) {
	paths := append(ctx.StringSlice(flagConfig), ctx.Args().Slice()...)
	if len(paths) == 0 && ctx.String(flagNetwork) == "" {
		slog.Debug("No configuration given, printing usage and exiting.")
		return nil, cli.ShowAppHelp(ctx)
	}

	logFormat := strings.ToLower(ctx.String(flagLogFormat))
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(ctx.String(flagLogLevel))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		ConfigPaths:       paths,
		Network:           ctx.String(flagNetwork),
		DryRun:            ctx.Bool(flagDryRun),
		KeyRef:            ctx.String(flagKey),
		ArtifactsPath:     ctx.String(flagArtifacts),
		RPCURL:            ctx.String(flagRPCURL),
		ConfirmTimeout:    ctx.Duration(flagConfirmTimeout),
		VerifyConcurrency: ctx.Int(flagVerifyConcurrency),
		ReportPath:        ctx.String(flagReport),
		EventsURL:         ctx.String(flagEventsURL),
		HealthcheckPort:   ctx.Int(flagHealthcheckPort),
		LogFormat:         logFormat,
		LogLevel:          logLevel,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return cfg, nil
}
