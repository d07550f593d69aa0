package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/deployer"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/kiko1842/vaultwire/internal/upgrader"
	"github.com/kiko1842/vaultwire/internal/verify"
	"github.com/kiko1842/vaultwire/internal/wiring"
)

// Backend is the set of external services a run talks to once its network
// is known.
type Backend struct {
	Client   chain.Client
	Verifier verify.Verifier
	// Close releases the backend; may be nil.
	Close func() error
}

// Connector opens the backend for a resolved network.
type Connector func(ctx context.Context, profile *config.NetworkProfile) (*Backend, error)

// Options tune a Driver.
type Options struct {
	// RunID identifies the run in events and reports; a UUID by default.
	RunID             string
	VerifyConcurrency int
	Sinks             []events.Sink
}

// Driver runs the deployment stages for a loaded model.
type Driver struct {
	model     *config.Model
	converter config.Converter
	connect   Connector
	opts      Options
}

// NewDriver creates a driver.
func NewDriver(m *config.Model, converter config.Converter, connect Connector, opts Options) *Driver {
	return &Driver{model: m, converter: converter, connect: connect, opts: opts}
}

// run carries the per-run services handed to every stage function.
type run struct {
	client   chain.Client
	deployer *deployer.Deployer
	upgrader *upgrader.Upgrader
	wiring   *wiring.Executor
	reporter *verify.Reporter
	bus      *events.Bus
}

type stageFunc func(ctx context.Context, r *run, st *State) (*State, error)

// Run executes every stage for the network. The returned State is never
// nil; on failure the error is an *AbortError.
func (d *Driver) Run(ctx context.Context, network string) (*State, error) {
	runID := d.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, logger := ctxlog.With(ctx, "run_id", runID, "network", network)
	bus := events.NewBus(runID, network, d.opts.Sinks...)
	st := &State{RunID: runID}

	logger.Info("🚀 Starting deployment run.")
	bus.Emit(ctx, "", events.KindRunStarted, network, nil)

	st, backend, err := d.resolve(ctx, bus, st, network)
	if err != nil {
		return st, d.abort(ctx, bus, st, StageConfigResolved, err)
	}
	if backend.Close != nil {
		defer func() {
			if err := backend.Close(); err != nil {
				logger.Warn("Closing backend failed.", "error", err)
			}
		}()
	}

	r := &run{
		client:   backend.Client,
		deployer: deployer.New(backend.Client, d.converter),
		upgrader: upgrader.New(backend.Client),
		wiring:   wiring.New(backend.Client, d.model.Settings),
		reporter: verify.NewReporter(backend.Verifier, d.opts.VerifyConcurrency),
		bus:      bus,
	}

	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageTokenDeployed, d.deployRoles(StageTokenDeployed, config.RoleToken)},
		{StageVaultDeployed, d.deployRoles(StageVaultDeployed, config.RoleVault)},
		{StageStrategiesDeployed, d.deployRoles(StageStrategiesDeployed, config.RoleStrategy, config.RoleAdapter)},
		{StageWired, d.wire},
		{StageImplementationsStaged, d.stageImplementations},
		{StageVerified, d.verify},
	}
	for _, s := range stages {
		stageCtx, stageLogger := ctxlog.With(ctx, "stage", s.stage)
		stageLogger.Info("▶️ Starting stage.")
		bus.Emit(stageCtx, string(s.stage), events.KindStageStarted, "", nil)

		next, err := s.fn(stageCtx, r, st)
		if next != nil {
			st = next
		}
		if err != nil {
			return st, d.abort(stageCtx, bus, st, s.stage, err)
		}
		d.complete(stageCtx, bus, st, s.stage)
	}

	d.complete(ctx, bus, st, StageDone)
	for _, def := range st.Deferred {
		logger.Warn("⏸️ Deferred to authority.",
			"step", def.Step,
			"authority", def.Authority,
			"target", def.Target.Hex(),
			"method", def.Method,
			"calldata", def.Calldata.String(),
		)
	}
	logger.Info("🏁 Deployment run finished.", "components", len(st.Components), "deferred", len(st.Deferred))
	bus.Emit(ctx, string(StageDone), events.KindRunFinished, "done", map[string]any{"deferred": len(st.Deferred)})
	return st, nil
}

func (d *Driver) complete(ctx context.Context, bus *events.Bus, st *State, stage Stage) {
	st.Completed = append(st.Completed, stage)
	ctxlog.FromContext(ctx).Info("✅ Stage completed.", "stage", stage)
	bus.Emit(ctx, string(stage), events.KindStageCompleted, "", nil)
}

func (d *Driver) abort(ctx context.Context, bus *events.Bus, st *State, stage Stage, cause error) error {
	ctxlog.FromContext(ctx).Error("❌ Stage failed, aborting run.", "stage", stage, "last_completed", st.LastCompleted(), "error", cause)
	bus.Emit(ctx, string(stage), events.KindStageFailed, "", map[string]any{"error": cause.Error()})
	bus.Emit(ctx, string(stage), events.KindRunFinished, "aborted", nil)
	return &AbortError{
		Stage:         stage,
		LastCompleted: st.LastCompleted(),
		Components:    slices.Clone(st.Components),
		Cause:         cause,
	}
}

// resolve fixes the network profile for the run, checks that every network
// address the pipeline reads exists in it, and opens the backend.
func (d *Driver) resolve(ctx context.Context, bus *events.Bus, st *State, network string) (*State, *Backend, error) {
	logger := ctxlog.FromContext(ctx)

	profile, err := config.NewResolver(d.model).Resolve(network)
	if err != nil {
		return st, nil, err
	}

	var refs []config.Reference
	for _, expr := range d.model.Expressions() {
		refs = append(refs, d.converter.References(expr)...)
	}
	if missing := profile.Missing(refs); len(missing) > 0 {
		return st, nil, fmt.Errorf("%w: network %q has no address for %v", config.ErrIncompleteProfile, profile.ID(), missing)
	}
	st.Network = profile
	logger.Debug("Network profile resolved.", "chain_id", profile.ChainID(), "addresses", len(profile.Names()))

	if d.connect == nil {
		return st, nil, errors.New("no backend connector configured")
	}
	backend, err := d.connect(ctx, profile)
	if err != nil {
		return st, nil, fmt.Errorf("connecting to %s: %w", profile.ID(), err)
	}
	if backend == nil || backend.Client == nil {
		return st, nil, errors.New("connector returned no ledger client")
	}
	st.Deployer = backend.Client.Sender()

	d.complete(ctx, bus, st, StageConfigResolved)
	logger.Info("Run identity established.", "deployer", st.Deployer.Hex(), "held_authorities", d.model.Settings.HeldAuthorities)
	return st, backend, nil
}
