package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/hcl/v2"
	"github.com/kiko1842/vaultwire/internal/allocation"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/kiko1842/vaultwire/internal/model"
	"github.com/kiko1842/vaultwire/internal/verify"
	"github.com/kiko1842/vaultwire/internal/wiring"
)

// defaultMaxStrategies applies when the allocation block sets no cap.
const defaultMaxStrategies = 10

// maxStrategiesLimit is the largest max_strategies a table can hold.
const maxStrategiesLimit = math.MaxInt

// deployRoles creates every component of the given roles, in declaration
// order.
func (d *Driver) deployRoles(stage Stage, roles ...config.Role) stageFunc {
	return func(ctx context.Context, r *run, st *State) (*State, error) {
		descs := d.model.ComponentsByRole(roles...)
		if len(descs) == 0 {
			ctxlog.FromContext(ctx).Warn("No components declared for stage.", "roles", roles)
		}
		for _, desc := range descs {
			comp, err := r.deployer.Deploy(ctx, desc, st.scope(d.model.Constants))
			if err != nil {
				return st, err
			}
			st.Components = append(st.Components, comp)
			r.bus.Emit(ctx, string(stage), events.KindComponentDeployed, comp.Name, map[string]any{
				"contract":       comp.Contract,
				"proxy":          comp.Proxy.Hex(),
				"implementation": comp.Implementation.Hex(),
			})
		}
		return st, nil
	}
}

// wire builds the full wiring batch, validates it, then applies it:
// pre-allocation wires, strategy registrations, post-allocation wires.
func (d *Driver) wire(ctx context.Context, r *run, st *State) (*State, error) {
	scope := st.scope(d.model.Constants)

	pre, err := d.wireSteps(ctx, scope, config.PhasePreAllocation)
	if err != nil {
		return st, err
	}
	registrations, table, err := d.allocationSteps(ctx, st, scope)
	if err != nil {
		return st, err
	}
	post, err := d.wireSteps(ctx, scope, config.PhasePostAllocation)
	if err != nil {
		return st, err
	}

	steps := append(append(pre, registrations...), post...)
	results, applyErr := r.wiring.Apply(ctx, steps)
	for _, res := range results {
		st.Wiring = append(st.Wiring, res)
		if res.Outcome == wiring.OutcomeDeferred {
			def, err := deferral(StageWired, res.Step.Name, res.Step.Authority, res.Step.Call)
			if err != nil {
				return st, err
			}
			st.Deferred = append(st.Deferred, def)
			r.bus.Emit(ctx, string(StageWired), events.KindStepDeferred, res.Step.Name, map[string]any{"authority": res.Step.Authority})
			continue
		}
		r.bus.Emit(ctx, string(StageWired), events.KindStepApplied, res.Step.Name, map[string]any{"tx": res.Receipt.TxHash.Hex()})
	}
	if applyErr != nil {
		return st, applyErr
	}

	if table != nil {
		st.Allocation = table.Entries()
		st.IdleWeight = table.Remainder()
		if st.IdleWeight > 0 {
			ctxlog.FromContext(ctx).Info("Allocation leaves part of the vault idle.", "idle_weight", st.IdleWeight, "scale", allocation.Scale)
		}
	}
	return st, nil
}

func (d *Driver) wireSteps(ctx context.Context, scope *config.Scope, phase config.Phase) ([]wiring.Step, error) {
	var steps []wiring.Step
	for _, w := range d.model.Wires {
		if w.Phase != phase {
			continue
		}
		target, err := d.evalAddress(ctx, w.Target, scope)
		if err != nil {
			return nil, fmt.Errorf("wire %q: target: %w", w.Name, err)
		}
		args, err := d.evalArgs(ctx, w.Args, scope)
		if err != nil {
			return nil, fmt.Errorf("wire %q: %w", w.Name, err)
		}
		steps = append(steps, wiring.Step{
			Name:      w.Name,
			Call:      chain.Call{Target: target, Method: w.Method, Args: args},
			Authority: w.Authority,
		})
	}
	return steps, nil
}

// allocationSteps validates the whole allocation table before producing
// one registration step per strategy, in declaration order.
func (d *Driver) allocationSteps(ctx context.Context, st *State, scope *config.Scope) ([]wiring.Step, *allocation.Table, error) {
	a := d.model.Allocation
	if a == nil {
		return nil, nil, nil
	}

	vault, err := d.evalAddress(ctx, a.Vault, scope)
	if err != nil {
		return nil, nil, fmt.Errorf("allocation: vault: %w", err)
	}
	maxStrategies := defaultMaxStrategies
	if a.MaxStrategies != nil {
		n, err := d.evalUint(ctx, a.MaxStrategies, scope)
		if err != nil {
			return nil, nil, fmt.Errorf("allocation: max_strategies: %w", err)
		}
		if n == 0 || n > maxStrategiesLimit {
			return nil, nil, fmt.Errorf("allocation: max_strategies must be within 1..%d, got %d", maxStrategiesLimit, n)
		}
		maxStrategies = int(n)
	}
	var opts []allocation.Option
	if a.CapTotal {
		opts = append(opts, allocation.CapTotal())
	}
	table, err := allocation.New(a.MaxWeight, maxStrategies, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("allocation: %w", err)
	}

	for _, e := range a.Entries {
		comp, ok := st.Component(e.Strategy)
		if !ok {
			return nil, nil, fmt.Errorf("allocation: strategy %q: %w", e.Strategy,
				&config.UnresolvedReferenceError{Ref: config.Reference{Root: config.RootComponent, Name: e.Strategy}})
		}
		weight, err := d.evalUint(ctx, e.Weight, scope)
		if err != nil {
			return nil, nil, fmt.Errorf("allocation: strategy %q: weight: %w", e.Strategy, err)
		}
		if err := table.Register(e.Strategy, comp.Proxy, weight); err != nil {
			return nil, nil, fmt.Errorf("allocation: %w", err)
		}
	}

	steps := make([]wiring.Step, 0, table.Len())
	for _, e := range table.Entries() {
		steps = append(steps, wiring.Step{
			Name:      "allocate_" + e.Name,
			Call:      chain.Call{Target: vault, Method: a.Method, Args: []any{e.Address, new(big.Int).SetUint64(e.Weight)}},
			Authority: a.Authority,
		})
	}
	return steps, table, nil
}

// stageImplementations deploys every upgrade's implementation and repoints
// the proxy only when the run holds the upgrade's authority.
func (d *Driver) stageImplementations(ctx context.Context, r *run, st *State) (*State, error) {
	for _, u := range d.model.Upgrades {
		proxy, err := d.evalAddress(ctx, u.Proxy, st.scope(d.model.Constants))
		if err != nil {
			return st, fmt.Errorf("upgrade %q: proxy: %w", u.Name, err)
		}
		authorized := d.model.Settings.Holds(u.Authority)
		staged, err := r.upgrader.Stage(ctx, u.Name, u.Contract, proxy, authorized)
		if err != nil {
			return st, err
		}
		st.Staged = append(st.Staged, staged)
		r.bus.Emit(ctx, string(StageImplementationsStaged), events.KindImplementationStaged, u.Name, map[string]any{
			"proxy":          proxy.Hex(),
			"implementation": staged.Implementation.Hex(),
			"upgraded":       staged.Upgraded,
		})
		if staged.Upgraded {
			continue
		}

		def, err := deferral(StageImplementationsStaged, u.Name, u.Authority, upgradeCall(st.Network, proxy, staged.Implementation))
		if err != nil {
			return st, err
		}
		st.Deferred = append(st.Deferred, def)
		ctxlog.FromContext(ctx).Warn("⏸️ Proxy upgrade deferred to authority.", "upgrade", u.Name, "authority", u.Authority)
		r.bus.Emit(ctx, string(StageImplementationsStaged), events.KindStepDeferred, u.Name, map[string]any{"authority": u.Authority})
	}
	return st, nil
}

// upgradeCall is the call the upgrade authority has to submit: through the
// network's proxy admin when one is declared, on the proxy otherwise.
func upgradeCall(profile *config.NetworkProfile, proxy, impl common.Address) chain.Call {
	if admin, ok := profile.ProxyAdmin(); ok {
		return chain.Call{Target: admin, Method: "upgrade(address,address)", Args: []any{proxy, impl}}
	}
	return chain.Call{Target: proxy, Method: "upgradeTo(address)", Args: []any{impl}}
}

// verify runs the read-only checks and then source verification. Neither
// can fail the run.
func (d *Driver) verify(ctx context.Context, r *run, st *State) (*State, error) {
	st.Checks = d.runChecks(ctx, r, st)

	var targets []verify.Target
	for _, c := range st.Components {
		targets = append(targets, verify.Target{Name: c.Name, Contract: c.Contract, Address: c.Implementation})
	}
	for _, s := range st.Staged {
		targets = append(targets, verify.Target{Name: s.Name, Contract: s.Contract, Address: s.Implementation})
	}
	st.Verification = r.reporter.Verify(ctx, targets)
	for _, o := range st.Verification {
		r.bus.Emit(ctx, string(StageVerified), events.KindVerification, o.Name, map[string]any{
			"address": o.Address.Hex(),
			"status":  string(o.Status),
		})
	}
	return st, nil
}

func (d *Driver) runChecks(ctx context.Context, r *run, st *State) []model.CheckOutcome {
	logger := ctxlog.FromContext(ctx)
	scope := st.scope(d.model.Constants)

	outcomes := make([]model.CheckOutcome, 0, len(d.model.Checks))
	for _, c := range d.model.Checks {
		outcome := d.runCheck(ctx, r, scope, c)
		if outcome.Passed {
			logger.Info("Check passed.", "check", c.Name)
		} else {
			logger.Warn("Check failed.", "check", c.Name, "detail", outcome.Detail)
		}
		r.bus.Emit(ctx, string(StageVerified), events.KindCheck, c.Name, map[string]any{"passed": outcome.Passed})
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (d *Driver) runCheck(ctx context.Context, r *run, scope *config.Scope, c *config.Check) model.CheckOutcome {
	outcome := model.CheckOutcome{Name: c.Name, Method: c.Method}

	target, err := d.evalAddress(ctx, c.Target, scope)
	if err != nil {
		outcome.Detail = err.Error()
		return outcome
	}
	outcome.Target = target
	args, err := d.evalArgs(ctx, c.Args, scope)
	if err != nil {
		outcome.Detail = err.Error()
		return outcome
	}
	got, err := r.client.Read(ctx, chain.Call{Target: target, Method: c.Method, Args: args})
	if err != nil {
		outcome.Detail = err.Error()
		return outcome
	}
	outcome.Got = got

	if c.Expect == nil {
		outcome.Passed = true
		return outcome
	}
	want, err := d.converter.Evaluate(ctx, c.Expect, scope)
	if err != nil {
		outcome.Detail = fmt.Sprintf("expect: %v", err)
		return outcome
	}
	var value any = got
	if len(got) == 1 {
		value = got[0]
	}
	eq, err := d.converter.Equal(value, want)
	switch {
	case err != nil:
		outcome.Detail = err.Error()
	case !eq:
		outcome.Detail = fmt.Sprintf("got %v, want %v", value, want)
	default:
		outcome.Passed = true
	}
	return outcome
}

// deferral records a step for its authority, with ready-to-submit call data.
func deferral(stage Stage, step, authority string, call chain.Call) (model.Deferral, error) {
	data, err := calldata.Encode(call.Method, call.Args)
	if err != nil {
		return model.Deferral{}, fmt.Errorf("encoding deferred step %q: %w", step, err)
	}
	return model.Deferral{
		Stage:     string(stage),
		Step:      step,
		Authority: authority,
		Target:    call.Target,
		Method:    call.Method,
		Args:      call.Args,
		Calldata:  data,
	}, nil
}

func (d *Driver) evalArgs(ctx context.Context, exprs []hcl.Expression, scope *config.Scope) ([]any, error) {
	args := make([]any, len(exprs))
	for i, expr := range exprs {
		v, err := d.converter.Evaluate(ctx, expr, scope)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func (d *Driver) evalAddress(ctx context.Context, expr hcl.Expression, scope *config.Scope) (common.Address, error) {
	v, err := d.converter.Evaluate(ctx, expr, scope)
	if err != nil {
		return common.Address{}, err
	}
	s, ok := v.(string)
	if !ok || !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%v is not an address", v)
	}
	return common.HexToAddress(s), nil
}

func (d *Driver) evalUint(ctx context.Context, expr hcl.Expression, scope *config.Scope) (uint64, error) {
	v, err := d.converter.Evaluate(ctx, expr, scope)
	if err != nil {
		return 0, err
	}
	n, ok := v.(*big.Int)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("%v is not a non-negative integer", v)
	}
	return n.Uint64(), nil
}
