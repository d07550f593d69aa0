package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a deployment:
// the target networks plus the ordered pipeline definition.
type Model struct {
	Settings   Settings
	Networks   map[string]*NetworkDefinition
	Constants  map[string]cty.Value
	Components []*ComponentDescriptor
	Allocation *AllocationDefinition
	Wires      []*WireStep
	Upgrades   []*UpgradeDescriptor
	Checks     []*Check
}

// Settings holds run-wide knobs.
type Settings struct {
	// HeldAuthorities lists the authorities the running key acts as.
	// Steps requiring any other authority are deferred.
	HeldAuthorities []string
}

// AuthorityDeployer is the authority every run holds implicitly.
const AuthorityDeployer = "deployer"

// Role determines which deploy stage creates a component.
type Role string

const (
	RoleToken    Role = "token"
	RoleVault    Role = "vault"
	RoleStrategy Role = "strategy"
	RoleAdapter  Role = "adapter"
)

func (r Role) valid() bool {
	switch r {
	case RoleToken, RoleVault, RoleStrategy, RoleAdapter:
		return true
	}
	return false
}

// ComponentDescriptor describes one upgradeable component to create. It
// is read-only after load.
type ComponentDescriptor struct {
	Name     string
	Contract string
	Role     Role
	// Initializer selects the initializer method; defaults to "initialize".
	Initializer string
	Args        []hcl.Expression
	// UnsafeAllow lists the capabilities the implementation is allowed to
	// use despite the upgrade-safety checks (e.g. "delegatecall").
	UnsafeAllow []string
}

// Phase places a wire step before or after strategy registration.
type Phase string

const (
	PhasePreAllocation  Phase = "pre_allocation"
	PhasePostAllocation Phase = "post_allocation"
)

// WireStep is one state-changing call that connects components.
type WireStep struct {
	Name      string
	Target    hcl.Expression
	Method    string
	Args      []hcl.Expression
	Authority string
	Phase     Phase
}

// AllocationDefinition declares the strategy weights to register with the
// vault, in registration order.
type AllocationDefinition struct {
	Vault         hcl.Expression
	Method        string
	MaxWeight     uint64
	MaxStrategies hcl.Expression
	// CapTotal rejects an allocation whose weights add up to more than 100%.
	CapTotal  bool
	Authority string
	Entries   []*AllocationEntry
}

// AllocationEntry assigns a weight to one strategy component.
type AllocationEntry struct {
	Strategy string
	Weight   hcl.Expression
}

// UpgradeDescriptor stages a new implementation for an existing proxy.
type UpgradeDescriptor struct {
	Name      string
	Contract  string
	Proxy     hcl.Expression
	Authority string
}

// Check is a read-only call whose result is compared to an expectation
// after deployment.
type Check struct {
	Name   string
	Target hcl.Expression
	Method string
	Args   []hcl.Expression
	Expect hcl.Expression
}

// Component looks up a component descriptor by name.
func (m *Model) Component(name string) (*ComponentDescriptor, bool) {
	for _, c := range m.Components {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ComponentsByRole returns the descriptors of the given roles in
// declaration order.
func (m *Model) ComponentsByRole(roles ...Role) []*ComponentDescriptor {
	var out []*ComponentDescriptor
	for _, c := range m.Components {
		for _, r := range roles {
			if c.Role == r {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Holds reports whether the run acts as the given authority.
func (s Settings) Holds(authority string) bool {
	if authority == "" || authority == AuthorityDeployer {
		return true
	}
	for _, held := range s.HeldAuthorities {
		if held == authority {
			return true
		}
	}
	return false
}

// Expressions returns every expression in the pipeline definition, for
// static reference checks.
func (m *Model) Expressions() []hcl.Expression {
	var out []hcl.Expression
	for _, c := range m.Components {
		out = append(out, c.Args...)
	}
	if a := m.Allocation; a != nil {
		out = append(out, a.Vault, a.MaxStrategies)
		for _, e := range a.Entries {
			out = append(out, e.Weight)
		}
	}
	for _, w := range m.Wires {
		out = append(out, w.Target)
		out = append(out, w.Args...)
	}
	for _, u := range m.Upgrades {
		out = append(out, u.Proxy)
	}
	for _, c := range m.Checks {
		out = append(out, c.Target, c.Expect)
		out = append(out, c.Args...)
	}
	var defined []hcl.Expression
	for _, e := range out {
		if e != nil {
			defined = append(defined, e)
		}
	}
	return defined
}

// Validate checks the structural integrity of the pipeline definition.
func (m *Model) Validate() error {
	var errs []error
	names := make(map[string]string)
	claim := func(kind, name string) {
		if prev, ok := names[name]; ok {
			errs = append(errs, fmt.Errorf("%s %q: name already used by a %s", kind, name, prev))
			return
		}
		names[name] = kind
	}

	for _, c := range m.Components {
		claim("component", c.Name)
		if c.Contract == "" {
			errs = append(errs, fmt.Errorf("component %q: contract is required", c.Name))
		}
		if !c.Role.valid() {
			errs = append(errs, fmt.Errorf("component %q: unknown role %q", c.Name, c.Role))
		}
	}
	for _, u := range m.Upgrades {
		claim("upgrade", u.Name)
		if u.Contract == "" {
			errs = append(errs, fmt.Errorf("upgrade %q: contract is required", u.Name))
		}
	}

	if a := m.Allocation; a != nil {
		seen := make(map[string]bool)
		for _, e := range a.Entries {
			c, ok := m.Component(e.Strategy)
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("allocation: strategy %q is not a declared component", e.Strategy))
			case c.Role != RoleStrategy:
				errs = append(errs, fmt.Errorf("allocation: component %q has role %q, expected %q", e.Strategy, c.Role, RoleStrategy))
			}
			if seen[e.Strategy] {
				errs = append(errs, fmt.Errorf("allocation: strategy %q listed twice", e.Strategy))
			}
			seen[e.Strategy] = true
		}
	}

	wires := make(map[string]bool)
	for _, w := range m.Wires {
		if wires[w.Name] {
			errs = append(errs, fmt.Errorf("wire %q: declared twice", w.Name))
		}
		wires[w.Name] = true
		if w.Phase != PhasePreAllocation && w.Phase != PhasePostAllocation {
			errs = append(errs, fmt.Errorf("wire %q: unknown phase %q", w.Name, w.Phase))
		}
		if w.Method == "" {
			errs = append(errs, fmt.Errorf("wire %q: method is required", w.Name))
		}
	}
	for _, c := range m.Checks {
		if c.Method == "" {
			errs = append(errs, fmt.Errorf("check %q: method is required", c.Name))
		}
	}
	return errors.Join(errs...)
}
