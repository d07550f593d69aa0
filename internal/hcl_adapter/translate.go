package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/kiko1842/vaultwire/internal/config"
)

func translateNetwork(n *networkBlock) *config.NetworkDefinition {
	def := &config.NetworkDefinition{
		ID:         n.Name,
		ChainID:    n.ChainID,
		RPCURL:     n.RPCURL,
		ProxyAdmin: n.ProxyAdmin,
		Addresses:  n.Addresses,
	}
	if n.Explorer != nil {
		def.Explorer = config.ExplorerConfig{APIURL: n.Explorer.APIURL, APIKeyEnv: n.Explorer.APIKeyEnv}
	}
	if def.Addresses == nil {
		def.Addresses = map[string]string{}
	}
	return def
}

func translateComponent(ctx context.Context, c *componentBlock) (*config.ComponentDescriptor, error) {
	args, err := splitList(ctx, c.Args, "args")
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", c.Name, err)
	}
	initializer := c.Initializer
	if initializer == "" {
		initializer = defaultInitializer
	}
	return &config.ComponentDescriptor{
		Name:        c.Name,
		Contract:    c.Contract,
		Role:        config.Role(c.Role),
		Initializer: initializer,
		Args:        args,
		UnsafeAllow: c.UnsafeAllow,
	}, nil
}

func translateAllocation(ctx context.Context, a *allocationBlock) *config.AllocationDefinition {
	def := &config.AllocationDefinition{
		Vault:         a.Vault,
		Method:        a.Method,
		MaxWeight:     defaultMaxWeight,
		MaxStrategies: optionalExpr(ctx, a.MaxStrategies, "max_strategies"),
		CapTotal:      a.CapTotal,
		Authority:     a.Authority,
	}
	if def.Method == "" {
		def.Method = defaultAllocationMethod
	}
	if a.MaxWeight != nil {
		def.MaxWeight = *a.MaxWeight
	}
	for _, s := range a.Strategies {
		def.Entries = append(def.Entries, &config.AllocationEntry{Strategy: s.Name, Weight: s.Weight})
	}
	return def
}

func translateWire(ctx context.Context, w *wireBlock) (*config.WireStep, error) {
	args, err := splitList(ctx, w.Args, "args")
	if err != nil {
		return nil, fmt.Errorf("wire %q: %w", w.Name, err)
	}
	phase := config.Phase(w.Phase)
	if phase == "" {
		phase = config.PhasePreAllocation
	}
	return &config.WireStep{
		Name:      w.Name,
		Target:    w.Target,
		Method:    w.Method,
		Args:      args,
		Authority: w.Authority,
		Phase:     phase,
	}, nil
}

func translateCheck(ctx context.Context, c *checkBlock) (*config.Check, error) {
	args, err := splitList(ctx, c.Args, "args")
	if err != nil {
		return nil, fmt.Errorf("check %q: %w", c.Name, err)
	}
	return &config.Check{
		Name:   c.Name,
		Target: c.Target,
		Method: c.Method,
		Args:   args,
		Expect: optionalExpr(ctx, c.Expect, "expect"),
	}, nil
}
