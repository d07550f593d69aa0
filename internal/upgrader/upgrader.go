// Package upgrader stages new implementations behind existing proxies.
//
// Deploying an implementation is idempotent in effect: it never changes
// where any proxy routes. Repointing a proxy is privileged and is only
// performed when the caller holds the proxy's upgrade authority.
package upgrader

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/model"
)

// Upgrader deploys implementations and upgrades proxies.
type Upgrader struct {
	client chain.Client
}

// New creates an upgrader.
func New(client chain.Client) *Upgrader {
	return &Upgrader{client: client}
}

// DeployImplementation creates a fresh implementation of the contract.
func (u *Upgrader) DeployImplementation(ctx context.Context, contract string) (common.Address, error) {
	impl, err := u.client.DeployImplementation(ctx, contract, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying implementation of %s: %w", contract, err)
	}
	ctxlog.FromContext(ctx).Info("Implementation deployed.", "contract", contract, "implementation", impl.Hex())
	return impl, nil
}

// UpgradeProxy repoints the proxy to impl.
func (u *Upgrader) UpgradeProxy(ctx context.Context, proxy, impl common.Address) error {
	if _, err := u.client.UpgradeProxy(ctx, proxy, impl); err != nil {
		return fmt.Errorf("upgrading proxy %s to %s: %w", proxy.Hex(), impl.Hex(), err)
	}
	ctxlog.FromContext(ctx).Info("Proxy upgraded.", "proxy", proxy.Hex(), "implementation", impl.Hex())
	return nil
}

// Stage checks that proxy is upgradeable, deploys a new implementation and,
// only when authorized, repoints the proxy to it.
func (u *Upgrader) Stage(ctx context.Context, name, contract string, proxy common.Address, authorized bool) (*model.StagedImplementation, error) {
	current, err := u.client.ImplementationOf(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("upgrade %q: %w", name, err)
	}

	impl, err := u.DeployImplementation(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("upgrade %q: %w", name, err)
	}
	staged := &model.StagedImplementation{
		Name:           name,
		Contract:       contract,
		Proxy:          proxy,
		Implementation: impl,
	}
	if !authorized {
		ctxlog.FromContext(ctx).Debug("Proxy upgrade left to its authority.", "upgrade", name, "current_implementation", current.Hex())
		return staged, nil
	}

	if err := u.UpgradeProxy(ctx, proxy, impl); err != nil {
		return nil, fmt.Errorf("upgrade %q: %w", name, err)
	}
	staged.Upgraded = true
	return staged, nil
}
