package ethchain

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/artifacts"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

// ERC-1967 storage slots.
var (
	ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	AdminSlot          = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")
)

func (c *Client) DeployProxy(ctx context.Context, req chain.DeployRequest) (chain.Deployment, error) {
	impl, err := c.store.Deployable(req.Contract)
	if err != nil {
		return chain.Deployment{}, err
	}
	if err := checkCapabilities(impl, req.UnsafeAllow); err != nil {
		return chain.Deployment{}, err
	}
	initData, err := initializerData(impl, req.Initializer, req.Args)
	if err != nil {
		return chain.Deployment{}, err
	}
	proxyArtifact, err := c.store.Deployable(ProxyContract)
	if err != nil {
		return chain.Deployment{}, err
	}
	admin, err := c.admin(ctx)
	if err != nil {
		return chain.Deployment{}, err
	}

	implAddr, err := c.create(ctx, impl, nil)
	if err != nil {
		return chain.Deployment{}, err
	}
	proxyAddr, err := c.create(ctx, proxyArtifact, []any{implAddr, admin, initData})
	if err != nil {
		return chain.Deployment{}, err
	}
	return chain.Deployment{Proxy: proxyAddr, Implementation: implAddr}, nil
}

func (c *Client) DeployImplementation(ctx context.Context, contract string, unsafeAllow []string) (common.Address, error) {
	impl, err := c.store.Deployable(contract)
	if err != nil {
		return common.Address{}, err
	}
	if err := checkCapabilities(impl, unsafeAllow); err != nil {
		return common.Address{}, err
	}
	return c.create(ctx, impl, nil)
}

// UpgradeProxy calls upgrade(proxy, impl) on the proxy's admin contract.
func (c *Client) UpgradeProxy(ctx context.Context, proxy, impl common.Address) (chain.Receipt, error) {
	if _, err := c.ImplementationOf(ctx, proxy); err != nil {
		return chain.Receipt{}, err
	}
	admin, err := c.slotAddress(ctx, proxy, AdminSlot)
	if err != nil {
		return chain.Receipt{}, err
	}
	if admin == (common.Address{}) {
		return chain.Receipt{}, fmt.Errorf("%w: %s has no admin", chain.ErrNotAProxy, proxy.Hex())
	}
	return c.Send(ctx, chain.Call{Target: admin, Method: "upgrade(address,address)", Args: []any{proxy, impl}})
}

// ImplementationOf reads the proxy's ERC-1967 implementation slot.
func (c *Client) ImplementationOf(ctx context.Context, proxy common.Address) (common.Address, error) {
	impl, err := c.slotAddress(ctx, proxy, ImplementationSlot)
	if err != nil {
		return common.Address{}, err
	}
	if impl == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", chain.ErrNotAProxy, proxy.Hex())
	}
	return impl, nil
}

func (c *Client) slotAddress(ctx context.Context, account common.Address, slot common.Hash) (common.Address, error) {
	raw, err := c.backend.StorageAt(ctx, account, slot, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("reading slot %s of %s: %w", slot.Hex(), account.Hex(), err)
	}
	return common.BytesToAddress(raw), nil
}

// admin returns the proxy admin for new proxies, deploying one if needed.
// OpenZeppelin 5 takes the initial owner as constructor argument; earlier
// versions take none.
func (c *Client) admin(ctx context.Context) (common.Address, error) {
	if c.proxyAdmin != (common.Address{}) {
		return c.proxyAdmin, nil
	}
	artifact, err := c.store.Deployable(ProxyAdminContract)
	if err != nil {
		return common.Address{}, err
	}
	var args []any
	if len(artifact.ABI.Constructor.Inputs) == 1 {
		args = []any{c.sender}
	}
	addr, err := c.create(ctx, artifact, args)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying proxy admin: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Proxy admin deployed.", "proxy_admin", addr.Hex())
	c.proxyAdmin = addr
	return addr, nil
}

// create deploys a contract with ABI-packed constructor arguments.
func (c *Client) create(ctx context.Context, contract *artifacts.Contract, args []any) (common.Address, error) {
	data := slices.Clone(contract.Bytecode)
	if len(contract.ABI.Constructor.Inputs) > 0 || len(args) > 0 {
		packed, err := calldata.PackArguments(contract.ABI.Constructor.Inputs, args)
		if err != nil {
			return common.Address{}, fmt.Errorf("%s constructor: %w", contract.Name, err)
		}
		data = append(data, packed...)
	}
	receipt, err := c.transact(ctx, nil, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("creating %s: %w", contract.Name, err)
	}
	ctxlog.FromContext(ctx).Debug("Contract created.", "contract", contract.Name, "address", receipt.ContractAddress.Hex())
	return receipt.ContractAddress, nil
}

func initializerData(impl *artifacts.Contract, initializer string, args []any) ([]byte, error) {
	if initializer == "" {
		return []byte{}, nil
	}
	m, ok := impl.ABI.Methods[initializer]
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", impl.Name, initializer)
	}
	packed, err := calldata.PackArguments(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", impl.Name, initializer, err)
	}
	return append(slices.Clone(m.ID), packed...), nil
}
