package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kiko1842/vaultwire/internal/artifacts"
	"github.com/kiko1842/vaultwire/internal/chain/ethchain"
	"github.com/kiko1842/vaultwire/internal/chain/simchain"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/env"
	"github.com/kiko1842/vaultwire/internal/keysource"
	"github.com/kiko1842/vaultwire/internal/pipeline"
	"github.com/kiko1842/vaultwire/internal/verify"
)

// dryRunSender signs simulated transactions when no key is configured.
var dryRunSender = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// connectSimulated backs the run with an in-memory ledger. Every address
// of the network profile is seeded as an existing proxy so upgrades of
// live contracts can be rehearsed.
func (a *App) connectSimulated(ctx context.Context, profile *config.NetworkProfile) (*pipeline.Backend, error) {
	sender := dryRunSender
	if a.config.KeyRef != "" {
		key, err := keysource.Load(a.config.KeyRef)
		if err != nil {
			return nil, err
		}
		sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	ledger := simchain.New(sender)
	for _, addr := range profile.Addresses() {
		ledger.RegisterProxy(addr, addr)
	}
	ctxlog.FromContext(ctx).Warn("🧪 Dry run: transactions go to an in-memory ledger.", "sender", sender.Hex())
	return &pipeline.Backend{Client: ledger}, nil
}

// connectLive dials the network's RPC endpoint and, when the network has an
// explorer with an API key, prepares source verification.
func (a *App) connectLive(ctx context.Context, profile *config.NetworkProfile) (*pipeline.Backend, error) {
	logger := ctxlog.FromContext(ctx)

	key, err := keysource.Load(a.config.KeyRef)
	if err != nil {
		return nil, err
	}
	store, err := artifacts.Load(a.config.ArtifactsPath)
	if err != nil {
		return nil, err
	}

	rpcURL := profile.RPCURL()
	if a.config.RPCURL != "" {
		rpcURL = a.config.RPCURL
	}
	admin, _ := profile.ProxyAdmin()
	client, err := ethchain.Dial(ctx, rpcURL, profile.ChainID(), key, store, ethchain.Options{
		ConfirmTimeout: a.config.ConfirmTimeout,
		ProxyAdmin:     admin,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to network.", "network", profile.ID(), "chain_id", profile.ChainID())

	backend := &pipeline.Backend{Client: client, Close: client.Close}
	explorer := profile.Explorer()
	if explorer.APIURL == "" {
		logger.Warn("Network has no explorer, verification will not be attempted.")
		return backend, nil
	}
	apiKey := ""
	if explorer.APIKeyEnv != "" {
		apiKey = env.String(explorer.APIKeyEnv, "")
	}
	if apiKey == "" {
		logger.Warn("Explorer API key not set, verification will not be attempted.", "env", explorer.APIKeyEnv)
		return backend, nil
	}

	etherscan, err := verify.NewEtherscanClient(verify.EtherscanConfig{APIURL: explorer.APIURL, APIKey: apiKey}, store)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("configuring verification: %w", err)
	}
	backend.Verifier = etherscan
	backend.Close = func() error {
		return errors.Join(etherscan.Close(), client.Close())
	}
	return backend, nil
}
