// Package ethchain implements chain.Client on an EVM JSON-RPC endpoint.
//
// Components are deployed as OpenZeppelin transparent proxies: the
// implementation is created from its artifact, then a
// TransparentUpgradeableProxy whose constructor runs the initializer. Proxy
// upgrades go through the proxy's admin contract. Every transaction is
// signed locally with a legacy signer and awaited until mined.
package ethchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kiko1842/vaultwire/internal/artifacts"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

// Contract names looked up in the artifact store.
const (
	ProxyContract      = "TransparentUpgradeableProxy"
	ProxyAdminContract = "ProxyAdmin"
)

// ErrChainMismatch is returned when the endpoint serves another chain than
// the network profile declares.
var ErrChainMismatch = errors.New("chain id mismatch")

// Backend is the subset of the JSON-RPC API the client needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractStore provides compiled contracts by name.
type ContractStore interface {
	Deployable(name string) (*artifacts.Contract, error)
}

// Options tune a Client.
type Options struct {
	// ConfirmTimeout bounds the wait for each transaction to be mined.
	ConfirmTimeout time.Duration
	// GasMarginPercent is added on top of every gas estimate.
	GasMarginPercent uint64
	// ProxyAdmin administers new proxies. When zero, a ProxyAdmin is
	// deployed on first use.
	ProxyAdmin common.Address
}

func (o Options) withDefaults() Options {
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 3 * time.Minute
	}
	if o.GasMarginPercent == 0 {
		o.GasMarginPercent = 20
	}
	return o
}

// Client is a chain.Client backed by a JSON-RPC endpoint.
type Client struct {
	backend Backend
	store   ContractStore
	key     *ecdsa.PrivateKey
	sender  common.Address
	chainID *big.Int
	opts    Options
	closer  func()

	// mu serializes transactions so nonces are handed out in order.
	mu          sync.Mutex
	nonce       uint64
	nonceLoaded bool
	proxyAdmin  common.Address
}

// Dial connects to rpcURL and checks that it serves chainID.
func Dial(ctx context.Context, rpcURL string, chainID uint64, key *ecdsa.PrivateKey, store ContractStore, opts Options) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	c, err := New(ctx, ec, chainID, key, store, opts)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close
	return c, nil
}

// New wraps an existing backend and checks that it serves chainID.
func New(ctx context.Context, backend Backend, chainID uint64, key *ecdsa.PrivateKey, store ContractStore, opts Options) (*Client, error) {
	got, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	if !got.IsUint64() || got.Uint64() != chainID {
		return nil, fmt.Errorf("%w: endpoint serves %s, network expects %d", ErrChainMismatch, got, chainID)
	}
	opts = opts.withDefaults()
	return &Client{
		backend:    backend,
		store:      store,
		key:        key,
		sender:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:    got,
		opts:       opts,
		proxyAdmin: opts.ProxyAdmin,
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() error {
	if c.closer != nil {
		c.closer()
	}
	return nil
}

func (c *Client) Sender() common.Address { return c.sender }

// transact signs, submits and awaits one transaction. A nil to creates a
// contract.
func (c *Client) transact(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logger := ctxlog.FromContext(ctx)

	if !c.nonceLoaded {
		n, err := c.backend.PendingNonceAt(ctx, c.sender)
		if err != nil {
			return nil, fmt.Errorf("reading nonce: %w", err)
		}
		c.nonce, c.nonceLoaded = n, true
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggesting gas price: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.sender, To: to, GasPrice: gasPrice, Data: data})
	if err != nil {
		// Estimation executes the call; a failure here is a revert.
		return nil, fmt.Errorf("%w: estimating gas: %w", chain.ErrReverted, err)
	}
	gas += gas * c.opts.GasMarginPercent / 100

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    new(big.Int),
		Data:     data,
	}), types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("sending transaction: %w", err)
	}
	c.nonce++
	logger.Debug("Transaction sent.", "tx", tx.Hash().Hex(), "nonce", tx.Nonce(), "gas", gas)

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: tx %s after %s", chain.ErrConfirmationTimeout, tx.Hash().Hex(), c.opts.ConfirmTimeout)
		}
		return nil, fmt.Errorf("awaiting tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx %s", chain.ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func toReceipt(r *types.Receipt) chain.Receipt {
	out := chain.Receipt{TxHash: r.TxHash}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

var _ chain.Client = (*Client)(nil)
