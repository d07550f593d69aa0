// Package simchain provides an in-memory ledger that implements
// chain.Client.
//
// It is used for dry runs and throughout the test suite. Contract
// addresses are derived from the sender and a nonce exactly like real
// contract creation, so runs are deterministic. Faults can be injected per
// deploy attempt or per method, and ordering rules make a method revert
// until a prerequisite method has been called on the same target.
package simchain

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
)

type readKey struct {
	target common.Address
	method string
}

type rule struct {
	method       string
	prerequisite string
}

// Ledger is a thread-safe, in-memory chain.Client.
type Ledger struct {
	mu sync.Mutex

	sender common.Address
	nonce  uint64
	block  uint64

	contracts    map[common.Address]string
	proxies      map[common.Address]common.Address
	capabilities map[string][]string
	deployments  []chain.Deployment
	deployCount  int
	deployFaults map[int]error
	callFaults   map[string]error
	rules        []rule
	reads        map[readKey][]any
	calls        []chain.Call
	upgrades     []chain.Call
}

// New creates an empty ledger whose transactions are signed by sender.
func New(sender common.Address) *Ledger {
	return &Ledger{
		sender:       sender,
		contracts:    make(map[common.Address]string),
		proxies:      make(map[common.Address]common.Address),
		capabilities: make(map[string][]string),
		deployFaults: make(map[int]error),
		callFaults:   make(map[string]error),
		reads:        make(map[readKey][]any),
	}
}

// FailDeploy makes the n-th deploy attempt (1-based, counting proxies and
// bare implementations) fail with err.
func (l *Ledger) FailDeploy(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deployFaults[n] = err
}

// FailCall makes every Send of the method fail with err.
func (l *Ledger) FailCall(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callFaults[method] = err
}

// Require makes method revert on a target until prerequisite has been
// called successfully on the same target.
func (l *Ledger) Require(method, prerequisite string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, rule{method: method, prerequisite: prerequisite})
}

// DeclareCapabilities records the unsafe capabilities a contract's
// implementation uses.
func (l *Ledger) DeclareCapabilities(contract string, capabilities ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capabilities[contract] = capabilities
}

// SetRead fixes the result of a read-only call.
func (l *Ledger) SetRead(target common.Address, method string, values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads[readKey{target, method}] = values
}

// RegisterProxy seeds a pre-existing proxy.
func (l *Ledger) RegisterProxy(proxy, impl common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.proxies[proxy] = impl
}

// Calls returns every confirmed state-changing call, in order.
func (l *Ledger) Calls() []chain.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// Upgrades returns every confirmed proxy upgrade as a call on the proxy.
func (l *Ledger) Upgrades() []chain.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.upgrades)
}

// Deployments returns every proxy created so far.
func (l *Ledger) Deployments() []chain.Deployment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.deployments)
}

// ContractAt returns the contract name deployed at addr.
func (l *Ledger) ContractAt(addr common.Address) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name, ok := l.contracts[addr]
	return name, ok
}

func (l *Ledger) Sender() common.Address { return l.sender }

func (l *Ledger) DeployProxy(ctx context.Context, req chain.DeployRequest) (chain.Deployment, error) {
	if err := ctx.Err(); err != nil {
		return chain.Deployment{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.beginDeploy(req.Contract, req.UnsafeAllow); err != nil {
		return chain.Deployment{}, err
	}
	if req.Initializer != "" {
		if _, err := encodeInitializer(req); err != nil {
			return chain.Deployment{}, fmt.Errorf("%w: %w", chain.ErrReverted, err)
		}
	}

	impl := l.create(req.Contract)
	proxy := l.create(req.Contract + "Proxy")
	l.proxies[proxy] = impl
	d := chain.Deployment{Proxy: proxy, Implementation: impl}
	l.deployments = append(l.deployments, d)
	return d, nil
}

func (l *Ledger) DeployImplementation(ctx context.Context, contract string, unsafeAllow []string) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.beginDeploy(contract, unsafeAllow); err != nil {
		return common.Address{}, err
	}
	return l.create(contract), nil
}

func (l *Ledger) UpgradeProxy(ctx context.Context, proxy, impl common.Address) (chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return chain.Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.proxies[proxy]; !ok {
		return chain.Receipt{}, fmt.Errorf("%w: %s", chain.ErrNotAProxy, proxy.Hex())
	}
	if _, ok := l.contracts[impl]; !ok {
		return chain.Receipt{}, fmt.Errorf("%w: implementation %s has no code", chain.ErrReverted, impl.Hex())
	}
	l.proxies[proxy] = impl
	l.upgrades = append(l.upgrades, chain.Call{Target: proxy, Method: "upgradeTo(address)", Args: []any{impl}})
	return l.receipt(), nil
}

func (l *Ledger) ImplementationOf(ctx context.Context, proxy common.Address) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	impl, ok := l.proxies[proxy]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", chain.ErrNotAProxy, proxy.Hex())
	}
	return impl, nil
}

func (l *Ledger) Send(ctx context.Context, call chain.Call) (chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return chain.Receipt{}, err
	}
	if _, err := calldata.Encode(call.Method, call.Args); err != nil {
		return chain.Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.callFaults[call.Method]; ok {
		return chain.Receipt{}, err
	}
	for _, r := range l.rules {
		if r.method == call.Method && !l.calledLocked(call.Target, r.prerequisite) {
			return chain.Receipt{}, fmt.Errorf("%w: %s requires %s first", chain.ErrReverted, call.Method, r.prerequisite)
		}
	}
	l.calls = append(l.calls, call)
	return l.receipt(), nil
}

func (l *Ledger) Read(ctx context.Context, call chain.Call) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := calldata.Encode(call.Method, call.Args); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	values, ok := l.reads[readKey{call.Target, call.Method}]
	if !ok {
		return nil, fmt.Errorf("%w: no result for %s", chain.ErrReverted, call)
	}
	return slices.Clone(values), nil
}

func (l *Ledger) beginDeploy(contract string, unsafeAllow []string) error {
	l.deployCount++
	if err, ok := l.deployFaults[l.deployCount]; ok {
		return err
	}
	for _, capability := range l.capabilities[contract] {
		if !slices.Contains(unsafeAllow, capability) {
			return fmt.Errorf("%w: %s uses %s", chain.ErrUnsafeImplementation, contract, capability)
		}
	}
	return nil
}

func (l *Ledger) create(contract string) common.Address {
	addr := crypto.CreateAddress(l.sender, l.nonce)
	l.nonce++
	l.block++
	l.contracts[addr] = contract
	return addr
}

func (l *Ledger) receipt() chain.Receipt {
	l.nonce++
	l.block++
	return chain.Receipt{
		TxHash:      crypto.Keccak256Hash(l.sender.Bytes(), common.BigToHash(bigFromUint(l.nonce)).Bytes()),
		BlockNumber: l.block,
	}
}

func (l *Ledger) calledLocked(target common.Address, method string) bool {
	for _, c := range l.calls {
		if c.Target == target && c.Method == method {
			return true
		}
	}
	return false
}

var _ chain.Client = (*Ledger)(nil)
