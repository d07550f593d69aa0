// Package chain defines the ledger client the deployment pipeline talks to.
//
// The pipeline never reaches the network directly: every contract creation,
// proxy upgrade, state-changing call and read goes through a Client. Calls
// that change state return only after the transaction is confirmed, or with
// an error once the confirmation deadline passes. Confirmation timeouts are
// final and are never retried by the client.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrReverted is returned when a transaction was mined but failed.
	ErrReverted = errors.New("transaction reverted")
	// ErrConfirmationTimeout is returned when a transaction was not confirmed
	// before the deadline.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	// ErrUnsafeImplementation is returned when an implementation uses a
	// capability its descriptor did not allow.
	ErrUnsafeImplementation = errors.New("implementation uses a disallowed capability")
	// ErrNotAProxy is returned when an address holds no upgradeable proxy.
	ErrNotAProxy = errors.New("address is not an upgradeable proxy")
)

// Unsafe capabilities an implementation may opt into.
const (
	CapabilityDelegatecall = "delegatecall"
	CapabilitySelfdestruct = "selfdestruct"
)

// DeployRequest describes a new upgradeable component.
type DeployRequest struct {
	Contract string
	// Initializer is the method called through the proxy on creation, e.g.
	// "initialize".
	Initializer string
	Args        []any
	UnsafeAllow []string
}

// Deployment is the result of creating an upgradeable component.
type Deployment struct {
	Proxy          common.Address
	Implementation common.Address
}

// Call is a state-changing or read-only method invocation.
type Call struct {
	Target common.Address
	// Method is a signature as understood by the calldata package.
	Method string
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s.%s", c.Target.Hex(), c.Method)
}

// Receipt is the confirmation of a state-changing call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
}

// Client is the ledger client used by all stages.
type Client interface {
	// Sender is the account that signs every transaction.
	Sender() common.Address
	// DeployProxy creates an implementation and a proxy in front of it, and
	// runs the initializer through the proxy.
	DeployProxy(ctx context.Context, req DeployRequest) (Deployment, error)
	// DeployImplementation creates an implementation without touching any
	// proxy.
	DeployImplementation(ctx context.Context, contract string, unsafeAllow []string) (common.Address, error)
	// UpgradeProxy repoints a proxy to a new implementation.
	UpgradeProxy(ctx context.Context, proxy, impl common.Address) (Receipt, error)
	// ImplementationOf returns the implementation a proxy currently routes to.
	ImplementationOf(ctx context.Context, proxy common.Address) (common.Address, error)
	// Send submits a state-changing call and awaits its confirmation.
	Send(ctx context.Context, call Call) (Receipt, error)
	// Read performs a read-only call and decodes its result.
	Read(ctx context.Context, call Call) ([]any, error)
}
