// Package deployer creates upgradeable components from their descriptors.
package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/model"
)

var (
	ErrUnresolvedArgument = errors.New("unresolved argument")
	ErrDeploymentReverted = errors.New("deployment reverted")
)

// UnresolvedArgumentError reports an initializer argument that could not be
// evaluated. Nothing was submitted to the ledger.
type UnresolvedArgumentError struct {
	Component string
	Index     int
	Cause     error
}

func (e *UnresolvedArgumentError) Error() string {
	return fmt.Sprintf("component %q: argument %d: %v", e.Component, e.Index, e.Cause)
}

func (e *UnresolvedArgumentError) Unwrap() []error { return []error{ErrUnresolvedArgument, e.Cause} }

// DeploymentRevertedError reports a creation call that failed or was not
// confirmed in time.
type DeploymentRevertedError struct {
	Component string
	Contract  string
	Cause     error
}

func (e *DeploymentRevertedError) Error() string {
	return fmt.Sprintf("component %q (%s): %s: %v", e.Component, e.Contract, ErrDeploymentReverted, e.Cause)
}

func (e *DeploymentRevertedError) Unwrap() []error { return []error{ErrDeploymentReverted, e.Cause} }

// Deployer turns descriptors into deployed components.
type Deployer struct {
	client    chain.Client
	converter config.Converter
}

// New creates a deployer.
func New(client chain.Client, converter config.Converter) *Deployer {
	return &Deployer{client: client, converter: converter}
}

// Deploy resolves every argument against the scope, then creates the
// component. Arguments are resolved before anything is submitted.
func (d *Deployer) Deploy(ctx context.Context, desc *config.ComponentDescriptor, scope *config.Scope) (*model.DeployedComponent, error) {
	logger := ctxlog.FromContext(ctx).With("component", desc.Name, "contract", desc.Contract)

	args := make([]any, len(desc.Args))
	for i, expr := range desc.Args {
		v, err := d.converter.Evaluate(ctx, expr, scope)
		if err != nil {
			return nil, &UnresolvedArgumentError{Component: desc.Name, Index: i, Cause: err}
		}
		args[i] = v
	}
	logger.Debug("Resolved initializer arguments.", "count", len(args))

	req := chain.DeployRequest{
		Contract:    desc.Contract,
		Initializer: desc.Initializer,
		Args:        args,
	}
	if len(desc.UnsafeAllow) > 0 {
		req.UnsafeAllow = desc.UnsafeAllow
		logger.Warn("⚠️ Deploying with unsafe capabilities allowed.", "unsafe_allow", desc.UnsafeAllow)
	}

	dep, err := d.client.DeployProxy(ctx, req)
	if err != nil {
		return nil, &DeploymentRevertedError{Component: desc.Name, Contract: desc.Contract, Cause: err}
	}
	logger.Info("Component deployed.", "proxy", dep.Proxy.Hex(), "implementation", dep.Implementation.Hex())

	return &model.DeployedComponent{
		Name:           desc.Name,
		Contract:       desc.Contract,
		Role:           desc.Role,
		Proxy:          dep.Proxy,
		Implementation: dep.Implementation,
		UnsafeAllow:    req.UnsafeAllow,
	}, nil
}
