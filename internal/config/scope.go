package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zclconf/go-cty/cty"
)

// ErrUnresolvedReference is returned when an expression reads a value the
// scope does not (yet) hold.
var ErrUnresolvedReference = errors.New("unresolved reference")

// UnresolvedReferenceError names the reference that could not be resolved.
type UnresolvedReferenceError struct {
	Ref Reference
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnresolvedReference, e.Ref)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// Scope is the set of values an expression may read at a given point of a
// run. Components and Implementations grow as stages complete.
type Scope struct {
	Network         *NetworkProfile
	Deployer        common.Address
	Constants       map[string]cty.Value
	Components      map[string]common.Address
	Implementations map[string]common.Address
}

// Lookup resolves a reference to an address. Constants are not
// addresses and are handled by the Converter.
func (s *Scope) Lookup(ref Reference) (common.Address, error) {
	var (
		addr common.Address
		ok   bool
	)
	switch ref.Root {
	case RootDeployer:
		addr, ok = s.Deployer, s.Deployer != (common.Address{})
	case RootNetwork:
		if s.Network != nil {
			addr, ok = s.Network.Address(ref.Name)
		}
	case RootComponent:
		addr, ok = s.Components[ref.Name]
	case RootImplementation:
		addr, ok = s.Implementations[ref.Name]
	}
	if !ok {
		return common.Address{}, &UnresolvedReferenceError{Ref: ref}
	}
	return addr, nil
}
