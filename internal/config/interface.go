package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific expression evaluator.
// It is the bridge between raw configuration expressions and the Go
// values handed to the ledger client.
type Converter interface {
	// Evaluate resolves a single expression against the scope and returns
	// a Go value: string, *big.Int, bool, common.Address or []any.
	Evaluate(ctx context.Context, expr hcl.Expression, scope *Scope) (any, error)

	// References lists every named value the expression reads, without
	// evaluating it.
	References(expr hcl.Expression) []Reference

	// Equal compares a value read from the ledger with an expected value
	// produced by Evaluate.
	Equal(got, want any) (bool, error)
}

// Reference is a single named lookup made by an expression, such as
// `network.ce_abnbc` (Root "network", Name "ce_abnbc").
type Reference struct {
	Root string
	Name string
}

// Reference roots understood by every Converter.
const (
	RootNetwork        = "network"
	RootConst          = "const"
	RootDeployer       = "deployer"
	RootComponent      = "component"
	RootImplementation = "implementation"
)

func (r Reference) String() string {
	if r.Name == "" {
		return r.Root
	}
	return r.Root + "." + r.Name
}
