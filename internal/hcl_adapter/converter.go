package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/hcl/v2"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// References lists the named values an expression reads.
func (c *Converter) References(expr hcl.Expression) []config.Reference {
	if expr == nil {
		return nil
	}
	var refs []config.Reference
	for _, traversal := range expr.Variables() {
		ref := config.Reference{Root: traversal.RootName()}
		if len(traversal) > 1 {
			switch step := traversal[1].(type) {
			case hcl.TraverseAttr:
				ref.Name = step.Name
			case hcl.TraverseIndex:
				if step.Key.Type() == cty.String {
					ref.Name = step.Key.AsString()
				}
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

// Evaluate resolves the expression against the scope. Every reference is
// checked first so that a missing component surfaces as an unresolved
// reference rather than an HCL diagnostic.
func (c *Converter) Evaluate(ctx context.Context, expr hcl.Expression, scope *config.Scope) (any, error) {
	logger := ctxlog.FromContext(ctx)
	if expr == nil {
		return nil, errors.New("expression is not defined")
	}

	for _, ref := range c.References(expr) {
		if ref.Root == config.RootConst {
			if _, ok := scope.Constants[ref.Name]; !ok {
				return nil, &config.UnresolvedReferenceError{Ref: ref}
			}
			continue
		}
		if _, err := scope.Lookup(ref); err != nil {
			return nil, err
		}
	}

	val, diags := expr.Value(evalContext(scope))
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating %s: %w", expr.Range(), diags)
	}
	logger.Debug("Evaluated expression.", "range", expr.Range().String(), "type", val.Type().FriendlyName())
	return toGo(val)
}

// evalContext exposes the scope to HCL expressions.
func evalContext(scope *config.Scope) *hcl.EvalContext {
	addressObject := func(m map[string]string) cty.Value {
		vals := make(map[string]cty.Value, len(m))
		for k, v := range m {
			vals[k] = cty.StringVal(v)
		}
		return cty.ObjectVal(vals)
	}

	network := map[string]string{}
	if scope.Network != nil {
		for name, addr := range scope.Network.Addresses() {
			network[name] = addr.Hex()
		}
	}
	components := make(map[string]string, len(scope.Components))
	for name, addr := range scope.Components {
		components[name] = addr.Hex()
	}
	impls := make(map[string]string, len(scope.Implementations))
	for name, addr := range scope.Implementations {
		impls[name] = addr.Hex()
	}
	constants := scope.Constants
	if constants == nil {
		constants = map[string]cty.Value{}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			config.RootNetwork:        addressObject(network),
			config.RootConst:          cty.ObjectVal(constants),
			config.RootDeployer:       cty.StringVal(scope.Deployer.Hex()),
			config.RootComponent:      addressObject(components),
			config.RootImplementation: addressObject(impls),
		},
	}
}

// toGo converts a cty value into the plain Go values the calldata encoder
// accepts.
func toGo(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, errors.New("value is null")
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("number %s is not an integer", bf.Text('f', -1))
		}
		n, _ := bf.Int(new(big.Int))
		return n, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			v, err := toGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
// Addresses become lower-case hex strings so that checksummed and plain
// spellings compare equal.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	switch tv := v.(type) {
	case nil:
		return cty.NilVal, nil
	case common.Address:
		return cty.StringVal(strings.ToLower(tv.Hex())), nil
	case string:
		if common.IsHexAddress(tv) {
			return cty.StringVal(strings.ToLower(common.HexToAddress(tv).Hex())), nil
		}
		return cty.StringVal(tv), nil
	case *big.Int:
		return cty.NumberVal(new(big.Float).SetInt(tv)), nil
	case []byte:
		return cty.StringVal(hexutil.Encode(tv)), nil
	case []any:
		if len(tv) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(tv))
		for _, e := range tv {
			ev, err := c.ToCtyValue(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, ev)
		}
		return cty.TupleVal(elems), nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// Equal reports whether a Go value and an expected Go value denote the same
// thing once both are converted to the expected value's type.
func (c *Converter) Equal(got, want any) (bool, error) {
	if got == nil || want == nil {
		return got == nil && want == nil, nil
	}
	gotVal, err := c.ToCtyValue(got)
	if err != nil {
		return false, err
	}
	wantVal, err := c.ToCtyValue(want)
	if err != nil {
		return false, err
	}
	converted, err := convert.Convert(gotVal, wantVal.Type())
	if err != nil {
		return false, nil
	}
	return converted.Equals(wantVal).True(), nil
}

var _ config.Converter = (*Converter)(nil)
