// Package calldata turns human-readable method signatures and loosely typed
// configuration values into ABI-encoded call data, and decodes read results.
//
// Signatures use Solidity syntax. Read methods may append their return
// types: "vault()(address)". Tuple types are not supported.
package calldata

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("malformed method signature")

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// Method is a parsed method signature.
type Method struct {
	Name    string
	Inputs  abi.Arguments
	Outputs abi.Arguments
	// Signature is the canonical form used for the selector, without outputs.
	Signature string
}

// ParseSignature parses "name(type,...)" with an optional "(type,...)"
// output list.
func ParseSignature(sig string) (*Method, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadSignature, sig)
	}
	name := sig[:open]
	rest := sig[open:]

	inTypes, rest, err := splitGroup(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadSignature, sig, err)
	}
	var outTypes []string
	if rest != "" {
		outTypes, rest, err = splitGroup(rest)
		if err != nil || rest != "" {
			return nil, fmt.Errorf("%w: %q: trailing text after outputs", ErrBadSignature, sig)
		}
	}

	m := &Method{Name: name}
	if m.Inputs, err = arguments(inTypes); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadSignature, sig, err)
	}
	if m.Outputs, err = arguments(outTypes); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadSignature, sig, err)
	}
	canonical := make([]string, len(m.Inputs))
	for i, in := range m.Inputs {
		canonical[i] = in.Type.String()
	}
	m.Signature = fmt.Sprintf("%s(%s)", name, strings.Join(canonical, ","))
	return m, nil
}

// splitGroup consumes one parenthesised, comma separated list.
func splitGroup(s string) ([]string, string, error) {
	if !strings.HasPrefix(s, "(") {
		return nil, s, errors.New("expected '('")
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, s, errors.New("missing ')'")
	}
	body := strings.TrimSpace(s[1:end])
	if strings.ContainsAny(body, "(") {
		return nil, s, errors.New("tuple types are not supported")
	}
	if body == "" {
		return nil, s[end+1:], nil
	}
	parts := strings.Split(body, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil, s, errors.New("empty type")
		}
	}
	return parts, s[end+1:], nil
}

func arguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for _, raw := range types {
		// Drop parameter names such as "address vault".
		fields := strings.Fields(raw)
		typ := fields[0]
		switch {
		case typ == "uint" || strings.HasPrefix(typ, "uint["):
			typ = "uint256" + strings.TrimPrefix(typ, "uint")
		case typ == "int" || strings.HasPrefix(typ, "int["):
			typ = "int256" + strings.TrimPrefix(typ, "int")
		}
		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", raw, err)
		}
		args = append(args, abi.Argument{Type: t})
	}
	return args, nil
}

// Selector returns the 4-byte function selector.
func (m *Method) Selector() []byte {
	return crypto.Keccak256([]byte(m.Signature))[:4]
}

// Encode coerces the arguments to the method's input types and returns
// selector plus packed arguments.
func (m *Method) Encode(args []any) ([]byte, error) {
	packed, err := PackArguments(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Signature, err)
	}
	return append(m.Selector(), packed...), nil
}

// PackArguments coerces and packs values without a selector, as used for
// constructor arguments.
func PackArguments(inputs abi.Arguments, args []any) ([]byte, error) {
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}
	coerced := make([]any, len(args))
	for i, a := range args {
		v, err := Coerce(inputs[i].Type, a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		coerced[i] = v
	}
	return inputs.Pack(coerced...)
}

// Decode unpacks return data according to the method's outputs. Integers
// are returned as *big.Int regardless of width.
func (m *Method) Decode(data []byte) ([]any, error) {
	values, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%s: decoding result: %w", m.Signature, err)
	}
	for i, v := range values {
		values[i] = widen(v)
	}
	return values, nil
}

// Encode is a shorthand for ParseSignature followed by Method.Encode.
func Encode(sig string, args []any) ([]byte, error) {
	m, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	return m.Encode(args)
}

// Coerce converts a loosely typed value into the Go type the ABI packer
// expects for t.
func Coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		switch tv := v.(type) {
		case common.Address:
			return tv, nil
		case string:
			if !common.IsHexAddress(tv) {
				return nil, fmt.Errorf("%q is not an address", tv)
			}
			return common.HexToAddress(tv), nil
		}
	case abi.BoolTy:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		items, ok := v.([]any)
		if !ok {
			break
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			elem, err := Coerce(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t.String())
}

func toBig(v any) (*big.Int, error) {
	switch tv := v.(type) {
	case *big.Int:
		return new(big.Int).Set(tv), nil
	case int:
		return big.NewInt(int64(tv)), nil
	case int64:
		return big.NewInt(tv), nil
	case uint64:
		return new(big.Int).SetUint64(tv), nil
	case string:
		n, ok := new(big.Int).SetString(tv, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", tv)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot use %T as an integer", v)
}

// fitInteger range-checks n and returns the exact Go type the packer wants:
// sized Go integers up to 64 bits, *big.Int beyond.
func fitInteger(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	}
	target := t.GetType()
	if target == bigIntType {
		return n, nil
	}
	out := reflect.New(target).Elem()
	if t.T == abi.UintTy {
		out.SetUint(n.Uint64())
	} else {
		out.SetInt(n.Int64())
	}
	return out.Interface(), nil
}

func toBytes(v any) ([]byte, error) {
	switch tv := v.(type) {
	case []byte:
		return tv, nil
	case string:
		b, err := hexutil.Decode(tv)
		if err != nil {
			return nil, fmt.Errorf("%q is not 0x-prefixed hex: %w", tv, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot use %T as bytes", v)
}

func widen(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int())
	}
	return v
}
