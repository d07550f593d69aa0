package simchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
)

// encodeInitializer type-checks initializer arguments. The simulated
// ledger has no ABIs, so every argument is encoded by the shape of its Go
// value: addresses, integers, strings and bools.
func encodeInitializer(req chain.DeployRequest) ([]byte, error) {
	sig := req.Initializer + "("
	for i, a := range req.Args {
		if i > 0 {
			sig += ","
		}
		sig += inferType(a)
	}
	sig += ")"
	return calldata.Encode(sig, req.Args)
}

func inferType(v any) string {
	switch tv := v.(type) {
	case *big.Int:
		return "uint256"
	case bool:
		return "bool"
	case string:
		if isAddress(tv) {
			return "address"
		}
		return "string"
	case []any:
		if len(tv) > 0 {
			return inferType(tv[0]) + "[]"
		}
		return "uint256[]"
	}
	return "address"
}

func bigFromUint(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}

func isAddress(s string) bool {
	return common.IsHexAddress(s)
}
