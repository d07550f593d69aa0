package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Deferral is a step the run did not perform because it requires an
// authority the run does not hold. It carries everything the holder of that
// authority needs to submit the call out of band.
type Deferral struct {
	Stage     string
	Step      string
	Authority string
	Target    common.Address
	Method    string
	Args      []any
	Calldata  hexutil.Bytes
}
