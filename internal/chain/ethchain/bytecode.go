package ethchain

import (
	"fmt"
	"slices"

	"github.com/kiko1842/vaultwire/internal/artifacts"
	"github.com/kiko1842/vaultwire/internal/chain"
)

const (
	opPush1        = 0x60
	opPush32       = 0x7f
	opDelegatecall = 0xf4
	opSelfdestruct = 0xff
)

// Capabilities lists the unsafe opcodes reachable in runtime bytecode.
// PUSH immediates and the trailing CBOR metadata are skipped.
func Capabilities(code []byte) []string {
	code = stripMetadata(code)
	var found []string
	add := func(c string) {
		if !slices.Contains(found, c) {
			found = append(found, c)
		}
	}
	for i := 0; i < len(code); i++ {
		op := code[i]
		switch {
		case op >= opPush1 && op <= opPush32:
			i += int(op-opPush1) + 1
		case op == opDelegatecall:
			add(chain.CapabilityDelegatecall)
		case op == opSelfdestruct:
			add(chain.CapabilitySelfdestruct)
		}
	}
	return found
}

// stripMetadata drops the solc metadata section: a CBOR map whose length
// is stored big-endian in the last two bytes.
func stripMetadata(code []byte) []byte {
	if len(code) < 2 {
		return code
	}
	n := int(code[len(code)-2])<<8 | int(code[len(code)-1])
	start := len(code) - 2 - n
	if n == 0 || start < 0 {
		return code
	}
	if b := code[start]; b < 0xa1 || b > 0xa7 {
		return code
	}
	return code[:start]
}

func checkCapabilities(c *artifacts.Contract, allowed []string) error {
	for _, capability := range Capabilities(c.DeployedBytecode) {
		if !slices.Contains(allowed, capability) {
			return fmt.Errorf("%w: %s uses %s", chain.ErrUnsafeImplementation, c.Name, capability)
		}
	}
	return nil
}
