package ethchain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kiko1842/vaultwire/internal/artifacts"
	"github.com/stretchr/testify/require"
)

// fakeBackend mines every transaction instantly unless told otherwise.
type fakeBackend struct {
	mu       sync.Mutex
	chainID  int64
	sent     []*types.Transaction
	storage  map[common.Address]map[common.Hash][]byte
	results  map[common.Hash]uint64
	revertTo map[common.Address]bool
	unmined  bool
	callOut  []byte
	estimate error
}

func newFakeBackend(chainID int64) *fakeBackend {
	return &fakeBackend{
		chainID:  chainID,
		storage:  make(map[common.Address]map[common.Hash][]byte),
		results:  make(map[common.Hash]uint64),
		revertTo: make(map[common.Address]bool),
	}
}

func (f *fakeBackend) setSlot(account common.Address, slot common.Hash, value common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storage[account] == nil {
		f.storage[account] = make(map[common.Hash][]byte)
	}
	f.storage[account][slot] = common.LeftPadBytes(value.Bytes(), 32)
}

func (f *fakeBackend) transactions() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(3e9), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, f.estimate
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	status := types.ReceiptStatusSuccessful
	if tx.To() != nil && f.revertTo[*tx.To()] {
		status = types.ReceiptStatusFailed
	}
	f.results[tx.Hash()] = status
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.results[hash]
	if !ok || f.unmined {
		return nil, ethereum.NotFound
	}
	r := &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(int64(len(f.sent)))}
	for _, tx := range f.sent {
		if tx.Hash() == hash && tx.To() == nil {
			r.ContractAddress = crypto.CreateAddress(testSender, tx.Nonce())
		}
	}
	return r, nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) StorageAt(_ context.Context, account common.Address, key common.Hash, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.storage[account][key]; ok {
		return v, nil
	}
	return make([]byte, 32), nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callOut, nil
}

var (
	testKey, _ = crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	testSender = crypto.PubkeyToAddress(testKey.PublicKey)
)

type fakeStore map[string]*artifacts.Contract

func (s fakeStore) Deployable(name string) (*artifacts.Contract, error) {
	c, ok := s[name]
	if !ok {
		return nil, artifacts.ErrUnknownContract
	}
	return c, nil
}

func mustABI(t *testing.T, def string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)
	return parsed
}

func newStore(t *testing.T) fakeStore {
	return fakeStore{
		"MasterVault": {
			Name:             "MasterVault",
			ABI:              mustABI(t, `[{"type":"function","name":"initialize","inputs":[{"name":"maxFee","type":"uint256"},{"name":"token","type":"address"}],"outputs":[]}]`),
			Bytecode:         []byte{0x60, 0x80},
			DeployedBytecode: []byte{0x60, 0x00, 0xf4, 0x00},
		},
		"CerosStrategy": {
			Name:             "CerosStrategy",
			ABI:              mustABI(t, `[]`),
			Bytecode:         []byte{0x60, 0x81},
			DeployedBytecode: []byte{0x5b, 0xf4, 0x00},
		},
		ProxyContract: {
			Name:             ProxyContract,
			ABI:              mustABI(t, `[{"type":"constructor","inputs":[{"name":"_logic","type":"address"},{"name":"admin_","type":"address"},{"name":"_data","type":"bytes"}]}]`),
			Bytecode:         []byte{0x60, 0x82},
			DeployedBytecode: []byte{0x00},
		},
		ProxyAdminContract: {
			Name:             ProxyAdminContract,
			ABI:              mustABI(t, `[{"type":"constructor","inputs":[{"name":"initialOwner","type":"address"}]}]`),
			Bytecode:         []byte{0x60, 0x83},
			DeployedBytecode: []byte{0x00},
		},
	}
}
