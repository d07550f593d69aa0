package ethchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, backend *fakeBackend, opts Options) *Client {
	t.Helper()
	c, err := New(context.Background(), backend, 31337, testKey, newStore(t), opts)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsOtherChain(t *testing.T) {
	_, err := New(context.Background(), newFakeBackend(56), 97, testKey, fakeStore{}, Options{})
	assert.ErrorIs(t, err, ErrChainMismatch)
}

func TestDeployProxy(t *testing.T) {
	// --- Arrange ---
	backend := newFakeBackend(31337)
	admin := common.HexToAddress("0x0000000000000000000000000000000000000a00")
	token := common.HexToAddress("0x0000000000000000000000000000000000000101")
	c := newClient(t, backend, Options{ProxyAdmin: admin})

	// --- Act ---
	dep, err := c.DeployProxy(context.Background(), chain.DeployRequest{
		Contract:    "MasterVault",
		Initializer: "initialize",
		Args:        []any{big.NewInt(500000), token.Hex()},
		UnsafeAllow: []string{chain.CapabilityDelegatecall},
	})

	// --- Assert ---
	require.NoError(t, err)
	txs := backend.transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, uint64(7), txs[0].Nonce())
	assert.Equal(t, uint64(8), txs[1].Nonce())
	assert.Nil(t, txs[0].To())
	assert.Equal(t, uint64(120_000), txs[0].Gas())
	assert.Equal(t, crypto.CreateAddress(testSender, 7), dep.Implementation)
	assert.Equal(t, crypto.CreateAddress(testSender, 8), dep.Proxy)

	initData, err := calldata.Encode("initialize(uint256,address)", []any{big.NewInt(500000), token})
	require.NoError(t, err)
	ctorArgs, err := newStore(t)[ProxyContract].ABI.Constructor.Inputs.Pack(dep.Implementation, admin, initData)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x60, 0x82}, ctorArgs...), txs[1].Data())
}

func TestDeployProxy_DeploysProxyAdminOnce(t *testing.T) {
	// --- Arrange ---
	backend := newFakeBackend(31337)
	c := newClient(t, backend, Options{})
	req := chain.DeployRequest{Contract: "CerosStrategy", UnsafeAllow: []string{chain.CapabilityDelegatecall}}

	// --- Act ---
	_, err := c.DeployProxy(context.Background(), req)
	require.NoError(t, err)
	_, err = c.DeployProxy(context.Background(), req)
	require.NoError(t, err)

	// --- Assert ---
	txs := backend.transactions()
	require.Len(t, txs, 5)
	owner, err := newStore(t)[ProxyAdminContract].ABI.Constructor.Inputs.Pack(testSender)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x60, 0x83}, owner...), txs[0].Data())
}

func TestDeploy_RefusesUnsafeImplementation(t *testing.T) {
	backend := newFakeBackend(31337)
	c := newClient(t, backend, Options{ProxyAdmin: common.HexToAddress("0xa0")})

	_, err := c.DeployProxy(context.Background(), chain.DeployRequest{Contract: "MasterVault"})
	assert.ErrorIs(t, err, chain.ErrUnsafeImplementation)
	_, err = c.DeployImplementation(context.Background(), "MasterVault", nil)
	assert.ErrorIs(t, err, chain.ErrUnsafeImplementation)
	assert.Empty(t, backend.transactions())
}

func TestSend(t *testing.T) {
	target := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	testCases := []struct {
		name    string
		setup   func(b *fakeBackend)
		timeout time.Duration
		wantErr error
	}{
		{name: "confirmed"},
		{
			name:    "mined but reverted",
			setup:   func(b *fakeBackend) { b.revertTo[target] = true },
			wantErr: chain.ErrReverted,
		},
		{
			name:    "estimation fails",
			setup:   func(b *fakeBackend) { b.estimate = errors.New("execution reverted: Ownable") },
			wantErr: chain.ErrReverted,
		},
		{
			name:    "never mined",
			setup:   func(b *fakeBackend) { b.unmined = true },
			timeout: 50 * time.Millisecond,
			wantErr: chain.ErrConfirmationTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			backend := newFakeBackend(31337)
			if tc.setup != nil {
				tc.setup(backend)
			}
			c := newClient(t, backend, Options{ConfirmTimeout: tc.timeout})

			// --- Act ---
			receipt, err := c.Send(context.Background(), chain.Call{
				Target: target,
				Method: "changeProvider(address)",
				Args:   []any{target.Hex()},
			})

			// --- Assert ---
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			txs := backend.transactions()
			require.Len(t, txs, 1)
			assert.Equal(t, txs[0].Hash(), receipt.TxHash)
			assert.Equal(t, uint64(1), receipt.BlockNumber)
		})
	}
}

func TestProxySlots(t *testing.T) {
	// --- Arrange ---
	backend := newFakeBackend(31337)
	proxy := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	impl := common.HexToAddress("0x00000000000000000000000000000000000000c2")
	admin := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	newImpl := common.HexToAddress("0x00000000000000000000000000000000000000c4")
	backend.setSlot(proxy, ImplementationSlot, impl)
	backend.setSlot(proxy, AdminSlot, admin)
	c := newClient(t, backend, Options{})

	// --- Act & Assert ---
	got, err := c.ImplementationOf(context.Background(), proxy)
	require.NoError(t, err)
	assert.Equal(t, impl, got)

	_, err = c.ImplementationOf(context.Background(), admin)
	assert.ErrorIs(t, err, chain.ErrNotAProxy)

	_, err = c.UpgradeProxy(context.Background(), proxy, newImpl)
	require.NoError(t, err)
	txs := backend.transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, admin, *txs[0].To())
	want, err := calldata.Encode("upgrade(address,address)", []any{proxy, newImpl})
	require.NoError(t, err)
	assert.Equal(t, want, txs[0].Data())
}

func TestRead(t *testing.T) {
	// --- Arrange ---
	backend := newFakeBackend(31337)
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	backend.callOut, err = abi.Arguments{{Type: stringType}}.Pack("ceankrBNB")
	require.NoError(t, err)
	c := newClient(t, backend, Options{})

	// --- Act ---
	got, err := c.Read(context.Background(), chain.Call{Target: common.HexToAddress("0xb1"), Method: "symbol()(string)"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []any{"ceankrBNB"}, got)
}
