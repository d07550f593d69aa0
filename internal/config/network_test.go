package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *Model {
	return &Model{
		Networks: map[string]*NetworkDefinition{
			"bsc_testnet": {
				ID:         "bsc_testnet",
				ChainID:    97,
				RPCURL:     "https://rpc.testnet.example",
				ProxyAdmin: "0x00000000000000000000000000000000000000aa",
				Explorer:   ExplorerConfig{APIURL: "https://api.explorer.example/api", APIKeyEnv: "EXPLORER_KEY"},
				Addresses: map[string]string{
					"ce_abnbc":       "0x0000000000000000000000000000000000000001",
					"helio_provider": "0x0000000000000000000000000000000000000002",
				},
			},
			"bsc": {
				ID:      "bsc",
				ChainID: 97, // wrong on purpose
				RPCURL:  "https://rpc.example",
			},
		},
	}
}

func TestResolve_ReturnsFullyPopulatedProfile(t *testing.T) {
	// --- Arrange ---
	r := NewResolver(testModel())

	// --- Act ---
	p, err := r.Resolve("bsc_testnet")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, NetworkBSCTestnet, p.ID())
	assert.Equal(t, uint64(97), p.ChainID())
	assert.Equal(t, "https://rpc.testnet.example", p.RPCURL())
	assert.Equal(t, "EXPLORER_KEY", p.Explorer().APIKeyEnv)
	admin, ok := p.ProxyAdmin()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xaa"), admin)
	assert.Equal(t, []string{"ce_abnbc", "helio_provider"}, p.Names())

	addr, ok := p.Address("helio_provider")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x2"), addr)
}

func TestResolve_IsImmutable(t *testing.T) {
	r := NewResolver(testModel())
	p, err := r.Resolve("bsc_testnet")
	require.NoError(t, err)

	copied := p.Addresses()
	copied["ce_abnbc"] = common.HexToAddress("0xdead")

	addr, _ := p.Address("ce_abnbc")
	assert.Equal(t, common.HexToAddress("0x1"), addr)
}

func TestResolve_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		network string
		wantErr error
	}{
		{name: "unknown identifier", network: "ethereum", wantErr: ErrUnknownNetwork},
		{name: "empty identifier", network: "", wantErr: ErrUnknownNetwork},
		{name: "known but not configured", network: "local", wantErr: ErrUnknownNetwork},
		{name: "chain id mismatch", network: "bsc", wantErr: ErrIncompleteProfile},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(testModel())
			p, err := r.Resolve(tc.network)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestResolve_RejectsZeroAddress(t *testing.T) {
	m := testModel()
	m.Networks["bsc_testnet"].Addresses["broken"] = "0x0000000000000000000000000000000000000000"

	_, err := NewResolver(m).Resolve("bsc_testnet")
	require.ErrorIs(t, err, ErrIncompleteProfile)
	assert.ErrorContains(t, err, "broken")
}

func TestParseNetworkID_NormalizesCase(t *testing.T) {
	id, err := ParseNetworkID(" BSC_Testnet ")
	require.NoError(t, err)
	assert.Equal(t, NetworkBSCTestnet, id)
	assert.Equal(t, []string{"bsc", "bsc_testnet", "local"}, KnownNetworks())
}

func TestProfileMissing(t *testing.T) {
	p, err := NewResolver(testModel()).Resolve("bsc_testnet")
	require.NoError(t, err)

	missing := p.Missing([]Reference{
		{Root: RootNetwork, Name: "ce_abnbc"},
		{Root: RootNetwork, Name: "stader_stake_manager"},
		{Root: RootNetwork, Name: "stader_stake_manager"},
		{Root: RootComponent, Name: "master_vault"},
	})
	assert.Equal(t, []string{"stader_stake_manager"}, missing)
}
