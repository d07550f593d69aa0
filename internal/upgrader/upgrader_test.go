package upgrader

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/chain/simchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sender = common.HexToAddress("0x00000000000000000000000000000000000000d0")

func setup(t *testing.T) (*simchain.Ledger, chain.Deployment) {
	t.Helper()
	ledger := simchain.New(sender)
	dep, err := ledger.DeployProxy(context.Background(), chain.DeployRequest{Contract: "HelioProvider"})
	require.NoError(t, err)
	return ledger, dep
}

func TestDeployImplementation_NeverMovesAProxy(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	ledger, dep := setup(t)
	u := New(ledger)

	// --- Act ---
	first, err := u.DeployImplementation(ctx, "HelioProviderV2")
	require.NoError(t, err)
	second, err := u.DeployImplementation(ctx, "HelioProviderV2")
	require.NoError(t, err)

	// --- Assert ---
	assert.NotEqual(t, first, second)
	active, err := ledger.ImplementationOf(ctx, dep.Proxy)
	require.NoError(t, err)
	assert.Equal(t, dep.Implementation, active)
	assert.Empty(t, ledger.Upgrades())
}

func TestStage(t *testing.T) {
	testCases := []struct {
		name       string
		authorized bool
	}{
		{name: "authorized upgrades the proxy", authorized: true},
		{name: "unauthorized only stages", authorized: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			ledger, dep := setup(t)

			staged, err := New(ledger).Stage(ctx, "helio_provider_v2", "HelioProviderV2", dep.Proxy, tc.authorized)
			require.NoError(t, err)

			active, err := ledger.ImplementationOf(ctx, dep.Proxy)
			require.NoError(t, err)
			assert.Equal(t, tc.authorized, staged.Upgraded)
			if tc.authorized {
				assert.Equal(t, staged.Implementation, active)
			} else {
				assert.Equal(t, dep.Implementation, active)
			}
		})
	}
}

func TestStage_RejectsNonProxy(t *testing.T) {
	ledger := simchain.New(sender)
	_, err := New(ledger).Stage(context.Background(), "x", "X", common.HexToAddress("0xdead"), true)
	assert.ErrorIs(t, err, chain.ErrNotAProxy)
}
