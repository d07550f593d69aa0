package allocation

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ceros  = common.HexToAddress("0xc1")
	bnbx   = common.HexToAddress("0xc2")
	stkBnb = common.HexToAddress("0xc3")
	snBnb  = common.HexToAddress("0xc4")
)

func TestRegister_Bounds(t *testing.T) {
	testCases := []struct {
		name    string
		weight  uint64
		wantErr error
	}{
		{name: "zero", weight: 0},
		{name: "typical", weight: 150000},
		{name: "exactly max", weight: Scale},
		{name: "above max", weight: Scale + 1, wantErr: ErrWeightAboveMax},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := New(Scale, 10)
			require.NoError(t, err)

			err = table.Register("ceros", ceros, tc.weight)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, 0, table.Len())
				return
			}
			require.NoError(t, err)
			w, ok := table.Weight(ceros)
			require.True(t, ok)
			assert.Equal(t, tc.weight, w)
		})
	}
}

func TestRegister_OverwritesInPlace(t *testing.T) {
	// --- Arrange ---
	table, err := New(Scale, 10)
	require.NoError(t, err)
	require.NoError(t, table.Register("ceros", ceros, 150000))
	require.NoError(t, table.Register("bnbx", bnbx, 75000))

	// --- Act ---
	require.NoError(t, table.Register("ceros", ceros, 300000))

	// --- Assert ---
	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "ceros", Address: ceros, Weight: 300000}, entries[0])
	assert.Equal(t, uint64(375000), table.Total())
}

func TestRegister_StrategyCap(t *testing.T) {
	table, err := New(Scale, 2)
	require.NoError(t, err)
	require.NoError(t, table.Register("ceros", ceros, 1))
	require.NoError(t, table.Register("bnbx", bnbx, 1))

	err = table.Register("stkBnb", stkBnb, 1)
	assert.ErrorIs(t, err, ErrTooManyStrategies)

	// Re-registration does not count against the cap.
	assert.NoError(t, table.Register("bnbx", bnbx, 2))
}

func TestRegister_PartialAndFullAllocation(t *testing.T) {
	table, err := New(Scale, 10)
	require.NoError(t, err)

	require.NoError(t, table.Register("ceros", ceros, 150000))
	require.NoError(t, table.Register("bnbx", bnbx, 75000))
	require.NoError(t, table.Register("stkBnb", stkBnb, 75000))
	assert.Equal(t, uint64(700000), table.Remainder())

	require.NoError(t, table.Register("snBnb", snBnb, 700000))
	assert.Equal(t, Scale, table.Total())
	assert.Equal(t, uint64(0), table.Remainder())
}

func TestRegister_TotalIsUncappedByDefault(t *testing.T) {
	// --- Arrange ---
	table, err := New(Scale, 10)
	require.NoError(t, err)
	require.NoError(t, table.Register("ceros", ceros, 600000))

	// --- Act ---
	err = table.Register("bnbx", bnbx, 600000)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, uint64(1_200_000), table.Total())
	assert.Equal(t, uint64(0), table.Remainder())
}

func TestRegister_CapTotal(t *testing.T) {
	// --- Arrange ---
	table, err := New(Scale, 10, CapTotal())
	require.NoError(t, err)
	require.NoError(t, table.Register("ceros", ceros, 300000))
	require.NoError(t, table.Register("snBnb", snBnb, 700000))

	// --- Act ---
	err = table.Register("snBnb", snBnb, 700001)

	// --- Assert ---
	assert.ErrorIs(t, err, ErrTotalAboveScale)
	w, _ := table.Weight(snBnb)
	assert.Equal(t, uint64(700000), w)
	// Lowering a weight under the cap is still accepted.
	assert.NoError(t, table.Register("ceros", ceros, 100000))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 1)
	assert.Error(t, err)
	_, err = New(Scale+1, 1)
	assert.Error(t, err)
	_, err = New(Scale, 0)
	assert.Error(t, err)
}
