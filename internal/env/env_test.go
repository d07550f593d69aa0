package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedLookups(t *testing.T) {
	t.Setenv("VW_TEST_STR", "hello")
	t.Setenv("VW_TEST_DUR", "90s")
	t.Setenv("VW_TEST_BOOL", "true")
	t.Setenv("VW_TEST_INT", "7")

	assert.Equal(t, "hello", String("VW_TEST_STR", "x"))
	assert.Equal(t, "x", String("VW_TEST_MISSING", "x"))

	d, err := Duration("VW_TEST_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	b, err := Bool("VW_TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := Int("VW_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 7, i)
}

func TestTypedLookups_ParseErrors(t *testing.T) {
	t.Setenv("VW_TEST_BAD", "not-a-value")

	_, err := Duration("VW_TEST_BAD", time.Second)
	assert.ErrorContains(t, err, "parse VW_TEST_BAD")
	_, err = Bool("VW_TEST_BAD", false)
	assert.Error(t, err)
	_, err = Int("VW_TEST_BAD", 0)
	assert.Error(t, err)
}

func TestBlankValuesUseDefault(t *testing.T) {
	t.Setenv("VW_TEST_BLANK", "  ")

	assert.Equal(t, "x", String("VW_TEST_BLANK", "x"))
	b, err := Bool("VW_TEST_BLANK", true)
	require.NoError(t, err)
	assert.True(t, b)
}
