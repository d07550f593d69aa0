package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiko1842/vaultwire/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	// --- Arrange ---
	// A syntax error panics during loading inside app.NewApp().
	invalidHCL := `
		component "vault_token" {
			contract = "CeToken"
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0600), "failed to set up test file")

	args := []string{"--network", "local", "--dry-run", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	exitErr, ok := runErr.(*cli.ExitError)
	require.True(t, ok)
	require.Equal(t, cli.ExitAborted, exitErr.Code)
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to load configuration")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "USAGE:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_DryRunDeployment(t *testing.T) {
	// --- Arrange ---
	t.Setenv("VAULTWIRE_LEDGER_URL", "")
	t.Setenv("VAULTWIRE_ARCHIVE_ENDPOINT", "")
	dir := t.TempDir()
	hcl := `
network "local" {
  chain_id = 31337
  rpc_url  = "http://127.0.0.1:8545"
  addresses = {
    ce_abnbc = "0x0000000000000000000000000000000000000101"
  }
}

component "vault_token" {
  contract = "CeToken"
  role     = "token"
  args     = ["CEROS ankrBNB Vault Token", "ceankrBNB"]
}

component "master_vault" {
  contract = "MasterVault"
  role     = "vault"
  args     = [1000000, 1000000, 10, network.ce_abnbc]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(hcl), 0600))
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{"-c", dir, "-n", "local", "--dry-run"})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "DONE")
	require.Contains(t, out.String(), "master_vault")
}

func TestRun_UnknownNetworkIsUsageError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--network", "mainnet", "--dry-run", filepath.Join("..", "..", "deploy")}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err)
	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok, "expected *cli.ExitError, got %T", err)
	require.Equal(t, cli.ExitUsage, exitErr.Code)
	require.Contains(t, exitErr.Message, "unknown network")
	require.NotContains(t, out.String(), "ABORTED")
}
