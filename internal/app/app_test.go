package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/kiko1842/vaultwire/internal/hcl_adapter"
	"github.com/kiko1842/vaultwire/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testNetworkHCL = `
network "local" {
  chain_id = 31337
  rpc_url  = "http://127.0.0.1:8545"
  addresses = {
    ce_abnbc       = "0x0000000000000000000000000000000000000101"
    helio_provider = "0x0000000000000000000000000000000000000102"
  }
}
`

const testPipelineHCL = `
component "vault_token" {
  contract = "CeToken"
  role     = "token"
  args     = ["CEROS ankrBNB Vault Token", "ceankrBNB"]
}

component "master_vault" {
  contract = "MasterVault"
  role     = "vault"
  args     = [500000, 500000, 10, network.ce_abnbc]
}

component "ceros_strategy" {
  contract = "CerosYieldConverterStrategy"
  role     = "strategy"
  args     = [network.ce_abnbc, component.master_vault]
}

allocation {
  vault          = component.master_vault
  max_strategies = 10
  strategy "ceros_strategy" { weight = 1000000 }
}

wire "change_vault" {
  target    = network.ce_abnbc
  method    = "changeVault(address)"
  args      = [component.master_vault]
  authority = "multisig"
  phase     = "post_allocation"
}

upgrade "helio_provider_v2" {
  contract  = "HelioProviderV2"
  proxy     = network.helio_provider
  authority = "multisig"
}
`

func writeConfig(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULTWIRE_LEDGER_URL", "")
	t.Setenv("VAULTWIRE_ARCHIVE_ENDPOINT", "")
}

func dryRunConfig(t *testing.T, network string) *Config {
	t.Helper()
	dir := writeConfig(t, map[string]string{
		"00_network.hcl":  testNetworkHCL,
		"10_pipeline.hcl": testPipelineHCL,
	})
	cfg, err := NewConfig(Config{
		ConfigPaths: []string{dir},
		Network:     network,
		DryRun:      true,
		ReportPath:  filepath.Join(t.TempDir(), "report.yaml"),
		LogFormat:   "text",
	})
	require.NoError(t, err)
	return cfg
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		in      Config
		wantErr string
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "dry run fills defaults",
			in:   Config{ConfigPaths: []string{"."}, Network: "local", DryRun: true},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 4, c.VerifyConcurrency)
				assert.Equal(t, 3*time.Minute, c.ConfirmTimeout)
			},
		},
		{
			name: "live run keeps explicit values",
			in: Config{
				ConfigPaths: []string{"."}, Network: "bsc", KeyRef: "env:KEY", ArtifactsPath: "artifacts",
				VerifyConcurrency: 8, ConfirmTimeout: time.Minute,
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 8, c.VerifyConcurrency)
				assert.Equal(t, time.Minute, c.ConfirmTimeout)
			},
		},
		{
			name:    "live run needs a key",
			in:      Config{ConfigPaths: []string{"."}, Network: "bsc", ArtifactsPath: "artifacts"},
			wantErr: "signing key",
		},
		{
			name:    "live run needs artifacts",
			in:      Config{ConfigPaths: []string{"."}, Network: "bsc", KeyRef: "env:KEY"},
			wantErr: "artifacts directory",
		},
		{
			name:    "paths and network are required",
			in:      Config{DryRun: true},
			wantErr: "configuration path",
		},
		{
			name:    "unknown network",
			in:      Config{ConfigPaths: []string{"."}, Network: "mainnet", DryRun: true},
			wantErr: "unknown network",
		},
		{
			name:    "negative concurrency",
			in:      Config{ConfigPaths: []string{"."}, Network: "local", DryRun: true, VerifyConcurrency: -1},
			wantErr: "verify concurrency",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			got, err := NewConfig(tc.in)

			// --- Assert ---
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, got)
		})
	}
}

func TestNewApp_PanicsOnInvalidConfiguration(t *testing.T) {
	// --- Arrange ---
	dir := writeConfig(t, map[string]string{
		"main.hcl": `component "x" {
  contract = "X"
  role     = "satellite"
}`,
	})
	cfg, err := NewConfig(Config{ConfigPaths: []string{dir}, Network: "local", DryRun: true})
	require.NoError(t, err)

	// --- Act & Assert ---
	assert.Panics(t, func() {
		NewApp(&SafeBuffer{}, cfg, hcl_adapter.NewLoader())
	})
}

func TestRun_DryRunReachesDone(t *testing.T) {
	// --- Arrange ---
	isolateEnv(t)
	cfg := dryRunConfig(t, "local")
	testApp, logs := SetupAppTest(t, cfg, nil)

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	out := logs.String()
	assert.Contains(t, out, "DONE")
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "change_vault")
	assert.Contains(t, out, "helio_provider_v2")

	raw, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &rep))
	assert.Equal(t, "done", rep["outcome"])
	assert.Equal(t, "local", rep["network"])
	assert.Equal(t, "Done", rep["last_completed"])
	assert.Len(t, rep["components"], 3)
	assert.Len(t, rep["deferred"], 2)
}

func TestRun_AbortReturnsErrorAndReport(t *testing.T) {
	// --- Arrange ---
	isolateEnv(t)
	cfg := dryRunConfig(t, "bsc")
	testApp, logs := SetupAppTest(t, cfg, nil)

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrUnknownNetwork)
	assert.Contains(t, logs.String(), "ABORTED")

	raw, readErr := os.ReadFile(cfg.ReportPath)
	require.NoError(t, readErr)
	var rep map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &rep))
	assert.Equal(t, "aborted", rep["outcome"])
}

func TestRun_ConnectorFailureAborts(t *testing.T) {
	// --- Arrange ---
	isolateEnv(t)
	cfg := dryRunConfig(t, "local")
	connectErr := assert.AnError
	testApp, _ := SetupAppTest(t, cfg, func(ctx context.Context, profile *config.NetworkProfile) (*pipeline.Backend, error) {
		return nil, connectErr
	})

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, connectErr)
}

func TestHealthHandler_ReportsProgress(t *testing.T) {
	// --- Arrange ---
	cfg := dryRunConfig(t, "local")
	testApp, _ := SetupAppTest(t, cfg, nil)
	require.NoError(t, testApp.tracker.Publish(context.Background(), events.Event{
		RunID: "run-1", Stage: "VaultDeployed", Kind: events.KindStageCompleted,
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	// --- Act ---
	testApp.healthHandler(rec, req)

	// --- Assert ---
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, healthStatus{
		Status: "ok",
		RunID:  "run-1",
		Stage:  "VaultDeployed",
		Last:   "stage_completed",
		Events: 1,
	}, body)
}

func TestHealthCheckServer_DisabledByDefault(t *testing.T) {
	// --- Arrange ---
	cfg := dryRunConfig(t, "local")
	testApp, logs := SetupAppTest(t, cfg, nil)

	// --- Act ---
	testApp.healthCheckServer()

	// --- Assert ---
	assert.Nil(t, testApp.httpServer)
	assert.NoError(t, testApp.closeHealthCheckServer())
	assert.Contains(t, logs.String(), "Health check server not started")
}

func TestRun_ShippedConfigurationDryRun(t *testing.T) {
	// --- Arrange ---
	isolateEnv(t)
	cfg, err := NewConfig(Config{
		ConfigPaths: []string{filepath.Join("..", "..", "deploy")},
		Network:     "local",
		DryRun:      true,
		LogFormat:   "json",
	})
	require.NoError(t, err)
	testApp, logs := SetupAppTest(t, cfg, nil)

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, runErr)
	assert.Len(t, testApp.Model().Components, 6)
	assert.Contains(t, logs.String(), "change_vault_minter")
	assert.Contains(t, logs.String(), "ce_vault_v2")
}

func TestRun_PlaceholderNetworkAborts(t *testing.T) {
	// --- Arrange ---
	isolateEnv(t)
	cfg, err := NewConfig(Config{
		ConfigPaths: []string{filepath.Join("..", "..", "deploy")},
		Network:     "bsc",
		DryRun:      true,
	})
	require.NoError(t, err)
	testApp, _ := SetupAppTest(t, cfg, nil)

	// --- Act ---
	runErr := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, config.ErrIncompleteProfile)
}
