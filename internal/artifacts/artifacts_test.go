package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaultABI = `[
  {"type":"function","name":"initialize","inputs":[{"name":"maxDepositFee","type":"uint256"},{"name":"provider","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"changeProvider","inputs":[{"name":"provider","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func artifactJSON(name, source, abiJSON, bytecode string) string {
	return `{"_format":"hh-sol-artifact-1","contractName":"` + name + `","sourceName":"` + source +
		`","abi":` + abiJSON + `,"bytecode":"` + bytecode + `","deployedBytecode":"` + bytecode + `"}`
}

func newArtifactsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "contracts", "MasterVault.sol", "MasterVault.json"),
		artifactJSON("MasterVault", "contracts/MasterVault.sol", vaultABI, "0x6080604052"))
	writeFile(t, filepath.Join(dir, "contracts", "MasterVault.sol", "MasterVault.dbg.json"),
		`{"_format":"hh-sol-dbg-1","buildInfo":"../../build-info/abc123.json"}`)
	writeFile(t, filepath.Join(dir, "build-info", "abc123.json"),
		`{"solcVersion":"0.8.10","solcLongVersion":"0.8.10+commit.fc410830","input":{"language":"Solidity","sources":{}}}`)

	writeFile(t, filepath.Join(dir, "contracts", "IVault.sol", "IVault.json"),
		artifactJSON("IVault", "contracts/IVault.sol", "[]", "0x"))
	writeFile(t, filepath.Join(dir, "contracts", "a", "Token.sol", "Token.json"),
		artifactJSON("Token", "contracts/a/Token.sol", "[]", "0x60"))
	writeFile(t, filepath.Join(dir, "contracts", "b", "Token.sol", "Token.json"),
		artifactJSON("Token", "contracts/b/Token.sol", "[]", "0x60"))
	return dir
}

func TestLoad_IndexesContracts(t *testing.T) {
	// --- Arrange ---
	dir := newArtifactsDir(t)

	// --- Act ---
	store, err := Load(dir)

	// --- Assert ---
	require.NoError(t, err)
	c, err := store.Contract("MasterVault")
	require.NoError(t, err)
	assert.Equal(t, "contracts/MasterVault.sol:MasterVault", c.FullyQualifiedName())
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, c.Bytecode)
	require.Contains(t, c.ABI.Methods, "initialize")
	assert.Len(t, c.ABI.Methods["initialize"].Inputs, 2)
}

func TestStore_Contract(t *testing.T) {
	store, err := Load(newArtifactsDir(t))
	require.NoError(t, err)

	testCases := []struct {
		name    string
		lookup  string
		wantErr error
	}{
		{name: "fully qualified", lookup: "contracts/a/Token.sol:Token"},
		{name: "ambiguous bare name", lookup: "Token", wantErr: ErrAmbiguousName},
		{name: "unknown", lookup: "Nope", wantErr: ErrUnknownContract},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Contract(tc.lookup)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_Deployable(t *testing.T) {
	store, err := Load(newArtifactsDir(t))
	require.NoError(t, err)

	_, err = store.Deployable("IVault")
	assert.ErrorIs(t, err, ErrNotDeployable)
	_, err = store.Deployable("MasterVault")
	assert.NoError(t, err)
}

func TestStore_Source(t *testing.T) {
	store, err := Load(newArtifactsDir(t))
	require.NoError(t, err)

	src, err := store.Source("MasterVault")
	require.NoError(t, err)
	assert.Equal(t, "contracts/MasterVault.sol:MasterVault", src.ContractName)
	assert.Equal(t, "v0.8.10+commit.fc410830", src.CompilerVersion)
	assert.JSONEq(t, `{"language":"Solidity","sources":{}}`, src.StandardJSON)

	_, err = store.Source("contracts/a/Token.sol:Token")
	assert.ErrorIs(t, err, ErrNoBuildInfo)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "no contract artifacts found")
}
