/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: loader_test.go
Description: Tests for contract resolution from build artifacts and zero-value ABI
encoding.
*/

package contracts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaultABI = `[
	{"type":"constructor","inputs":[{"name":"owner","type":"address"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"deposit","inputs":[{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"balance","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"memo","inputs":[{"name":"note","type":"string"},{"name":"id","type":"uint8"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const tokenABI = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
]`

// writeArtifacts creates <dir>/<name>.abi, <name>.bin and a placeholder <name>.sol
func writeArtifacts(t *testing.T, dir, name, abiJSON, bin string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".abi"), []byte(abiJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".bin"), []byte(bin), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".sol"), []byte("// source"), 0644))
}

func names(infos []contracts.ContractInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

// TestResolveAll tests that every artifact pair matched by the glob is loaded in order
func TestResolveAll(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080604052\n")
	writeArtifacts(t, dir, "Token", tokenABI, "0x60806040")

	loader := contracts.NewContractLoader(nil)
	infos, err := loader.ResolveAll(filepath.Join(dir, "*"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Token", "Vault"}, names(infos))
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, infos[0].Code)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, infos[1].Code)
}

// TestResolveAllFromSourceGlob tests that a glob over sources finds sibling artifacts
func TestResolveAllFromSourceGlob(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080")
	writeArtifacts(t, dir, "Token", tokenABI, "6080")

	infos, err := contracts.NewContractLoader(nil).ResolveAll(filepath.Join(dir, "*.sol"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Token", "Vault"}, names(infos))
}

// TestResolveTarget tests narrowing the glob to one named contract
func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080")
	writeArtifacts(t, dir, "Token", tokenABI, "6080")

	loader := contracts.NewContractLoader(nil)
	infos, err := loader.ResolveTarget(filepath.Join(dir, "*"), "Vault")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Vault", infos[0].Name)

	infos, err = loader.ResolveTarget(filepath.Join(dir, "*"), "Missing")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

// TestResolveSkipsIncompletePairs tests that a prefix needs both artifacts
func TestResolveSkipsIncompletePairs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lonely.abi"), []byte(tokenABI), 0644))
	writeArtifacts(t, dir, "Iface", tokenABI, "")

	infos, err := contracts.NewContractLoader(nil).ResolveAll(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Empty(t, infos)
}

// TestResolveErrors tests bad patterns and bad artifacts
func TestResolveErrors(t *testing.T) {
	loader := contracts.NewContractLoader(nil)

	_, err := loader.ResolveAll("[")
	assert.Error(t, err)

	dir := t.TempDir()
	writeArtifacts(t, dir, "Broken", "{not json", "6080")
	_, err = loader.ResolveAll(filepath.Join(dir, "*"))
	assert.Error(t, err)

	dir = t.TempDir()
	writeArtifacts(t, dir, "BadHex", tokenABI, "zz")
	_, err = loader.ResolveAll(filepath.Join(dir, "*"))
	assert.Error(t, err)
}

// TestResolveRejectsDuplicateNames tests that one name found in two directories is an error
func TestResolveRejectsDuplicateNames(t *testing.T) {
	root := t.TempDir()
	for _, sub := range []string{"v1", "v2"} {
		dir := filepath.Join(root, sub)
		require.NoError(t, os.MkdirAll(dir, 0755))
		writeArtifacts(t, dir, "Vault", vaultABI, "6080")
	}

	loader := contracts.NewContractLoader(nil)
	_, err := loader.ResolveAll(filepath.Join(root, "*", "*"))
	require.ErrorIs(t, err, contracts.ErrDuplicateContract)
	assert.Contains(t, err.Error(), "Vault")

	_, err = loader.ResolveTarget(filepath.Join(root, "*", "*"), "Vault")
	assert.ErrorIs(t, err, contracts.ErrDuplicateContract)

	infos, err := loader.ResolveAll(filepath.Join(root, "v1", "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Vault"}, names(infos))
}

// TestContractInfoClone tests that a clone shares no mutable state with the original
func TestContractInfoClone(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080")

	infos, err := contracts.NewContractLoader(nil).ResolveAll(filepath.Join(dir, "*"))
	require.NoError(t, err)
	original := infos[0]
	original.ConstructorArgs = []byte{0x01}

	clone := original.Clone()
	clone.Code[0] = 0xfe
	clone.ConstructorArgs[0] = 0xff
	delete(clone.ABI.Methods, "deposit")
	clone.ABI.Constructor.Inputs[0].Name = "renamed"

	assert.Equal(t, byte(0x60), original.Code[0])
	assert.Equal(t, []byte{0x01}, original.ConstructorArgs)
	assert.Contains(t, original.ABI.Methods, "deposit")
	assert.Equal(t, "owner", original.ABI.Constructor.Inputs[0].Name)
}

// TestContractInfoCallable tests that view methods are excluded
func TestContractInfoCallable(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080")

	infos, err := contracts.NewContractLoader(nil).ResolveAll(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, infos, 1)

	var methodNames []string
	for _, m := range infos[0].Callable() {
		methodNames = append(methodNames, m.Name)
	}
	assert.Equal(t, []string{"deposit", "memo"}, methodNames)
}

// TestConstructorArgs tests that constructor inputs get zero-valued arguments
func TestConstructorArgs(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "Vault", vaultABI, "6080")

	infos, err := contracts.NewContractLoader(nil).ResolveAll(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, infos, 1)

	assert.Len(t, infos[0].ConstructorArgs, 32)
	assert.Equal(t, append([]byte{0x60, 0x80}, make([]byte, 32)...), infos[0].DeployData())
}

// TestEncodeZeroArgsRoundTrip tests that zero encodings unpack cleanly
func TestEncodeZeroArgsRoundTrip(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[
		{"type":"function","name":"mixed","inputs":[
			{"name":"a","type":"uint256"},
			{"name":"b","type":"string"},
			{"name":"c","type":"address[]"},
			{"name":"d","type":"bytes32[2]"},
			{"name":"e","type":"bytes"}
		],"outputs":[],"stateMutability":"nonpayable"}
	]`))
	require.NoError(t, err)

	method := parsed.Methods["mixed"]
	encoded := contracts.EncodeZeroArgs(method.Inputs)

	values, err := method.Inputs.Unpack(encoded)
	require.NoError(t, err)
	require.Len(t, values, 5)
	assert.Equal(t, "", values[1])
	assert.Empty(t, values[4])

	seed := contracts.SeedCalldata(method)
	assert.Equal(t, method.ID, seed[:4])
	assert.Equal(t, encoded, seed[4:])
}
