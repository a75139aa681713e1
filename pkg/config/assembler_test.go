/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: assembler_test.go
Description: Tests for campaign configuration assembly, fuzzer type parsing and
configuration validation.
*/

package config_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyLoader records which resolution operation was invoked
type spyLoader struct {
	contracts   []contracts.ContractInfo
	err         error
	allCalls    int
	targetCalls int
	lastGlob    string
	lastTarget  string
}

func (s *spyLoader) ResolveAll(glob string) ([]contracts.ContractInfo, error) {
	s.allCalls++
	s.lastGlob = glob
	return s.contracts, s.err
}

func (s *spyLoader) ResolveTarget(glob string, name string) ([]contracts.ContractInfo, error) {
	s.targetCalls++
	s.lastGlob = glob
	s.lastTarget = name
	var matched []contracts.ContractInfo
	for _, c := range s.contracts {
		if c.Name == name {
			matched = append(matched, c)
		}
	}
	return matched, s.err
}

func newSpy() *spyLoader {
	return &spyLoader{contracts: []contracts.ContractInfo{
		{Name: "Token", Code: []byte{0x60, 0x80}},
		{Name: "Vault", Code: []byte{0x60, 0x80}},
	}}
}

func ptr[T any](v T) *T { return &v }

// TestParseFuzzerType tests the identifier mapping and its case sensitivity
func TestParseFuzzerType(t *testing.T) {
	cases := map[string]config.FuzzerType{
		"cmp":   config.ComparisonGuided,
		"df":    config.DataflowGuided,
		"basic": config.Basic,
	}
	for id, expected := range cases {
		got, err := config.ParseFuzzerType(id)
		require.NoError(t, err, id)
		assert.Equal(t, expected, got)
		assert.Equal(t, id, got.String())
	}

	for _, id := range []string{"", "CMP", "Df", "symbolic", " cmp"} {
		_, err := config.ParseFuzzerType(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, config.ErrUnknownFuzzer))

		var cfgErr *config.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "fuzzer-type", cfgErr.Field)
		assert.Equal(t, id, cfgErr.Value)
	}
}

// TestFuzzerTypeMetadata tests descriptions and the implemented set
func TestFuzzerTypeMetadata(t *testing.T) {
	assert.Len(t, config.FuzzerTypes(), 3)
	assert.True(t, config.ComparisonGuided.Implemented())
	assert.True(t, config.DataflowGuided.Implemented())
	assert.False(t, config.Basic.Implemented())
	assert.Equal(t, "unknown", config.FuzzerType(42).String())
	assert.NotEmpty(t, config.Basic.Description())
}

// TestAssembleDefaultFuzzerType tests that omitting the type equals passing cmp
func TestAssembleDefaultFuzzerType(t *testing.T) {
	omitted, err := config.Assemble(config.Options{ContractGlob: "contracts/*.sol"}, newSpy())
	require.NoError(t, err)

	explicit, err := config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		FuzzerType:   ptr("cmp"),
	}, newSpy())
	require.NoError(t, err)

	assert.Equal(t, config.ComparisonGuided, omitted.FuzzerType())
	assert.Equal(t, explicit, omitted)
}

// TestAssembleUnknownFuzzerTypeSkipsResolution tests that a bad type fails before the loader runs
func TestAssembleUnknownFuzzerTypeSkipsResolution(t *testing.T) {
	spy := newSpy()
	cfg, err := config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		FuzzerType:   ptr("symbolic"),
		OnChain:      onchain.Options{Enabled: ptr(true)},
	}, spy)

	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, config.ErrUnknownFuzzer))
	assert.Zero(t, spy.allCalls)
	assert.Zero(t, spy.targetCalls)
}

// TestAssembleTargetSelection tests which loader operation each input selects
func TestAssembleTargetSelection(t *testing.T) {
	spy := newSpy()
	cfg, err := config.Assemble(config.Options{ContractGlob: "contracts/*.sol"}, spy)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.allCalls)
	assert.Zero(t, spy.targetCalls)
	assert.Equal(t, "contracts/*.sol", spy.lastGlob)
	assert.Len(t, cfg.Targets(), 2)

	spy = newSpy()
	cfg, err = config.Assemble(config.Options{
		ContractGlob:   "contracts/*.sol",
		TargetContract: ptr("Vault"),
	}, spy)
	require.NoError(t, err)
	assert.Zero(t, spy.allCalls)
	assert.Equal(t, 1, spy.targetCalls)
	assert.Equal(t, "Vault", spy.lastTarget)
	require.Len(t, cfg.Targets(), 1)
	assert.Equal(t, "Vault", cfg.Targets()[0].Name)
}

// TestAssembleEmptyTargetName tests that an empty name still selects single-target resolution
func TestAssembleEmptyTargetName(t *testing.T) {
	spy := newSpy()
	cfg, err := config.Assemble(config.Options{
		ContractGlob:   "contracts/*.sol",
		TargetContract: ptr(""),
	}, spy)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.targetCalls)
	assert.Empty(t, cfg.Targets())
}

// TestAssembleOnChain tests forking defaults, overrides and the disabled case
func TestAssembleOnChain(t *testing.T) {
	cfg, err := config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		OnChain: onchain.Options{
			Endpoint: ptr("http://localhost:8545"),
			ChainID:  ptr(uint32(1)),
		},
	}, newSpy())
	require.NoError(t, err)
	_, enabled := cfg.OnChain()
	assert.False(t, enabled)

	cfg, err = config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		OnChain:      onchain.Options{Enabled: ptr(true)},
	}, newSpy())
	require.NoError(t, err)
	forked, enabled := cfg.OnChain()
	require.True(t, enabled)
	assert.Equal(t, onchain.DefaultEndpoint, forked.Endpoint)
	assert.Equal(t, onchain.DefaultChainID, forked.ChainID)
	assert.True(t, forked.Latest())

	cfg, err = config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		OnChain: onchain.Options{
			Enabled:     ptr(true),
			Endpoint:    ptr("http://localhost:8545"),
			BlockNumber: ptr(uint64(0)),
		},
	}, newSpy())
	require.NoError(t, err)
	forked, _ = cfg.OnChain()
	assert.Equal(t, "http://localhost:8545", forked.Endpoint)
	assert.Equal(t, onchain.DefaultChainID, forked.ChainID)
	assert.False(t, forked.Latest())
	assert.Equal(t, uint64(0), forked.Block())
}

// TestAssembleLoaderError tests that resolution failures propagate
func TestAssembleLoaderError(t *testing.T) {
	spy := newSpy()
	spy.err = errors.New("disk on fire")

	_, err := config.Assemble(config.Options{ContractGlob: "contracts/*.sol"}, spy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

// TestAssembleRequiresGlob tests that a missing glob is reported after the fuzzer type
func TestAssembleRequiresGlob(t *testing.T) {
	spy := newSpy()
	_, err := config.Assemble(config.Options{}, spy)

	var configErr *config.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "contract-glob", configErr.Field)
	assert.ErrorIs(t, err, config.ErrGlobRequired)
	assert.Zero(t, spy.allCalls)

	_, err = config.Assemble(config.Options{FuzzerType: ptr("xyz")}, spy)
	assert.ErrorIs(t, err, config.ErrUnknownFuzzer)
	assert.NotErrorIs(t, err, config.ErrGlobRequired)
}

// TestAssembleDuplicateContract tests that duplicate names surface as a configuration error
func TestAssembleDuplicateContract(t *testing.T) {
	spy := newSpy()
	spy.err = fmt.Errorf("%w Vault: a/Vault and b/Vault", contracts.ErrDuplicateContract)

	_, err := config.Assemble(config.Options{ContractGlob: "*/*"}, spy)
	var configErr *config.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "contract-glob", configErr.Field)
	assert.Equal(t, "*/*", configErr.Value)
	assert.ErrorIs(t, err, contracts.ErrDuplicateContract)
}

// TestAssembleLimitsDefaults tests that zero gas limit and output dir get defaults
func TestAssembleLimitsDefaults(t *testing.T) {
	cfg, err := config.Assemble(config.Options{
		ContractGlob: "contracts/*.sol",
		Limits:       config.Limits{MaxIterations: 10, Seed: 7},
	}, newSpy())
	require.NoError(t, err)

	limits := cfg.Limits()
	assert.Equal(t, uint64(10), limits.MaxIterations)
	assert.Equal(t, int64(7), limits.Seed)
	assert.Equal(t, config.DefaultGasLimit, limits.GasLimit)
	assert.Equal(t, config.DefaultOutputDir, limits.OutputDir)
}

// TestConfigValidate tests the empty target and limit checks
func TestConfigValidate(t *testing.T) {
	cfg := config.New(config.ComparisonGuided, nil, nil, nil, config.DefaultLimits())
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrNoTargets))

	targets := []contracts.ContractInfo{{Name: "Vault"}}
	cfg = config.New(config.ComparisonGuided, nil, targets, nil, config.DefaultLimits())
	assert.NoError(t, cfg.Validate())

	limits := config.DefaultLimits()
	limits.Duration = -time.Second
	cfg = config.New(config.ComparisonGuided, nil, targets, nil, limits)
	assert.Error(t, cfg.Validate())
}

// TestConfigIsolation tests that callers cannot mutate a built configuration
func TestConfigIsolation(t *testing.T) {
	targets := []contracts.ContractInfo{{
		Name:            "Vault",
		Code:            []byte{0x60, 0x80},
		ConstructorArgs: []byte{0x01},
		ABI:             abi.ABI{Methods: map[string]abi.Method{"deposit": {Name: "deposit"}}},
	}}
	forked := onchain.New("http://localhost:8545", 1, ptr(uint64(5)))
	cfg := config.New(config.DataflowGuided, &forked, targets, nil, config.DefaultLimits())

	targets[0].Name = "Changed"
	targets[0].Code[0] = 0xfe
	*forked.BlockNumber = 9
	got := cfg.Targets()
	got[0].Name = "Also changed"
	got[0].Code[0] = 0xfe
	got[0].ConstructorArgs[0] = 0xff
	delete(got[0].ABI.Methods, "deposit")
	got[0].ABI.Methods["withdraw"] = abi.Method{Name: "withdraw"}

	kept := cfg.Targets()[0]
	assert.Equal(t, "Vault", kept.Name)
	assert.Equal(t, []byte{0x60, 0x80}, kept.Code)
	assert.Equal(t, []byte{0x01}, kept.ConstructorArgs)
	assert.Contains(t, kept.ABI.Methods, "deposit")
	assert.NotContains(t, kept.ABI.Methods, "withdraw")
	view, enabled := cfg.OnChain()
	require.True(t, enabled)
	assert.Equal(t, uint64(5), view.Block())

	*view.BlockNumber = 11
	view, _ = cfg.OnChain()
	assert.Equal(t, uint64(5), view.Block())
}

// TestConfigFields tests the structured log rendering
func TestConfigFields(t *testing.T) {
	forked := onchain.New("http://localhost:8545", 1, nil)
	cfg := config.New(config.DataflowGuided, &forked, []contracts.ContractInfo{{Name: "Vault"}}, nil, config.DefaultLimits())

	fields := cfg.Fields()
	assert.Equal(t, "df", fields["fuzzer_type"])
	assert.Equal(t, []string{"Vault"}, fields["targets"])
	assert.Equal(t, "http://localhost:8545 (chain 1, block latest)", fields["onchain"])
}
