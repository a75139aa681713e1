/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Campaign configuration. Produced once per run by the assembler, then
handed read-only to the selected fuzzing engine. Fields are unexported so engines can
read but never retarget a running campaign.
*/

package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/sirupsen/logrus"
)

// Execution defaults
const (
	DefaultGasLimit  uint64 = 10_000_000
	DefaultOutputDir        = "./fuzz_output"
)

// Outcome is what an oracle sees of one executed call
type Outcome struct {
	Contract   string
	Method     string
	Input      []byte
	ReturnData []byte
	Reverted   bool
	Err        error
}

// Oracle decides whether an executed call exposed a vulnerability
type Oracle interface {
	// Name identifies the oracle in bug reports
	Name() string
	// Inspect returns a description and true when the outcome is a bug
	Inspect(outcome Outcome) (string, bool)
}

// Limits bounds a campaign. Zero MaxIterations and Duration mean unbounded.
type Limits struct {
	MaxIterations uint64        `json:"max_iterations"`
	Duration      time.Duration `json:"duration" validate:"gte=0"`
	GasLimit      uint64        `json:"gas_limit" validate:"gt=0"`
	Seed          int64         `json:"seed"`
	OutputDir     string        `json:"output_dir" validate:"required"`
	StopOnBug     bool          `json:"stop_on_bug"`
}

// DefaultLimits returns unbounded limits with the default gas limit and output dir
func DefaultLimits() Limits {
	return Limits{
		GasLimit:  DefaultGasLimit,
		OutputDir: DefaultOutputDir,
	}
}

func (l Limits) withDefaults() Limits {
	if l.GasLimit == 0 {
		l.GasLimit = DefaultGasLimit
	}
	if l.OutputDir == "" {
		l.OutputDir = DefaultOutputDir
	}
	return l
}

// Config is one fully-specified fuzzing campaign
type Config struct {
	onChain    *onchain.Config
	fuzzerType FuzzerType
	targets    []contracts.ContractInfo
	oracle     Oracle
	limits     Limits
}

// New builds a campaign configuration. Inputs are copied.
func New(fuzzerType FuzzerType, onChain *onchain.Config, targets []contracts.ContractInfo, oracle Oracle, limits Limits) *Config {
	cfg := &Config{
		fuzzerType: fuzzerType,
		targets:    cloneTargets(targets),
		oracle:     oracle,
		limits:     limits,
	}
	if onChain != nil {
		forked := onchain.New(onChain.Endpoint, onChain.ChainID, onChain.BlockNumber)
		cfg.onChain = &forked
	}
	return cfg
}

// OnChain returns the forking context and whether forking is enabled
func (c *Config) OnChain() (onchain.Config, bool) {
	if c.onChain == nil {
		return onchain.Config{}, false
	}
	return onchain.New(c.onChain.Endpoint, c.onChain.ChainID, c.onChain.BlockNumber), true
}

// FuzzerType returns the selected strategy
func (c *Config) FuzzerType() FuzzerType {
	return c.fuzzerType
}

// Targets returns a deep copy of the contracts to fuzz, in resolution order
func (c *Config) Targets() []contracts.ContractInfo {
	return cloneTargets(c.targets)
}

func cloneTargets(targets []contracts.ContractInfo) []contracts.ContractInfo {
	if targets == nil {
		return nil
	}
	cloned := make([]contracts.ContractInfo, len(targets))
	for i, target := range targets {
		cloned[i] = target.Clone()
	}
	return cloned
}

// Oracle returns the configured oracle, nil when engines should use their default
func (c *Config) Oracle() Oracle {
	return c.oracle
}

// Limits returns the campaign bounds
func (c *Config) Limits() Limits {
	return c.limits
}

// Validate rejects configurations that cannot produce a meaningful campaign
func (c *Config) Validate() error {
	if len(c.targets) == 0 {
		return &ConfigError{Field: "contract-glob", Err: ErrNoTargets}
	}
	if err := validator.New().Struct(c.limits); err != nil {
		return &ConfigError{Field: "limits", Err: err}
	}
	return nil
}

// Fields renders the configuration for structured logs
func (c *Config) Fields() logrus.Fields {
	names := make([]string, len(c.targets))
	for i, target := range c.targets {
		names[i] = target.Name
	}

	fields := logrus.Fields{
		"fuzzer_type":    c.fuzzerType.String(),
		"targets":        names,
		"onchain":        "disabled",
		"max_iterations": c.limits.MaxIterations,
		"duration":       c.limits.Duration,
		"gas_limit":      c.limits.GasLimit,
	}
	if c.onChain != nil {
		fields["onchain"] = c.onChain.String()
	}
	return fields
}
