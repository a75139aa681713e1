/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engines.go
Description: Comparison-guided and dataflow-guided fuzzing engines. Both deploy every
target into a fresh in-memory EVM, optionally pinned to a forked chain's block and
chain id, seed the corpus with zero-argument calls to each state-changing method and
run the core loop with their own feedback. Results are written as JSON under the
campaign's output directory.
*/

package fuzzers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/akaylee-evm/pkg/analysis"
	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/kleascm/akaylee-evm/pkg/execution"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/kleascm/akaylee-evm/pkg/strategies"
	"github.com/kleascm/akaylee-evm/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Engine tuning
const (
	DefaultProgressInterval = 10 * time.Second
	mutatorChainLength      = 3
)

// tracingFeedback is a feedback fed by the executor's opcode stream
type tracingFeedback interface {
	core.Feedback
	execution.Tracer
}

// ForkInfo records the chain a campaign was pinned to
type ForkInfo struct {
	Endpoint    string `json:"endpoint"`
	ChainID     uint32 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
}

// CampaignResult summarises one engine run
type CampaignResult struct {
	ID         string                  `json:"id"`
	FuzzerType string                  `json:"fuzzer_type"`
	Targets    []string                `json:"targets"`
	Fork       *ForkInfo               `json:"fork,omitempty"`
	Seeds      int                     `json:"seeds"`
	Stats      core.FuzzerStats        `json:"stats"`
	Bugs       []*core.BugInfo         `json:"bugs"`
	Triage     []analysis.TriageResult `json:"triage"` // Bugs ordered most severe first
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	OutputFile string                  `json:"-"`
}

// Option customises Engines
type Option func(*Engines)

// WithDialer replaces the RPC dialer used for on-chain forking
func WithDialer(dial onchain.DialFunc) Option {
	return func(e *Engines) {
		e.dial = dial
	}
}

// WithProgressInterval sets how often progress is logged
func WithProgressInterval(interval time.Duration) Option {
	return func(e *Engines) {
		e.progressInterval = interval
	}
}

// WithReporter adds a reporter to every campaign
func WithReporter(reporter core.Reporter) Option {
	return func(e *Engines) {
		e.reporters = append(e.reporters, reporter)
	}
}

// Engines implements dispatch.Engine
type Engines struct {
	logger           *logrus.Logger
	dial             onchain.DialFunc
	progressInterval time.Duration
	reporters        []core.Reporter

	results []*CampaignResult
}

// NewEngines creates the fuzzing engines
func NewEngines(logger *logrus.Logger, opts ...Option) *Engines {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Engines{
		logger:           logger,
		dial:             onchain.DialEthClient,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunComparisonGuided fuzzes with comparison-operand feedback
func (e *Engines) RunComparisonGuided(ctx context.Context, cfg *config.Config) error {
	return e.run(ctx, cfg, func(dictionary *strategies.Dictionary) tracingFeedback {
		return NewCmpFeedback(dictionary)
	})
}

// RunDataflowGuided fuzzes with storage dataflow feedback
func (e *Engines) RunDataflowGuided(ctx context.Context, cfg *config.Config) error {
	return e.run(ctx, cfg, func(dictionary *strategies.Dictionary) tracingFeedback {
		return NewDataflowFeedback(dictionary)
	})
}

// Results returns the results of every finished campaign, oldest first
func (e *Engines) Results() []*CampaignResult {
	return append([]*CampaignResult(nil), e.results...)
}

// LastResult returns the most recent campaign result, nil before any run
func (e *Engines) LastResult() *CampaignResult {
	if len(e.results) == 0 {
		return nil
	}
	return e.results[len(e.results)-1]
}

func (e *Engines) run(ctx context.Context, cfg *config.Config, newFeedback func(*strategies.Dictionary) tracingFeedback) error {
	targets := cfg.Targets()
	if len(targets) == 0 {
		return &config.ConfigError{Field: "contract-glob", Err: config.ErrNoTargets}
	}

	limits := cfg.Limits()
	result := &CampaignResult{
		ID:         uuid.New().String(),
		FuzzerType: cfg.FuzzerType().String(),
		StartedAt:  time.Now(),
	}
	logger := e.logger.WithFields(logrus.Fields{
		"campaign":    result.ID,
		"fuzzer_type": result.FuzzerType,
	})

	evmConfig := execution.EVMConfig{GasLimit: limits.GasLimit}
	if forkConfig, enabled := cfg.OnChain(); enabled {
		fork, err := onchain.Connect(ctx, forkConfig, e.dial)
		if err != nil {
			return fmt.Errorf("failed to open on-chain fork: %w", err)
		}
		defer fork.Close()

		evmConfig.ChainID = uint64(fork.ChainID())
		evmConfig.BlockNumber = fork.BlockNumber()
		result.Fork = &ForkInfo{
			Endpoint:    forkConfig.Endpoint,
			ChainID:     fork.ChainID(),
			BlockNumber: fork.BlockNumber(),
		}
		logger.WithFields(logrus.Fields{
			"endpoint": forkConfig.Endpoint,
			"chain_id": fork.ChainID(),
			"block":    fork.BlockNumber(),
		}).Info("Forking chain state")
	}

	executor := execution.NewEVMExecutor(evmConfig, e.logger)
	for _, target := range targets {
		if _, err := executor.Deploy(target); err != nil {
			return err
		}
		result.Targets = append(result.Targets, target.Name)
	}

	rng := rand.New(rand.NewSource(limits.Seed))
	dictionary := strategies.NewDictionary(strategies.DefaultDictionarySize)
	feedback := newFeedback(dictionary)
	executor.AddTracer(feedback)

	mutator := strategies.NewCompositeMutator(
		strategies.DefaultMutators(dictionary, rng),
		mutatorChainLength,
		true,
		rng,
	)

	engine := core.NewEngine(core.EngineConfig{
		MaxIterations: limits.MaxIterations,
		Duration:      limits.Duration,
		StopOnBug:     limits.StopOnBug,
		Seed:          limits.Seed,
	}, executor, feedback, mutator, e.logger)

	oracle := cfg.Oracle()
	if oracle == nil {
		oracle = NewPanicOracle()
	}
	engine.SetOracle(oracle)
	engine.AddReporter(core.NewLoggerReporter(e.logger))
	engine.AddReporter(core.NewProgressReporter(e.logger, engine.Stats(), e.progressInterval))
	for _, reporter := range e.reporters {
		engine.AddReporter(reporter)
	}

	result.Seeds = seed(engine, targets)
	if result.Seeds == 0 {
		return fmt.Errorf("no state-changing methods to fuzz in %v", result.Targets)
	}

	runErr := engine.Run(ctx)

	result.FinishedAt = time.Now()
	result.Stats = engine.Stats().Snapshot()
	result.Bugs = engine.Bugs()
	result.Triage = analysis.NewBugTriage().TriageAll(result.Bugs)
	e.results = append(e.results, result)

	if runErr != nil {
		return fmt.Errorf("campaign %s failed: %w", result.ID, runErr)
	}

	path, err := utils.WriteCampaignResult(limits.OutputDir, result.FuzzerType, result.ID, result)
	if err != nil {
		return err
	}
	result.OutputFile = path

	logger.WithFields(logrus.Fields{
		"executions":  result.Stats.Executions,
		"coverage":    result.Stats.CoveragePoints,
		"unique_bugs": result.Stats.UniqueBugs,
		"result_file": path,
	}).Info("Campaign finished")
	return nil
}

// seed adds one zero-argument call per state-changing method of every target
func seed(engine *core.Engine, targets []contracts.ContractInfo) int {
	seeds := 0
	for _, target := range targets {
		for _, method := range target.Callable() {
			engine.AddSeed(&core.TestCase{
				Target: target.Name,
				Method: method.Name,
				Data:   contracts.SeedCalldata(method),
			})
			seeds++
		}
	}
	return seeds
}
