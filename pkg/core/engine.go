/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Main fuzzing loop. Pulls calls from the scheduler, executes them, consults
the feedback and the oracle, grows the corpus and refills the scheduler by mutation
until the iteration or time budget runs out, the context is cancelled, or a bug is
found with stop-on-bug set. Runs on the calling goroutine.
*/

package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/sirupsen/logrus"
)

// Engine defaults
const (
	DefaultMutationsPerSource = 4
	sourcesPerRound           = 8
	prioritySourcesPerRound   = 2
)

var (
	// ErrEmptyCorpus is returned when Run is called before any seed was added
	ErrEmptyCorpus = errors.New("corpus has no seed test cases")
	// ErrAlreadyRunning is returned when Run is called on a running engine
	ErrAlreadyRunning = errors.New("engine is already running")
)

// EngineConfig bounds one engine run. Zero MaxIterations and Duration mean unbounded.
type EngineConfig struct {
	MaxIterations      uint64
	Duration           time.Duration
	StopOnBug          bool
	MaxCorpusSize      int
	MutationsPerSource int
	Seed               int64
}

// Engine drives one fuzzing campaign
type Engine struct {
	config EngineConfig
	stats  *FuzzerStats
	logger *logrus.Logger

	executor Executor
	feedback Feedback
	mutator  Mutator
	oracle   config.Oracle

	corpus    *Corpus
	scheduler *RoundRobinScheduler
	rng       *rand.Rand
	reporters []Reporter

	bugs     []*BugInfo
	seenBugs map[string]bool

	running bool
	mu      sync.Mutex
}

// NewEngine creates an engine around the given executor, feedback and mutator
func NewEngine(cfg EngineConfig, executor Executor, feedback Feedback, mutator Mutator, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.MutationsPerSource <= 0 {
		cfg.MutationsPerSource = DefaultMutationsPerSource
	}

	corpus := NewCorpus()
	corpus.SetMaxSize(cfg.MaxCorpusSize)

	return &Engine{
		config:    cfg,
		stats:     &FuzzerStats{StartTime: time.Now()},
		logger:    logger,
		executor:  executor,
		feedback:  feedback,
		mutator:   mutator,
		corpus:    corpus,
		scheduler: NewRoundRobinScheduler(),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		seenBugs:  make(map[string]bool),
	}
}

// SetOracle sets the bug oracle. Without one no bugs are reported.
func (e *Engine) SetOracle(oracle config.Oracle) {
	e.oracle = oracle
}

// AddReporter registers a Reporter for telemetry and live reporting.
func (e *Engine) AddReporter(reporter Reporter) {
	e.reporters = append(e.reporters, reporter)
}

// AddSeed adds a generation-zero test case to the corpus and the schedule
func (e *Engine) AddSeed(testCase *TestCase) {
	if testCase.ID == "" {
		testCase.ID = uuid.New().String()
	}
	if testCase.CreatedAt.IsZero() {
		testCase.CreatedAt = time.Now()
	}
	if testCase.Metadata == nil {
		testCase.Metadata = make(map[string]interface{})
	}
	testCase.Generation = 0
	testCase.Priority = e.calculatePriority(testCase)

	if e.corpus.Add(testCase) {
		e.scheduler.Push(testCase)
		atomic.StoreInt64(&e.stats.CorpusSize, int64(e.corpus.Size()))
	}
}

// Run executes the campaign until a stop condition is met.
// Budget exhaustion, cancellation and stop-on-bug all end the run without error.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if e.corpus.Size() == 0 {
		return ErrEmptyCorpus
	}
	if e.executor == nil || e.feedback == nil || e.mutator == nil {
		return fmt.Errorf("engine requires an executor, a feedback and a mutator")
	}

	if e.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Duration)
		defer cancel()
	}

	e.stats.StartTime = time.Now()
	e.logger.WithFields(logrus.Fields{
		"feedback":       e.feedback.Name(),
		"mutator":        e.mutator.Name(),
		"seeds":          e.corpus.Size(),
		"max_iterations": e.config.MaxIterations,
		"duration":       e.config.Duration,
	}).Info("Starting fuzzing loop")

	for {
		if reason := e.stopReason(ctx); reason != "" {
			e.logFinished(reason)
			return nil
		}

		testCase := e.scheduler.Next()
		if testCase == nil {
			if e.generateTestCases() == 0 {
				return fmt.Errorf("mutator %s produced no test cases", e.mutator.Name())
			}
			continue
		}

		result, err := e.executor.Execute(ctx, testCase)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("failed to execute test case %s: %w", testCase.ID, err)
		}

		e.stats.IncrementExecutions()
		if e.processResult(testCase, result) && e.config.StopOnBug {
			e.logFinished("bug found")
			return nil
		}
	}
}

// stopReason returns a non-empty reason when the campaign must end
func (e *Engine) stopReason(ctx context.Context) string {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "duration elapsed"
		}
		return "interrupted"
	}
	if e.config.MaxIterations > 0 && uint64(e.stats.Snapshot().Executions) >= e.config.MaxIterations {
		return "iteration budget exhausted"
	}
	return ""
}

func (e *Engine) logFinished(reason string) {
	snapshot := e.stats.Snapshot()
	e.logger.WithFields(logrus.Fields{
		"reason":      reason,
		"executions":  snapshot.Executions,
		"coverage":    snapshot.CoveragePoints,
		"corpus":      snapshot.CorpusSize,
		"queued":      e.scheduler.Size(),
		"unique_bugs": snapshot.UniqueBugs,
	}).Info("Fuzzing loop finished")
}

// selectSources picks the highest priority entries, then fills the round at random
func (e *Engine) selectSources() []*TestCase {
	sources := e.corpus.GetByPriority(prioritySourcesPerRound)
	picked := make(map[string]bool, sourcesPerRound)
	for _, source := range sources {
		picked[source.ID] = true
	}

	for _, source := range e.corpus.GetRandom(e.rng, sourcesPerRound) {
		if len(sources) >= sourcesPerRound {
			break
		}
		if !picked[source.ID] {
			picked[source.ID] = true
			sources = append(sources, source)
		}
	}
	return sources
}

// generateTestCases mutates selected corpus entries into the scheduler
func (e *Engine) generateTestCases() int {
	sources := e.selectSources()

	generated := 0
	for _, source := range sources {
		for i := 0; i < e.config.MutationsPerSource; i++ {
			mutated, err := e.mutator.Mutate(source)
			if err != nil || mutated == nil {
				e.logger.WithError(err).Debug("Mutation failed")
				continue
			}

			mutated.ParentID = source.ID
			mutated.Target = source.Target
			mutated.Method = source.Method
			mutated.Generation = source.Generation + 1
			mutated.CreatedAt = time.Now()
			if mutated.ID == "" {
				mutated.ID = uuid.New().String()
			}
			if mutated.Metadata == nil {
				mutated.Metadata = make(map[string]interface{})
			}
			mutated.Priority = e.calculatePriority(mutated)

			e.scheduler.Push(mutated)
			generated++
		}
	}
	return generated
}

// calculatePriority determines the priority of a test case for scheduling
func (e *Engine) calculatePriority(testCase *TestCase) int {
	priority := 100

	if testCase.Generation == 0 {
		priority += 50
	}

	if testCase.Coverage != nil {
		priority += testCase.Coverage.NewPoints * 2
	}

	if testCase.Executions < 10 {
		priority += 20
	}

	if testCase.Metadata != nil {
		if _, hasBug := testCase.Metadata["found_bug"]; hasBug {
			priority += 100
		}
	}

	return priority
}

// processResult updates statistics, corpus and reporters. Returns true on a bug.
func (e *Engine) processResult(testCase *TestCase, result *ExecutionResult) bool {
	testCase.Executions++
	testCase.Coverage = result.Coverage

	if result.Coverage != nil && result.Coverage.NewPoints > 0 {
		e.stats.AddCoverage(result.Coverage.NewPoints)
	}

	switch result.Status {
	case StatusRevert:
		e.stats.IncrementReverts()
	case StatusError:
		e.stats.IncrementErrors()
	}

	foundBug := e.checkOracle(testCase, result)
	interesting := e.feedback.IsInteresting(testCase, result)

	if interesting || foundBug {
		testCase.Priority = e.calculatePriority(testCase) + 100
		if e.corpus.Add(testCase) {
			atomic.StoreInt64(&e.stats.CorpusSize, int64(e.corpus.Size()))
			for _, r := range e.reporters {
				r.OnTestCaseAdded(testCase)
			}
		}
	}

	for _, r := range e.reporters {
		r.OnTestCaseExecuted(testCase, result)
	}

	return foundBug
}

// checkOracle asks the oracle about the result and records unique bugs
func (e *Engine) checkOracle(testCase *TestCase, result *ExecutionResult) bool {
	if e.oracle == nil {
		return false
	}

	description, isBug := e.oracle.Inspect(config.Outcome{
		Contract:   testCase.Target,
		Method:     testCase.Method,
		Input:      testCase.Data,
		ReturnData: result.ReturnData,
		Reverted:   result.Status == StatusRevert,
		Err:        result.Err,
	})
	if !isBug {
		return false
	}

	result.Status = StatusBug
	if testCase.Metadata == nil {
		testCase.Metadata = make(map[string]interface{})
	}
	testCase.Metadata["found_bug"] = true
	e.stats.IncrementBugs()

	hash := bugHash(e.oracle.Name(), testCase, description)
	if e.seenBugs[hash] {
		return true
	}
	e.seenBugs[hash] = true

	bug := &BugInfo{
		Oracle:      e.oracle.Name(),
		Description: description,
		Target:      testCase.Target,
		Method:      testCase.Method,
		Input:       hexutil.Encode(testCase.Data),
		TestCaseID:  testCase.ID,
		Hash:        hash,
		FoundAt:     time.Now(),
	}
	result.Bug = bug
	e.bugs = append(e.bugs, bug)
	atomic.AddInt64(&e.stats.UniqueBugs, 1)
	e.stats.LastBugTime = bug.FoundAt

	for _, r := range e.reporters {
		r.OnBugFound(bug)
	}
	return true
}

// bugHash identifies a bug by oracle, target, selector and description
func bugHash(oracle string, testCase *TestCase, description string) string {
	selector := testCase.Data
	if len(selector) > 4 {
		selector = selector[:4]
	}

	digest := crypto.Keccak256([]byte(oracle), []byte(testCase.Target), selector, []byte(description))
	return fmt.Sprintf("%x", digest[:8])
}

// Stats returns the live statistics of the engine
func (e *Engine) Stats() *FuzzerStats {
	return e.stats
}

// Bugs returns the unique bugs found so far
func (e *Engine) Bugs() []*BugInfo {
	return append([]*BugInfo(nil), e.bugs...)
}
