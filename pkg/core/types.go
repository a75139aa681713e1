/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core types and interfaces for the Akaylee EVM fuzzing engine. Defines the
transaction test case, execution results, bug records, campaign statistics and the
pluggable executor, feedback and mutator contracts.
*/

package core

import (
	"context"
	"sync/atomic"
	"time"
)

// TestCase is a single contract call to be executed by the fuzzer
type TestCase struct {
	ID         string                 `json:"id"`         // Unique identifier for the test case
	Target     string                 `json:"target"`     // Name of the contract receiving the call
	Method     string                 `json:"method"`     // ABI method name, informational
	Data       []byte                 `json:"data"`       // Calldata: 4-byte selector followed by encoded arguments
	ParentID   string                 `json:"parent_id"`  // ID of the test case this one was mutated from
	Generation int                    `json:"generation"` // Generation number (0 = seed, 1+ = mutated)
	CreatedAt  time.Time              `json:"created_at"` // When this test case was created
	Executions int64                  `json:"executions"` // Number of times this test case has been executed
	Coverage   *Coverage              `json:"coverage"`   // Coverage information from last execution
	Priority   int                    `json:"priority"`   // Priority for scheduling (higher = more important)
	Metadata   map[string]interface{} `json:"metadata"`   // Additional metadata
}

// Coverage summarises the code locations one execution reached
type Coverage struct {
	Points    int    `json:"points"`     // Distinct (contract, pc) pairs hit
	NewPoints int    `json:"new_points"` // Pairs never hit by an earlier execution
	Hash      uint64 `json:"hash"`       // Hash of the hit set for quick comparison
}

// ExecutionStatus represents the outcome class of a call
type ExecutionStatus int

const (
	StatusSuccess ExecutionStatus = iota
	StatusRevert
	StatusBug
	StatusError
)

// String returns a lowercase label for logs and reports
func (s ExecutionStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRevert:
		return "revert"
	case StatusBug:
		return "bug"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ExecutionResult represents the result of executing a test case
type ExecutionResult struct {
	TestCaseID string          `json:"test_case_id"`
	Status     ExecutionStatus `json:"status"`
	ReturnData []byte          `json:"return_data"` // Return or revert data
	GasUsed    uint64          `json:"gas_used"`
	Duration   time.Duration   `json:"duration"`
	Coverage   *Coverage       `json:"coverage"`
	Err        error           `json:"-"` // EVM error, nil on success
	Bug        *BugInfo        `json:"bug,omitempty"`
}

// BugInfo is a vulnerability reported by an oracle
type BugInfo struct {
	Oracle      string    `json:"oracle"`
	Description string    `json:"description"`
	Target      string    `json:"target"`
	Method      string    `json:"method"`
	Input       string    `json:"input"` // Hex calldata that reproduces the bug
	TestCaseID  string    `json:"test_case_id"`
	Hash        string    `json:"hash"` // Deduplication key
	FoundAt     time.Time `json:"found_at"`
}

// FuzzerStats tracks campaign statistics
// Uses atomic operations so reporters may read while the engine runs
type FuzzerStats struct {
	Executions          int64     `json:"executions"`
	Reverts             int64     `json:"reverts"`
	Errors              int64     `json:"errors"`
	Bugs                int64     `json:"bugs"`
	UniqueBugs          int64     `json:"unique_bugs"`
	CoveragePoints      int64     `json:"coverage_points"`
	CorpusSize          int64     `json:"corpus_size"`
	StartTime           time.Time `json:"start_time"`
	LastBugTime         time.Time `json:"last_bug_time"`
	ExecutionsPerSecond float64   `json:"executions_per_second"`
}

// IncrementExecutions atomically increments the execution counter
func (s *FuzzerStats) IncrementExecutions() {
	atomic.AddInt64(&s.Executions, 1)
}

// IncrementReverts atomically increments the revert counter
func (s *FuzzerStats) IncrementReverts() {
	atomic.AddInt64(&s.Reverts, 1)
}

// IncrementErrors atomically increments the error counter
func (s *FuzzerStats) IncrementErrors() {
	atomic.AddInt64(&s.Errors, 1)
}

// IncrementBugs atomically increments the bug counter
func (s *FuzzerStats) IncrementBugs() {
	atomic.AddInt64(&s.Bugs, 1)
}

// AddCoverage atomically adds newly covered points
func (s *FuzzerStats) AddCoverage(points int) {
	atomic.AddInt64(&s.CoveragePoints, int64(points))
}

// Snapshot returns a consistent copy of the counters
func (s *FuzzerStats) Snapshot() FuzzerStats {
	snapshot := FuzzerStats{
		Executions:     atomic.LoadInt64(&s.Executions),
		Reverts:        atomic.LoadInt64(&s.Reverts),
		Errors:         atomic.LoadInt64(&s.Errors),
		Bugs:           atomic.LoadInt64(&s.Bugs),
		UniqueBugs:     atomic.LoadInt64(&s.UniqueBugs),
		CoveragePoints: atomic.LoadInt64(&s.CoveragePoints),
		CorpusSize:     atomic.LoadInt64(&s.CorpusSize),
		StartTime:      s.StartTime,
		LastBugTime:    s.LastBugTime,
	}
	if elapsed := time.Since(s.StartTime).Seconds(); elapsed > 0 {
		snapshot.ExecutionsPerSecond = float64(snapshot.Executions) / elapsed
	}
	return snapshot
}

// Executor runs test cases against deployed contracts
type Executor interface {
	// Execute runs a test case and returns the execution result
	Execute(ctx context.Context, testCase *TestCase) (*ExecutionResult, error)
}

// Feedback decides whether an executed test case earns a place in the corpus
type Feedback interface {
	// Name returns the name of this feedback
	Name() string
	// IsInteresting is called once after every execution
	IsInteresting(testCase *TestCase, result *ExecutionResult) bool
}

// Mutator defines the interface for test case mutation strategies
type Mutator interface {
	// Mutate creates a new test case by mutating the given test case
	Mutate(testCase *TestCase) (*TestCase, error)

	// Name returns the name of this mutator
	Name() string

	// Description returns a description of this mutator
	Description() string
}
