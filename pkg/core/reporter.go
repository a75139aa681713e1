/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for Akaylee live reporting.
Reporters are notified of executions, corpus additions and bugs as they happen.
*/

package core

import (
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"
)

// Reporter defines the interface for telemetry and reporting hooks.
type Reporter interface {
	// OnTestCaseExecuted is called after a test case is executed.
	OnTestCaseExecuted(tc *TestCase, result *ExecutionResult)
	// OnTestCaseAdded is called when a new test case is added to the corpus.
	OnTestCaseAdded(tc *TestCase)
	// OnBugFound is called once per unique bug.
	OnBugFound(bug *BugInfo)
}

// LoggerReporter logs execution and corpus events through logrus.
type LoggerReporter struct {
	logger *logrus.Logger
}

// NewLoggerReporter creates a new LoggerReporter.
func NewLoggerReporter(logger *logrus.Logger) *LoggerReporter {
	return &LoggerReporter{logger: logger}
}

// OnTestCaseExecuted logs execution results at debug level.
func (r *LoggerReporter) OnTestCaseExecuted(tc *TestCase, result *ExecutionResult) {
	entry := r.logger.WithFields(logrus.Fields{
		"testcase": tc.ID,
		"target":   tc.Target,
		"method":   tc.Method,
		"status":   result.Status.String(),
		"gas_used": result.GasUsed,
	})

	if result.Status == StatusRevert {
		if reason, err := abi.UnpackRevert(result.ReturnData); err == nil {
			entry = entry.WithField("reason", reason)
		}
	}
	entry.Debug("Test case executed")
}

// OnTestCaseAdded logs new corpus entries.
func (r *LoggerReporter) OnTestCaseAdded(tc *TestCase) {
	r.logger.WithFields(logrus.Fields{
		"id":         tc.ID,
		"target":     tc.Target,
		"method":     tc.Method,
		"generation": tc.Generation,
		"priority":   tc.Priority,
	}).Info("Test case added to corpus")
}

// OnBugFound logs a bug at warning level.
func (r *LoggerReporter) OnBugFound(bug *BugInfo) {
	r.logger.WithFields(logrus.Fields{
		"oracle": bug.Oracle,
		"target": bug.Target,
		"method": bug.Method,
		"input":  bug.Input,
	}).Warnf("Bug found: %s", bug.Description)
}

// ProgressReporter logs a statistics line at most once per interval.
type ProgressReporter struct {
	logger   *logrus.Logger
	stats    *FuzzerStats
	interval time.Duration
	last     time.Time
}

// NewProgressReporter creates a ProgressReporter reading from stats.
func NewProgressReporter(logger *logrus.Logger, stats *FuzzerStats, interval time.Duration) *ProgressReporter {
	return &ProgressReporter{
		logger:   logger,
		stats:    stats,
		interval: interval,
		last:     time.Now(),
	}
}

// OnTestCaseExecuted emits progress when the interval has elapsed.
func (r *ProgressReporter) OnTestCaseExecuted(tc *TestCase, result *ExecutionResult) {
	if time.Since(r.last) < r.interval {
		return
	}
	r.last = time.Now()

	snapshot := r.stats.Snapshot()
	r.logger.WithFields(logrus.Fields{
		"executions": snapshot.Executions,
		"exec_per_s": int64(snapshot.ExecutionsPerSecond),
		"coverage":   snapshot.CoveragePoints,
		"corpus":     snapshot.CorpusSize,
		"bugs":       snapshot.UniqueBugs,
	}).Info("Fuzzing progress")
}

// OnTestCaseAdded is a no-op.
func (r *ProgressReporter) OnTestCaseAdded(tc *TestCase) {}

// OnBugFound is a no-op.
func (r *ProgressReporter) OnBugFound(bug *BugInfo) {}
