/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: triage.go
Description: Bug triage for the Akaylee EVM fuzzer. Classifies oracle reports by the
failure they describe, assigns a severity and orders a campaign's bugs so the most
severe findings are reviewed first.
*/

package analysis

import (
	"regexp"
	"sort"

	"github.com/kleascm/akaylee-evm/pkg/core"
)

// BugSeverity represents the severity level of a bug
type BugSeverity int

const (
	SeverityLow BugSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of bug severity
func (s BugSeverity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets severities appear by name in result files
func (s BugSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BugClass represents the kind of failure an oracle reported
type BugClass string

const (
	ClassAssertion        BugClass = "ASSERTION"
	ClassArithmetic       BugClass = "ARITHMETIC"
	ClassDivisionByZero   BugClass = "DIVISION_BY_ZERO"
	ClassOutOfBounds      BugClass = "OUT_OF_BOUNDS"
	ClassEnumConversion   BugClass = "ENUM_CONVERSION"
	ClassStorageCorrupted BugClass = "STORAGE_CORRUPTED"
	ClassEmptyPop         BugClass = "EMPTY_POP"
	ClassMemoryOverflow   BugClass = "MEMORY_OVERFLOW"
	ClassZeroFunction     BugClass = "ZERO_FUNCTION"
	ClassInvalidOpcode    BugClass = "INVALID_OPCODE"
	ClassUnknown          BugClass = "UNKNOWN"
)

// classRule pairs a description pattern with its class and severity
type classRule struct {
	class    BugClass
	severity BugSeverity
	pattern  *regexp.Regexp
}

// TriageResult contains the triage of one bug
type TriageResult struct {
	Bug      *core.BugInfo `json:"bug"`
	Class    BugClass      `json:"class"`
	Severity BugSeverity   `json:"severity"`
}

// BugTriage classifies oracle reports
type BugTriage struct {
	rules []classRule
}

// NewBugTriage creates a triage with the rules for compiler panics and invalid opcodes
func NewBugTriage() *BugTriage {
	return &BugTriage{
		rules: []classRule{
			{ClassAssertion, SeverityHigh, regexp.MustCompile(`(?i)(assertion failed|panic 0x01\b)`)},
			{ClassArithmetic, SeverityHigh, regexp.MustCompile(`(?i)(overflow or underflow|panic 0x11\b)`)},
			{ClassDivisionByZero, SeverityMedium, regexp.MustCompile(`(?i)(division or modulo by zero|panic 0x12\b)`)},
			{ClassEnumConversion, SeverityLow, regexp.MustCompile(`(?i)(invalid enum conversion|panic 0x21\b)`)},
			{ClassStorageCorrupted, SeverityCritical, regexp.MustCompile(`(?i)(corrupted storage|panic 0x22\b)`)},
			{ClassEmptyPop, SeverityLow, regexp.MustCompile(`(?i)(pop on empty array|panic 0x31\b)`)},
			{ClassOutOfBounds, SeverityMedium, regexp.MustCompile(`(?i)(index out of bounds|panic 0x32\b)`)},
			{ClassMemoryOverflow, SeverityMedium, regexp.MustCompile(`(?i)(memory allocation overflow|panic 0x41\b)`)},
			{ClassZeroFunction, SeverityCritical, regexp.MustCompile(`(?i)(zero-initialized function|panic 0x51\b)`)},
			{ClassInvalidOpcode, SeverityHigh, regexp.MustCompile(`(?i)invalid opcode`)},
		},
	}
}

// Triage classifies a single bug. Reports no rule matches are UNKNOWN with medium severity.
func (t *BugTriage) Triage(bug *core.BugInfo) TriageResult {
	for _, rule := range t.rules {
		if rule.pattern.MatchString(bug.Description) {
			return TriageResult{Bug: bug, Class: rule.class, Severity: rule.severity}
		}
	}
	return TriageResult{Bug: bug, Class: ClassUnknown, Severity: SeverityMedium}
}

// TriageAll classifies bugs and orders them most severe first, then by discovery time
func (t *BugTriage) TriageAll(bugs []*core.BugInfo) []TriageResult {
	results := make([]TriageResult, 0, len(bugs))
	for _, bug := range bugs {
		results = append(results, t.Triage(bug))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Severity != results[j].Severity {
			return results[i].Severity > results[j].Severity
		}
		return results[i].Bug.FoundAt.Before(results[j].Bug.FoundAt)
	})
	return results
}

// CountBySeverity returns how many bugs fall in each severity
func CountBySeverity(results []TriageResult) map[BugSeverity]int {
	counts := make(map[BugSeverity]int)
	for _, result := range results {
		counts[result.Severity]++
	}
	return counts
}
