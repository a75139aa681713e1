/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: triage_test.go
Description: Tests for bug classification and ordering.
*/

package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTriageClassifiesReports tests classification of oracle descriptions
func TestTriageClassifiesReports(t *testing.T) {
	tests := []struct {
		description string
		class       BugClass
		severity    BugSeverity
	}{
		{"panic 0x01: assertion failed", ClassAssertion, SeverityHigh},
		{"panic 0x11: arithmetic overflow or underflow", ClassArithmetic, SeverityHigh},
		{"panic 0x12: division or modulo by zero", ClassDivisionByZero, SeverityMedium},
		{"panic 0x22: corrupted storage byte array", ClassStorageCorrupted, SeverityCritical},
		{"panic 0x32: array index out of bounds", ClassOutOfBounds, SeverityMedium},
		{"invalid opcode: INVALID", ClassInvalidOpcode, SeverityHigh},
		{"panic 0x99: unknown panic code", ClassUnknown, SeverityMedium},
		{"call succeeded on Counter", ClassUnknown, SeverityMedium},
	}

	triage := NewBugTriage()
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			result := triage.Triage(&core.BugInfo{Description: tt.description})
			assert.Equal(t, tt.class, result.Class)
			assert.Equal(t, tt.severity, result.Severity)
		})
	}
}

// TestTriageAllOrdersBySeverity tests that critical bugs come first and ties keep discovery order
func TestTriageAllOrdersBySeverity(t *testing.T) {
	start := time.Now()
	bugs := []*core.BugInfo{
		{Description: "panic 0x12: division or modulo by zero", FoundAt: start},
		{Description: "panic 0x01: assertion failed", FoundAt: start.Add(2 * time.Second)},
		{Description: "invalid opcode: INVALID", FoundAt: start.Add(time.Second)},
		{Description: "panic 0x22: corrupted storage byte array", FoundAt: start.Add(3 * time.Second)},
	}

	results := NewBugTriage().TriageAll(bugs)
	require.Len(t, results, 4)
	assert.Equal(t, ClassStorageCorrupted, results[0].Class)
	assert.Equal(t, ClassInvalidOpcode, results[1].Class)
	assert.Equal(t, ClassAssertion, results[2].Class)
	assert.Equal(t, ClassDivisionByZero, results[3].Class)

	counts := CountBySeverity(results)
	assert.Equal(t, 1, counts[SeverityCritical])
	assert.Equal(t, 2, counts[SeverityHigh])
	assert.Equal(t, 1, counts[SeverityMedium])
	assert.Zero(t, counts[SeverityLow])

	assert.Empty(t, NewBugTriage().TriageAll(nil))
}

// TestSeverityMarshalsByName tests the JSON form used in result files
func TestSeverityMarshalsByName(t *testing.T) {
	data, err := json.Marshal(TriageResult{Bug: &core.BugInfo{}, Class: ClassAssertion, Severity: SeverityHigh})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"HIGH"`)
	assert.Contains(t, string(data), `"class":"ASSERTION"`)
}
