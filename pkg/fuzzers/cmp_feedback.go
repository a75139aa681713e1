/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cmp_feedback.go
Description: Comparison-guided feedback. Watches the operands of every comparison
opcode, feeds them to the shared dictionary and keeps the smallest operand distance
seen per comparison site, so inputs that get closer to flipping a branch are kept
even before they reach new code.
*/

package fuzzers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/kleascm/akaylee-evm/pkg/strategies"
)

// site is one opcode position in one contract
type site struct {
	contract common.Address
	pc       uint64
}

// CmpFeedback implements core.Feedback and execution.Tracer
type CmpFeedback struct {
	dictionary *strategies.Dictionary
	distances  map[site]uint256.Int
	improved   bool
}

// NewCmpFeedback creates a comparison feedback feeding dictionary
func NewCmpFeedback(dictionary *strategies.Dictionary) *CmpFeedback {
	return &CmpFeedback{
		dictionary: dictionary,
		distances:  make(map[site]uint256.Int),
	}
}

// Name implements core.Feedback
func (f *CmpFeedback) Name() string {
	return "cmp"
}

// Reset implements execution.Tracer
func (f *CmpFeedback) Reset() {
	f.improved = false
}

// OnOpcode implements execution.Tracer
func (f *CmpFeedback) OnOpcode(contract common.Address, pc uint64, op vm.OpCode, stack []uint256.Int) {
	switch op {
	case vm.LT, vm.GT, vm.SLT, vm.SGT, vm.EQ:
	default:
		return
	}
	if len(stack) < 2 {
		return
	}

	a := stack[len(stack)-1]
	b := stack[len(stack)-2]
	f.dictionary.AddUint256(&a)
	f.dictionary.AddUint256(&b)

	var distance uint256.Int
	if a.Gt(&b) {
		distance.Sub(&a, &b)
	} else {
		distance.Sub(&b, &a)
	}

	key := site{contract: contract, pc: pc}
	if best, seen := f.distances[key]; !seen || distance.Lt(&best) {
		f.distances[key] = distance
		f.improved = true
	}
}

// IsInteresting implements core.Feedback: new coverage or a closer comparison
func (f *CmpFeedback) IsInteresting(testCase *core.TestCase, result *core.ExecutionResult) bool {
	if result.Coverage != nil && result.Coverage.NewPoints > 0 {
		return true
	}
	return f.improved
}

// Sites returns the number of comparison sites observed
func (f *CmpFeedback) Sites() int {
	return len(f.distances)
}
