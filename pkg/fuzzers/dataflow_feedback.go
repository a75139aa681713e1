/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dataflow_feedback.go
Description: Dataflow-guided feedback. Tracks which storage slots contracts read and
which value magnitudes calls write to them. A call that lands a new magnitude in a
slot some call reads is kept, since it changes state later calls depend on.
*/

package fuzzers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/kleascm/akaylee-evm/pkg/strategies"
)

type slot struct {
	contract common.Address
	key      common.Hash
}

type write struct {
	slot   slot
	bucket int
}

// DataflowFeedback implements core.Feedback and execution.Tracer
type DataflowFeedback struct {
	dictionary *strategies.Dictionary
	reads      map[slot]struct{}
	written    map[write]struct{}
	pending    []write
}

// NewDataflowFeedback creates a dataflow feedback feeding dictionary
func NewDataflowFeedback(dictionary *strategies.Dictionary) *DataflowFeedback {
	return &DataflowFeedback{
		dictionary: dictionary,
		reads:      make(map[slot]struct{}),
		written:    make(map[write]struct{}),
	}
}

// Name implements core.Feedback
func (f *DataflowFeedback) Name() string {
	return "dataflow"
}

// Reset implements execution.Tracer
func (f *DataflowFeedback) Reset() {
	f.pending = f.pending[:0]
}

// OnOpcode implements execution.Tracer
func (f *DataflowFeedback) OnOpcode(contract common.Address, pc uint64, op vm.OpCode, stack []uint256.Int) {
	switch op {
	case vm.SLOAD:
		if len(stack) < 1 {
			return
		}
		f.reads[slot{contract: contract, key: stack[len(stack)-1].Bytes32()}] = struct{}{}
	case vm.SSTORE:
		if len(stack) < 2 {
			return
		}
		value := stack[len(stack)-2]
		f.dictionary.AddUint256(&value)
		f.pending = append(f.pending, write{
			slot:   slot{contract: contract, key: stack[len(stack)-1].Bytes32()},
			bucket: Bucket(&value),
		})
	}
}

// IsInteresting implements core.Feedback: new coverage, or a committed write of a new
// magnitude to a slot that is read
func (f *DataflowFeedback) IsInteresting(testCase *core.TestCase, result *core.ExecutionResult) bool {
	interesting := result.Coverage != nil && result.Coverage.NewPoints > 0

	// reverted writes never reach state
	if result.Err != nil {
		return interesting
	}

	for _, w := range f.pending {
		if _, read := f.reads[w.slot]; !read {
			continue
		}
		if _, seen := f.written[w]; seen {
			continue
		}
		f.written[w] = struct{}{}
		interesting = true
	}
	return interesting
}

// Bucket groups a stored value by magnitude
func Bucket(value *uint256.Int) int {
	return value.BitLen()
}

// ReadSlots returns the number of distinct slots read so far
func (f *DataflowFeedback) ReadSlots() int {
	return len(f.reads)
}
