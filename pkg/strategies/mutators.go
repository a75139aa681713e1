/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutators.go
Description: Calldata mutation strategies for the Akaylee EVM fuzzer. Every mutator
keeps the 4-byte selector intact and works on the ABI-encoded argument area: bit
flips, byte substitution, 256-bit word arithmetic, boundary values and dictionary
splicing.
*/

package strategies

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/core"
)

const (
	selectorSize = 4
	wordSize     = 32
)

// newChild copies a test case with fresh calldata for a mutator to edit
func newChild(testCase *core.TestCase, mutator string) *core.TestCase {
	data := make([]byte, len(testCase.Data))
	copy(data, testCase.Data)

	return &core.TestCase{
		ID:         uuid.New().String(),
		Target:     testCase.Target,
		Method:     testCase.Method,
		Data:       data,
		ParentID:   testCase.ID,
		Generation: testCase.Generation + 1,
		CreatedAt:  time.Now(),
		Priority:   testCase.Priority,
		Metadata:   map[string]interface{}{"mutator": mutator},
	}
}

// arguments returns the argument area of calldata, empty when there is none
func arguments(data []byte) []byte {
	if len(data) <= selectorSize {
		return nil
	}
	return data[selectorSize:]
}

// randomWord returns a random whole word of the argument area
func randomWord(rng *rand.Rand, args []byte) []byte {
	words := len(args) / wordSize
	if words == 0 {
		return nil
	}
	i := rng.Intn(words) * wordSize
	return args[i : i+wordSize]
}

// BitFlipMutator flips individual argument bits
type BitFlipMutator struct {
	mutationRate float64 // Probability of mutation per bit
	rng          *rand.Rand
}

// NewBitFlipMutator creates a new bit flip mutator
func NewBitFlipMutator(mutationRate float64, rng *rand.Rand) *BitFlipMutator {
	return &BitFlipMutator{
		mutationRate: mutationRate,
		rng:          rng,
	}
}

// Mutate flips bits at the mutation rate, and always at least one
func (m *BitFlipMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	mutated := newChild(testCase, m.Name())
	args := arguments(mutated.Data)
	if len(args) == 0 {
		return mutated, nil
	}

	flipped := false
	for i := 0; i < len(args)*8; i++ {
		if m.rng.Float64() < m.mutationRate {
			args[i/8] ^= 1 << (i % 8)
			flipped = true
		}
	}
	if !flipped {
		i := m.rng.Intn(len(args) * 8)
		args[i/8] ^= 1 << (i % 8)
	}

	return mutated, nil
}

// Name returns the name of this mutator
func (m *BitFlipMutator) Name() string {
	return "BitFlipMutator"
}

// Description returns a description of this mutator
func (m *BitFlipMutator) Description() string {
	return "Flips individual bits of the call arguments"
}

// ByteSubstitutionMutator replaces argument bytes with random values
type ByteSubstitutionMutator struct {
	mutationRate float64 // Probability of mutation per byte
	rng          *rand.Rand
}

// NewByteSubstitutionMutator creates a new byte substitution mutator
func NewByteSubstitutionMutator(mutationRate float64, rng *rand.Rand) *ByteSubstitutionMutator {
	return &ByteSubstitutionMutator{
		mutationRate: mutationRate,
		rng:          rng,
	}
}

// Mutate substitutes bytes at the mutation rate, and always at least one
func (m *ByteSubstitutionMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	mutated := newChild(testCase, m.Name())
	args := arguments(mutated.Data)
	if len(args) == 0 {
		return mutated, nil
	}

	substituted := false
	for i := range args {
		if m.rng.Float64() < m.mutationRate {
			args[i] = byte(m.rng.Intn(256))
			substituted = true
		}
	}
	if !substituted {
		args[m.rng.Intn(len(args))] = byte(m.rng.Intn(256))
	}

	return mutated, nil
}

// Name returns the name of this mutator
func (m *ByteSubstitutionMutator) Name() string {
	return "ByteSubstitutionMutator"
}

// Description returns a description of this mutator
func (m *ByteSubstitutionMutator) Description() string {
	return "Substitutes argument bytes with random values"
}

// ArithmeticMutator adds or subtracts small deltas to one argument word
type ArithmeticMutator struct {
	maxDelta uint64
	rng      *rand.Rand
}

// NewArithmeticMutator creates a new arithmetic mutator
func NewArithmeticMutator(maxDelta uint64, rng *rand.Rand) *ArithmeticMutator {
	if maxDelta == 0 {
		maxDelta = 35
	}
	return &ArithmeticMutator{
		maxDelta: maxDelta,
		rng:      rng,
	}
}

// Mutate treats a random word as uint256 and applies wrapping arithmetic
func (m *ArithmeticMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	mutated := newChild(testCase, m.Name())
	word := randomWord(m.rng, arguments(mutated.Data))
	if word == nil {
		return mutated, nil
	}

	value := new(uint256.Int).SetBytes32(word)
	delta := uint256.NewInt(uint64(m.rng.Int63n(int64(m.maxDelta))) + 1)

	switch m.rng.Intn(4) {
	case 0:
		value.Add(value, delta)
	case 1:
		value.Sub(value, delta)
	case 2:
		value.Lsh(value, 1)
	default:
		value.Rsh(value, 1)
	}

	result := value.Bytes32()
	copy(word, result[:])
	return mutated, nil
}

// Name returns the name of this mutator
func (m *ArithmeticMutator) Name() string {
	return "ArithmeticMutator"
}

// Description returns a description of this mutator
func (m *ArithmeticMutator) Description() string {
	return "Adds, subtracts or shifts a 256-bit argument word"
}

// interestingWords are boundary values for uint256, int256 and address arguments
var interestingWords = func() []*uint256.Int {
	maxUint := new(uint256.Int).SetAllOne()
	maxInt := new(uint256.Int).Rsh(maxUint, 1)
	minInt := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	maxAddress := new(uint256.Int).Rsh(maxUint, 96)
	maxUint128 := new(uint256.Int).Rsh(maxUint, 128)
	return []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(2),
		uint256.NewInt(0xff),
		uint256.NewInt(1e18),
		maxUint128,
		maxAddress,
		maxInt,
		minInt,
		maxUint,
	}
}()

// InterestingValueMutator overwrites one argument word with a boundary value
type InterestingValueMutator struct {
	rng *rand.Rand
}

// NewInterestingValueMutator creates a new interesting value mutator
func NewInterestingValueMutator(rng *rand.Rand) *InterestingValueMutator {
	return &InterestingValueMutator{rng: rng}
}

// Mutate replaces a random word with a boundary value
func (m *InterestingValueMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	mutated := newChild(testCase, m.Name())
	word := randomWord(m.rng, arguments(mutated.Data))
	if word == nil {
		return mutated, nil
	}

	value := interestingWords[m.rng.Intn(len(interestingWords))].Bytes32()
	copy(word, value[:])
	return mutated, nil
}

// Name returns the name of this mutator
func (m *InterestingValueMutator) Name() string {
	return "InterestingValueMutator"
}

// Description returns a description of this mutator
func (m *InterestingValueMutator) Description() string {
	return "Replaces an argument word with a uint256, int256 or address boundary value"
}

// DictionaryMutator splices words observed during execution into the arguments
type DictionaryMutator struct {
	dictionary *Dictionary
	rng        *rand.Rand
}

// NewDictionaryMutator creates a mutator reading from dictionary
func NewDictionaryMutator(dictionary *Dictionary, rng *rand.Rand) *DictionaryMutator {
	return &DictionaryMutator{
		dictionary: dictionary,
		rng:        rng,
	}
}

// Mutate replaces a random word with a dictionary entry, if any
func (m *DictionaryMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	mutated := newChild(testCase, m.Name())
	word := randomWord(m.rng, arguments(mutated.Data))
	if word == nil {
		return mutated, nil
	}

	entry, ok := m.dictionary.Random(m.rng)
	if !ok {
		return mutated, nil
	}
	copy(word, entry[:])
	return mutated, nil
}

// Name returns the name of this mutator
func (m *DictionaryMutator) Name() string {
	return "DictionaryMutator"
}

// Description returns a description of this mutator
func (m *DictionaryMutator) Description() string {
	return "Splices comparison operands and stored values seen during execution into the arguments"
}

// DefaultMutators returns the standard calldata mutators sharing rng
func DefaultMutators(dictionary *Dictionary, rng *rand.Rand) []core.Mutator {
	return []core.Mutator{
		NewBitFlipMutator(0.01, rng),
		NewByteSubstitutionMutator(0.01, rng),
		NewArithmeticMutator(0, rng),
		NewInterestingValueMutator(rng),
		NewDictionaryMutator(dictionary, rng),
	}
}
