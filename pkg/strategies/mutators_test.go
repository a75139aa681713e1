/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutators_test.go
Description: Tests for calldata mutators, the shared dictionary and the composite
mutator.
*/

package strategies_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/kleascm/akaylee-evm/pkg/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var selector = []byte{0xa9, 0x05, 0x9c, 0xbb}

func twoWordCall() *core.TestCase {
	data := append([]byte(nil), selector...)
	data = append(data, make([]byte, 64)...)
	data[len(data)-1] = 0x10
	return &core.TestCase{
		ID:         "parent",
		Target:     "Token",
		Method:     "transfer",
		Data:       data,
		Generation: 2,
		Priority:   120,
	}
}

func allMutators(rng *rand.Rand) []core.Mutator {
	dictionary := strategies.NewDictionary(0)
	dictionary.AddUint256(uint256.NewInt(0xdead))
	return strategies.DefaultMutators(dictionary, rng)
}

// TestMutatorsPreserveSelector tests that no mutator touches the selector or the length
func TestMutatorsPreserveSelector(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	parent := twoWordCall()
	original := append([]byte(nil), parent.Data...)

	for _, mutator := range allMutators(rng) {
		for i := 0; i < 200; i++ {
			child, err := mutator.Mutate(parent)
			require.NoError(t, err, mutator.Name())
			assert.Equal(t, selector, child.Data[:4], mutator.Name())
			assert.Len(t, child.Data, len(original), mutator.Name())
		}
	}
	assert.Equal(t, original, parent.Data)
}

// TestMutatorChildFields tests lineage and identity of mutated test cases
func TestMutatorChildFields(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	parent := twoWordCall()

	for _, mutator := range allMutators(rng) {
		child, err := mutator.Mutate(parent)
		require.NoError(t, err)

		assert.NotEmpty(t, child.ID)
		assert.NotEqual(t, parent.ID, child.ID)
		assert.Equal(t, "parent", child.ParentID)
		assert.Equal(t, "Token", child.Target)
		assert.Equal(t, "transfer", child.Method)
		assert.Equal(t, 3, child.Generation)
		assert.Equal(t, mutator.Name(), child.Metadata["mutator"])
		assert.NotEmpty(t, mutator.Description())
	}
}

// TestByteMutatorsAlwaysChangeArguments tests that bit and byte mutators never return a copy
func TestByteMutatorsAlwaysChangeArguments(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	parent := twoWordCall()

	bitFlip := strategies.NewBitFlipMutator(0, rng)
	for i := 0; i < 50; i++ {
		child, err := bitFlip.Mutate(parent)
		require.NoError(t, err)
		assert.False(t, bytes.Equal(parent.Data, child.Data))
	}

	substitution := strategies.NewByteSubstitutionMutator(0, rng)
	changed := 0
	for i := 0; i < 50; i++ {
		child, err := substitution.Mutate(parent)
		require.NoError(t, err)
		if !bytes.Equal(parent.Data, child.Data) {
			changed++
		}
	}
	// a substituted byte can equal the original with probability 1/256
	assert.Greater(t, changed, 40)
}

// TestMutatorsWithoutArguments tests that argument-less calls are replayed unchanged
func TestMutatorsWithoutArguments(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	parent := &core.TestCase{ID: "p", Target: "Vault", Data: append([]byte(nil), selector...)}

	for _, mutator := range allMutators(rng) {
		child, err := mutator.Mutate(parent)
		require.NoError(t, err)
		assert.Equal(t, parent.Data, child.Data)
	}
}

// TestInterestingValueMutator tests that a whole word becomes a boundary value
func TestInterestingValueMutator(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	mutator := strategies.NewInterestingValueMutator(rng)

	maxUint := new(uint256.Int).SetAllOne().Bytes32()
	seenMax := false
	for i := 0; i < 300; i++ {
		child, err := mutator.Mutate(twoWordCall())
		require.NoError(t, err)
		if bytes.Equal(child.Data[4:36], maxUint[:]) || bytes.Equal(child.Data[36:68], maxUint[:]) {
			seenMax = true
		}
	}
	assert.True(t, seenMax)
}

// TestArithmeticMutatorWraps tests wrapping arithmetic on a zero word
func TestArithmeticMutatorWraps(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	mutator := strategies.NewArithmeticMutator(1, rng)

	parent := &core.TestCase{ID: "p", Data: append(append([]byte(nil), selector...), make([]byte, 32)...)}
	results := make(map[string]bool)
	for i := 0; i < 100; i++ {
		child, err := mutator.Mutate(parent)
		require.NoError(t, err)
		results[string(child.Data[4:])] = true
	}

	one := uint256.NewInt(1).Bytes32()
	maxUint := new(uint256.Int).SetAllOne().Bytes32()
	assert.True(t, results[string(one[:])])
	assert.True(t, results[string(maxUint[:])])
}

// TestDictionaryMutator tests that dictionary words are spliced into the arguments
func TestDictionaryMutator(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	dictionary := strategies.NewDictionary(8)
	mutator := strategies.NewDictionaryMutator(dictionary, rng)

	child, err := mutator.Mutate(twoWordCall())
	require.NoError(t, err)
	assert.Equal(t, twoWordCall().Data, child.Data)

	dictionary.AddUint256(uint256.NewInt(0x2a))
	child, err = mutator.Mutate(twoWordCall())
	require.NoError(t, err)

	word := uint256.NewInt(0x2a).Bytes32()
	assert.True(t, bytes.Equal(child.Data[4:36], word[:]) || bytes.Equal(child.Data[36:68], word[:]))
}

// TestDictionaryBounds tests deduplication and oldest-first replacement
func TestDictionaryBounds(t *testing.T) {
	dictionary := strategies.NewDictionary(2)

	assert.True(t, dictionary.AddUint256(uint256.NewInt(1)))
	assert.False(t, dictionary.AddUint256(uint256.NewInt(1)))
	assert.True(t, dictionary.AddUint256(uint256.NewInt(2)))
	assert.True(t, dictionary.AddUint256(uint256.NewInt(3)))

	assert.Equal(t, 2, dictionary.Len())
	assert.False(t, dictionary.Contains(strategies.Word(uint256.NewInt(1).Bytes32())))
	assert.True(t, dictionary.Contains(strategies.Word(uint256.NewInt(2).Bytes32())))
	assert.True(t, dictionary.Contains(strategies.Word(uint256.NewInt(3).Bytes32())))

	_, ok := strategies.NewDictionary(1).Random(rand.New(rand.NewSource(1)))
	assert.False(t, ok)
}

// TestCompositeMutator tests chaining, lineage and metadata
func TestCompositeMutator(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	composite := strategies.NewCompositeMutator(allMutators(rng), 3, true, rng)
	assert.Len(t, composite.Mutators(), 5)

	parent := twoWordCall()
	for i := 0; i < 50; i++ {
		child, err := composite.Mutate(parent)
		require.NoError(t, err)
		assert.Equal(t, "parent", child.ParentID)
		assert.Equal(t, 3, child.Generation)
		assert.Equal(t, selector, child.Data[:4])
		assert.Equal(t, "CompositeMutator", child.Metadata["mutator"])
		assert.NotEmpty(t, child.Metadata["composite_chain"])
	}

	_, err := strategies.NewCompositeMutator(nil, 0, false, rng).Mutate(parent)
	assert.Error(t, err)
}
