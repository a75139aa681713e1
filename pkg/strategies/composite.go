/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: composite.go
Description: Composite mutator for the Akaylee EVM fuzzer. Chains several calldata
mutators per mutation, either in declaration order or in a random order.
*/

package strategies

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/kleascm/akaylee-evm/pkg/core"
)

// CompositeMutator composes multiple Mutator instances for chained mutation.
type CompositeMutator struct {
	mutators    []core.Mutator
	chainLength int  // Maximum number of mutators applied per mutation
	randomOrder bool // Shuffle the mutators before each chain
	rng         *rand.Rand
}

// NewCompositeMutator creates a new CompositeMutator.
// A chainLength of 0 or above len(mutators) applies every mutator.
func NewCompositeMutator(mutators []core.Mutator, chainLength int, randomOrder bool, rng *rand.Rand) *CompositeMutator {
	if chainLength <= 0 || chainLength > len(mutators) {
		chainLength = len(mutators)
	}
	return &CompositeMutator{
		mutators:    mutators,
		chainLength: chainLength,
		randomOrder: randomOrder,
		rng:         rng,
	}
}

// Mutate applies between one and chainLength mutators in sequence.
func (c *CompositeMutator) Mutate(testCase *core.TestCase) (*core.TestCase, error) {
	if len(c.mutators) == 0 {
		return nil, fmt.Errorf("composite mutator has no mutators")
	}

	order := make([]int, len(c.mutators))
	for i := range order {
		order[i] = i
	}
	if c.randomOrder {
		c.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	length := 1 + c.rng.Intn(c.chainLength)
	applied := make([]string, 0, length)

	mutated := testCase
	for _, idx := range order[:length] {
		next, err := c.mutators[idx].Mutate(mutated)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", c.mutators[idx].Name(), err)
		}
		mutated = next
		applied = append(applied, c.mutators[idx].Name())
	}

	mutated.ParentID = testCase.ID
	mutated.Generation = testCase.Generation + 1
	if mutated.Metadata == nil {
		mutated.Metadata = make(map[string]interface{})
	}
	mutated.Metadata["mutator"] = c.Name()
	mutated.Metadata["composite_chain"] = strings.Join(applied, ",")

	return mutated, nil
}

// Name returns the name of this mutator.
func (c *CompositeMutator) Name() string {
	return "CompositeMutator"
}

// Description returns a description of this mutator.
func (c *CompositeMutator) Description() string {
	return "Chains multiple calldata mutators per mutation (sequential or random order)"
}

// Mutators returns the chained mutators.
func (c *CompositeMutator) Mutators() []core.Mutator {
	return append([]core.Mutator(nil), c.mutators...)
}
