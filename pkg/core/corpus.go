/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: corpus.go
Description: Corpus management for the Akaylee EVM fuzzer. Stores the calls that earned
their place through feedback, evicts the least useful ones when full, and hands out
random or priority-ordered samples for mutation.
*/

package core

import (
	"math/rand"
	"sort"
	"sync"
)

// DefaultMaxCorpusSize bounds the corpus when no size is configured
const DefaultMaxCorpusSize = 10000

// Corpus manages the collection of test cases
type Corpus struct {
	testCases map[string]*TestCase
	order     []string // Insertion order, keeps sampling deterministic for a given seed
	mu        sync.RWMutex

	maxSize int
}

// NewCorpus creates a new corpus instance
func NewCorpus() *Corpus {
	return &Corpus{
		testCases: make(map[string]*TestCase),
		maxSize:   DefaultMaxCorpusSize,
	}
}

// Add adds a test case to the corpus
// Returns true if the test case was not already present
func (c *Corpus) Add(testCase *TestCase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.testCases[testCase.ID]; exists {
		return false
	}

	c.testCases[testCase.ID] = testCase
	c.order = append(c.order, testCase.ID)

	if len(c.order) > c.maxSize {
		c.cleanupInternal(c.maxSize)
	}
	return true
}

// GetRandom returns up to count distinct test cases chosen with rng
func (c *Corpus) GetRandom(rng *rand.Rand, count int) []*TestCase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if count <= 0 || len(c.order) == 0 {
		return nil
	}

	indices := rng.Perm(len(c.order))
	if count > len(indices) {
		count = len(indices)
	}

	testCases := make([]*TestCase, count)
	for i := 0; i < count; i++ {
		testCases[i] = c.testCases[c.order[indices[i]]]
	}
	return testCases
}

// GetByPriority returns up to count test cases, highest priority first
func (c *Corpus) GetByPriority(count int) []*TestCase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if count <= 0 || len(c.order) == 0 {
		return nil
	}

	testCases := c.allInternal()
	sort.SliceStable(testCases, func(i, j int) bool {
		return testCases[i].Priority > testCases[j].Priority
	})

	if count > len(testCases) {
		count = len(testCases)
	}
	return testCases[:count]
}

// Size returns the current number of test cases in the corpus
func (c *Corpus) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// SetMaxSize sets the maximum size of the corpus
// Triggers cleanup if current size exceeds new maximum
func (c *Corpus) SetMaxSize(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxSize <= 0 {
		maxSize = DefaultMaxCorpusSize
	}
	c.maxSize = maxSize
	if len(c.order) > maxSize {
		c.cleanupInternal(maxSize)
	}
}

// cleanupInternal drops the lowest scoring entries until targetSize remain
func (c *Corpus) cleanupInternal(targetSize int) {
	if len(c.order) <= targetSize {
		return
	}

	testCases := c.allInternal()
	sort.SliceStable(testCases, func(i, j int) bool {
		return removalScore(testCases[i]) > removalScore(testCases[j])
	})

	for _, tc := range testCases[targetSize:] {
		delete(c.testCases, tc.ID)
	}
	c.compactOrder()
}

// removalScore rates how much a test case is worth keeping
func removalScore(testCase *TestCase) int {
	score := testCase.Priority

	// Heavily mutated entries have given what they can
	score -= int(testCase.Executions) * 5

	if testCase.Coverage != nil {
		score += testCase.Coverage.Points * 10
	}

	if testCase.Metadata != nil {
		if _, hasBug := testCase.Metadata["found_bug"]; hasBug {
			score += 1000
		}
	}

	// Seeds carry the only well-formed encoding of each method
	if testCase.Generation == 0 {
		score += 500
	}

	return score
}

func (c *Corpus) compactOrder() {
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := c.testCases[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
}

func (c *Corpus) allInternal() []*TestCase {
	testCases := make([]*TestCase, 0, len(c.order))
	for _, id := range c.order {
		testCases = append(testCases, c.testCases[id])
	}
	return testCases
}
