/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dictionary.go
Description: Shared dictionary of 32-byte words harvested during execution. Feedbacks
add comparison operands and stored values; the dictionary mutator splices them back
into calldata.
*/

package strategies

import (
	"math/rand"
	"sync"

	"github.com/holiman/uint256"
)

// DefaultDictionarySize bounds the dictionary when no size is given
const DefaultDictionarySize = 4096

// Word is one ABI word
type Word [32]byte

// Dictionary is a bounded set of words. Once full, the oldest words are replaced.
type Dictionary struct {
	mu      sync.RWMutex
	words   []Word
	index   map[Word]int
	next    int
	maxSize int
}

// NewDictionary creates an empty dictionary holding at most maxSize words
func NewDictionary(maxSize int) *Dictionary {
	if maxSize <= 0 {
		maxSize = DefaultDictionarySize
	}
	return &Dictionary{
		words:   make([]Word, 0, 64),
		index:   make(map[Word]int),
		maxSize: maxSize,
	}
}

// Add inserts a word, returning false if it was already known
func (d *Dictionary) Add(word Word) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[word]; exists {
		return false
	}

	if len(d.words) < d.maxSize {
		d.index[word] = len(d.words)
		d.words = append(d.words, word)
		return true
	}

	delete(d.index, d.words[d.next])
	d.words[d.next] = word
	d.index[word] = d.next
	d.next = (d.next + 1) % d.maxSize
	return true
}

// AddUint256 inserts a stack value as a big-endian word
func (d *Dictionary) AddUint256(value *uint256.Int) bool {
	return d.Add(Word(value.Bytes32()))
}

// Contains reports whether the word is present
func (d *Dictionary) Contains(word Word) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.index[word]
	return exists
}

// Len returns the number of words held
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.words)
}

// Random returns a word chosen with rng, false when empty
func (d *Dictionary) Random(rng *rand.Rand) (Word, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.words) == 0 {
		return Word{}, false
	}
	return d.words[rng.Intn(len(d.words))], true
}
