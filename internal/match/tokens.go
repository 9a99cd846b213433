package match

import (
	"fmt"
	"math"
)

// NoToken marks a string that is not part of the dictionary. It never
// collides with a real token id.
const NoToken uint32 = math.MaxUint32

// maxTokens caps the id space so that ids fit a non-negative int32, which
// the trie dictionary stores them as.
const maxTokens = 1<<31 - 1

// Dict maps strings to dense token ids. Lookup never inserts: strings
// outside the dictionary report false.
type Dict interface {
	Lookup(s string) (uint32, bool)
}

// DictBuilder finalizes an interning table into a lookup dictionary.
type DictBuilder func(strings map[string]uint32) (Dict, error)

// tokens assigns dense ids to the literal strings of a rule set during
// matcher construction.
type tokens struct {
	strings map[string]uint32
}

func newTokens() *tokens {
	return &tokens{strings: map[string]uint32{}}
}

// getOrInsert returns the string's id, assigning the next free one on first
// sight. Running out of id space is a construction-time error.
func (t *tokens) getOrInsert(s string) (uint32, error) {
	if id, ok := t.strings[s]; ok {
		return id, nil
	}
	id := uint32(len(t.strings))
	if id >= maxTokens {
		return 0, fmt.Errorf("token space exhausted: more than %d distinct literals", maxTokens)
	}
	t.strings[s] = id
	return id, nil
}

// hashDict is the map-backed reference dictionary.
type hashDict map[string]uint32

func (d hashDict) Lookup(s string) (uint32, bool) {
	id, ok := d[s]
	return id, ok
}

// BuildHashDict keeps the interning table as the dictionary.
func BuildHashDict(strings map[string]uint32) (Dict, error) {
	return hashDict(strings), nil
}

// BuildTrieDict compiles the interning table into a double-array trie.
func BuildTrieDict(strings map[string]uint32) (Dict, error) {
	keys, ids := sortedKeys(strings)
	return buildTrie(keys, ids)
}
