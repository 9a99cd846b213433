package match

import (
	"errors"
	"sort"
)

// trieDict is a double-array trie over the dictionary strings. Transitions
// use the byte value plus one as edge code; code zero is the end-of-string
// terminator, so a hit requires walking the entire query. Proper substrings
// of a stored string are not hits.
//
// For a state s and code c the candidate cell is base[s]+c; the transition
// exists iff check at that cell points back to s. Token ids are stored at
// terminator cells.
type trieDict struct {
	base  []int32
	check []int32
	value []uint32
}

const terminator = int32(0)

func code(b byte) int32 { return int32(b) + 1 }

// maxTrieSize bounds the double array so cell indices stay within int32.
const maxTrieSize = 1 << 30

var errTrieTooLarge = errors.New("dictionary trie exceeds the supported size")

// buildTrie compiles sorted keys and their ids into a double-array trie.
func buildTrie(keys []string, ids []uint32) (*trieDict, error) {
	b := &trieBuilder{
		trieDict: trieDict{
			base:  []int32{0},
			check: []int32{-1},
			value: []uint32{0},
		},
	}
	if len(keys) > 0 {
		if err := b.insert(0, 0, keys, ids); err != nil {
			return nil, err
		}
	}
	return &b.trieDict, nil
}

type trieBuilder struct {
	trieDict
}

// insert places the transitions of state for the keys sharing the prefix
// keys[*][:depth], then recurses into each child state.
func (b *trieBuilder) insert(state int32, depth int, keys []string, ids []uint32) error {
	type edge struct {
		code     int32
		lo, hi   int
		terminal bool
		id       uint32
	}
	var edges []edge

	i := 0
	if len(keys[0]) == depth {
		edges = append(edges, edge{code: terminator, terminal: true, id: ids[0]})
		i = 1
	}
	for i < len(keys) {
		c := code(keys[i][depth])
		j := i + 1
		for j < len(keys) && code(keys[j][depth]) == c {
			j++
		}
		edges = append(edges, edge{code: c, lo: i, hi: j})
		i = j
	}

	base, err := b.place(state, func(yield func(int32)) {
		for _, e := range edges {
			yield(e.code)
		}
	})
	if err != nil {
		return err
	}

	for _, e := range edges {
		cell := base + e.code
		if e.terminal {
			b.value[cell] = e.id
			continue
		}
		if err := b.insert(cell, depth+1, keys[e.lo:e.hi], ids[e.lo:e.hi]); err != nil {
			return err
		}
	}
	return nil
}

// place finds the smallest base >= 1 whose cells are free for every edge
// code, claims them for state and records the base.
func (b *trieBuilder) place(state int32, codes func(func(int32))) (int32, error) {
	for base := int32(1); ; base++ {
		if base >= maxTrieSize {
			return 0, errTrieTooLarge
		}
		ok := true
		codes(func(c int32) {
			cell := base + c
			if int(cell) < len(b.check) && b.check[cell] != -1 {
				ok = false
			}
		})
		if !ok {
			continue
		}
		codes(func(c int32) {
			b.claim(base+c, state)
		})
		b.base[state] = base
		return base, nil
	}
}

func (b *trieBuilder) claim(cell, state int32) {
	for int(cell) >= len(b.check) {
		b.base = append(b.base, 0)
		b.check = append(b.check, -1)
		b.value = append(b.value, 0)
	}
	b.check[cell] = state
}

// Lookup walks the whole string and the terminator edge; both must succeed
// for a hit.
func (d *trieDict) Lookup(s string) (uint32, bool) {
	state := int32(0)
	for i := 0; i < len(s); i++ {
		next := d.base[state] + code(s[i])
		if int(next) >= len(d.check) || d.check[next] != state {
			return 0, false
		}
		state = next
	}
	cell := d.base[state] + terminator
	if int(cell) >= len(d.check) || d.check[cell] != state {
		return 0, false
	}
	return d.value[cell], true
}

// sortedKeys orders a dictionary map for the builder, which requires its
// keys sorted.
func sortedKeys(strings map[string]uint32) ([]string, []uint32) {
	keys := make([]string, 0, len(strings))
	for s := range strings {
		keys = append(keys, s)
	}
	sort.Strings(keys)
	ids := make([]uint32, len(keys))
	for i, s := range keys {
		ids[i] = strings[s]
	}
	return keys, ids
}
