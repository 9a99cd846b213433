// Package match evaluates parsed classification rules against feature tags.
// Three interchangeable strategies implement the same contract: naive string
// comparison, token interning over a hash dictionary and token interning
// over a double-array trie.
package match

import (
	"fmt"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2tiles-go/internal/rules"
)

// Matcher returns the id of the first branch matching a feature's tags.
// Implementations are read-only after construction and safe to share across
// goroutines.
type Matcher interface {
	Area(tags osm.Tags) (uint32, bool)
	Node(tags osm.Tags) (uint32, bool)
	Way(tags osm.Tags) (uint32, bool)
}

// Strategy names accepted by New.
const (
	StrategyNaive    = "naive"
	StrategyInterned = "interned"
	StrategyTrie     = "trie"
)

// New builds a matcher for the rules using the named strategy.
func New(strategy string, r *rules.Rules) (Matcher, error) {
	switch strategy {
	case StrategyNaive:
		return NewNaive(r), nil
	case StrategyInterned:
		return NewInterned(r, BuildHashDict)
	case StrategyTrie:
		return NewInterned(r, BuildTrieDict)
	default:
		return nil, fmt.Errorf("unknown matcher strategy %q", strategy)
	}
}

func tagMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}
