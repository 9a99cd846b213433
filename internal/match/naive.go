package match

import (
	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2tiles-go/internal/rules"
)

// Naive evaluates rule expressions directly against string tags, building a
// temporary map per call. It is the reference implementation the other
// strategies are checked against.
type Naive struct {
	rules *rules.Rules
}

// NewNaive wraps the rules without any preprocessing.
func NewNaive(r *rules.Rules) *Naive {
	return &Naive{rules: r}
}

func (n *Naive) Area(tags osm.Tags) (uint32, bool) {
	return rules.FirstMatch(n.rules.Areas, tagMap(tags))
}

func (n *Naive) Node(tags osm.Tags) (uint32, bool) {
	return rules.FirstMatch(n.rules.Nodes, tagMap(tags))
}

func (n *Naive) Way(tags osm.Tags) (uint32, bool) {
	return rules.FirstMatch(n.rules.Ways, tagMap(tags))
}
