// Package tile holds the per-tile output storage the world generator fills:
// a shared point pool plus typed index lists for areas, nodes and ways.
package tile

import (
	"github.com/wegman-software/osm2tiles-go/internal/geom"
)

// Span references a [Start,End) range of the tile's point pool.
type Span struct {
	Visual uint32 `json:"type"`
	OID    int64  `json:"oid"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Node references a single point of the tile's point pool.
type Node struct {
	Visual uint32 `json:"type"`
	OID    int64  `json:"oid"`
	Index  int    `json:"point"`
}

// Tile is one cell of the output grid. It is created empty, filled
// additively during the streaming pass and read-only afterwards.
type Tile struct {
	Min geom.Point `json:"min"`
	Max geom.Point `json:"max"`

	// Common pool of points referenced by all areas, nodes and ways
	Points []geom.Point `json:"points"`

	Areas []Span `json:"areas"`
	Nodes []Node `json:"nodes"`
	Ways  []Span `json:"ways"`
}

// New creates an empty tile covering the given rectangle
func New(box geom.BBox) *Tile {
	return &Tile{Min: box.Min, Max: box.Max}
}

// AddArea copies the polygon into the pool and records an area entry
func (t *Tile) AddArea(polygon []geom.Point, visual uint32, oid int64) {
	start := len(t.Points)
	t.Points = append(t.Points, polygon...)
	t.Areas = append(t.Areas, Span{Visual: visual, OID: oid, Start: start, End: len(t.Points)})
}

// AddNode copies the point into the pool and records a node entry
func (t *Tile) AddNode(p geom.Point, visual uint32, oid int64) {
	t.Nodes = append(t.Nodes, Node{Visual: visual, OID: oid, Index: len(t.Points)})
	t.Points = append(t.Points, p)
}

// AddWay copies the sub-path into the pool and records a way entry
func (t *Tile) AddWay(path []geom.Point, visual uint32, oid int64) {
	start := len(t.Points)
	t.Points = append(t.Points, path...)
	t.Ways = append(t.Ways, Span{Visual: visual, OID: oid, Start: start, End: len(t.Points)})
}

// AreaPoints resolves an area entry's points against the pool
func (t *Tile) AreaPoints(s Span) []geom.Point { return t.Points[s.Start:s.End] }

// WayPoints resolves a way entry's points against the pool
func (t *Tile) WayPoints(s Span) []geom.Point { return t.Points[s.Start:s.End] }

// NodePoint resolves a node entry's point against the pool
func (t *Tile) NodePoint(n Node) geom.Point { return t.Points[n.Index] }

// EachArea calls fn for every area with its resolved points
func (t *Tile) EachArea(fn func(Span, []geom.Point)) {
	for _, s := range t.Areas {
		fn(s, t.AreaPoints(s))
	}
}

// EachNode calls fn for every node with its resolved point
func (t *Tile) EachNode(fn func(Node, geom.Point)) {
	for _, n := range t.Nodes {
		fn(n, t.NodePoint(n))
	}
}

// EachWay calls fn for every way with its resolved points
func (t *Tile) EachWay(fn func(Span, []geom.Point)) {
	for _, s := range t.Ways {
		fn(s, t.WayPoints(s))
	}
}

// Empty reports whether the tile holds no features
func (t *Tile) Empty() bool {
	return len(t.Areas) == 0 && len(t.Nodes) == 0 && len(t.Ways) == 0
}

// Merge appends another tile's features to this one, re-offsetting the
// other tile's pool references into the grown pool. Used to combine the
// tiles of parallel generator shards; both tiles must cover the same
// rectangle.
func (t *Tile) Merge(other *Tile) {
	offset := len(t.Points)
	t.Points = append(t.Points, other.Points...)
	for _, s := range other.Areas {
		s.Start += offset
		s.End += offset
		t.Areas = append(t.Areas, s)
	}
	for _, n := range other.Nodes {
		n.Index += offset
		t.Nodes = append(t.Nodes, n)
	}
	for _, s := range other.Ways {
		s.Start += offset
		s.End += offset
		t.Ways = append(t.Ways, s)
	}
}
