// Package source turns raw map data into a stream of tagged geometric
// primitives: areas (outer ring plus holes), nodes (a single coordinate)
// and ways (an open coordinate list). The world generator consumes the
// stream through the Scanner interface without knowing where it came from.
package source

import "github.com/paulmach/osm"

// Coord is a raw lon/lat coordinate in degrees, not yet projected.
type Coord struct {
	Lon float64
	Lat float64
}

// Primitive is one tagged geometric record: *Area, *Node or *Way.
type Primitive interface {
	isPrimitive()
}

// Area is a polygon with holes. Outer is the outer ring; Inners are the
// holes, each a closed ring of its own.
type Area struct {
	ID     int64
	Tags   osm.Tags
	Outer  []Coord
	Inners [][]Coord
}

// Node is a single tagged coordinate.
type Node struct {
	ID    int64
	Tags  osm.Tags
	Coord Coord
}

// Way is an ordered coordinate list. Closed reports that the first and last
// source node are the same; closed ways are polygon boundaries, not paths.
type Way struct {
	ID     int64
	Tags   osm.Tags
	Points []Coord
	Closed bool
}

func (*Area) isPrimitive() {}
func (*Node) isPrimitive() {}
func (*Way) isPrimitive()  {}

// Scanner iterates a primitive stream. The usage pattern follows the
// osmpbf scanner: call Scan until it returns false, then check Err.
// Stream errors are fatal; a Scanner never retries internally.
type Scanner interface {
	Scan() bool
	Primitive() Primitive
	Err() error
	Close() error
}

// SliceScanner serves a fixed primitive list. It backs tests and the
// parallel generator's work distribution.
type SliceScanner struct {
	primitives []Primitive
	pos        int
}

// NewSliceScanner wraps the primitives in a Scanner.
func NewSliceScanner(primitives ...Primitive) *SliceScanner {
	return &SliceScanner{primitives: primitives}
}

func (s *SliceScanner) Scan() bool {
	if s.pos >= len(s.primitives) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceScanner) Primitive() Primitive {
	return s.primitives[s.pos-1]
}

func (s *SliceScanner) Err() error { return nil }

func (s *SliceScanner) Close() error { return nil }
