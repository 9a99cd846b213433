// Package geom holds the planar primitives the grid clipper is built on:
// points, axis-aligned bounding boxes and single half-plane cuts.
package geom

import "math"

// Point is a point in projected (planar) coordinates
type Point struct {
	X, Y float64
}

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// DistSq returns the squared euclidean distance between p and q
func (p Point) DistSq(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// BBox is an axis-aligned bounding box
type BBox struct {
	Min, Max Point
}

// NewBBox returns an "empty" bounding box which contains no point.
// Fit at least one point before using it.
func NewBBox() BBox {
	return BBox{
		Min: Point{math.Inf(1), math.Inf(1)},
		Max: Point{math.Inf(-1), math.Inf(-1)},
	}
}

// Contains reports whether the point lies inside the box.
// Points exactly on the edge are contained.
func (b BBox) Contains(p Point) bool {
	return b.Min.X <= p.X && p.X <= b.Max.X &&
		b.Min.Y <= p.Y && p.Y <= b.Max.Y
}

// Fit grows the box to contain the point
func (b *BBox) Fit(p Point) {
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
}
