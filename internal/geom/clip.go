package geom

// Axis selects the X or Y coordinate of a point.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Get returns the selected coordinate of p
func (a Axis) Get(p Point) float64 {
	if a == AxisX {
		return p.X
	}
	return p.Y
}

// Line is a horizontal or vertical line: all points whose selected
// coordinate equals Value.
type Line struct {
	Axis  Axis
	Value float64
}

// Intersect computes the intersection of the line with the (infinite) line
// through from and to. The segment must not be parallel to the line.
func (l Line) Intersect(from, to Point) Point {
	delta := to.Sub(from)
	lambda := (l.Value - l.Axis.Get(from)) / l.Axis.Get(delta)
	return Point{from.X + lambda*delta.X, from.Y + lambda*delta.Y}
}

// Side selects which half of the plane a HalfPlane keeps.
type Side int

const (
	// KeepGreater keeps points whose coordinate is greater than the cut value
	KeepGreater Side = iota
	// KeepLess keeps points whose coordinate is less than the cut value
	KeepLess
)

// HalfPlane is one half of the plane, cut by an axis-aligned line.
type HalfPlane struct {
	Axis  Axis
	Keep  Side
	Value float64
}

// Contains reports whether p lies strictly inside the half-plane
func (h HalfPlane) Contains(p Point) bool {
	c := h.Axis.Get(p)
	if h.Keep == KeepGreater {
		return c > h.Value
	}
	return c < h.Value
}

// Clip clips a polygon against the half-plane (one Sutherland-Hodgman pass),
// appending the result to out and returning it. Vertices inside the
// half-plane are kept and an intersection vertex is inserted whenever an
// edge crosses the cut line. The edge from the last vertex back to the first
// is included. Clipping an empty polygon yields an empty result.
func (h HalfPlane) Clip(in []Point, out []Point) []Point {
	if len(in) == 0 {
		return out
	}
	line := Line{h.Axis, h.Value}
	prev := in[len(in)-1]
	for _, cur := range in {
		switch {
		case h.Contains(cur):
			if !h.Contains(prev) {
				out = append(out, line.Intersect(prev, cur))
			}
			out = append(out, cur)
		case h.Contains(prev):
			out = append(out, line.Intersect(prev, cur))
		}
		prev = cur
	}
	return out
}
