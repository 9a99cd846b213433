// Package grid implements the streaming tile clipper. A Grid owns the tile
// layout (origin, step size, column/row count) and cuts points, polygons and
// paths into per-tile pieces without buffering more than one row of
// intermediate geometry. It does not own any tile storage: results are
// handed to publish callbacks keyed by flat tile index.
package grid

import (
	"fmt"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
)

// Grid is a fixed rectangular layout of cols x rows tiles.
//
// The zero value is not usable; construct with New. A Grid is not safe for
// concurrent use: ClipPath keeps one in-progress buffer per tile between
// segments of a single call.
type Grid struct {
	min  geom.Point
	step geom.Point
	cols int
	rows int

	// In-progress sub-path per tile, reused (cleared, not reallocated)
	// across ClipPath calls.
	wip [][]geom.Point
}

// New creates a grid of cols x rows tiles whose south-west corner is min
// and whose tiles are step wide and high.
func New(min geom.Point, cols, rows int, step geom.Point) *Grid {
	if cols < 1 || rows < 1 {
		panic(fmt.Sprintf("grid: invalid size %dx%d", cols, rows))
	}
	if step.X <= 0 || step.Y <= 0 {
		panic(fmt.Sprintf("grid: invalid step %v", step))
	}
	return &Grid{
		min:  min,
		step: step,
		cols: cols,
		rows: rows,
		wip:  make([][]geom.Point, cols*rows),
	}
}

// Cols returns the number of tile columns
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of tile rows
func (g *Grid) Rows() int { return g.rows }

// Bounds returns the rectangle covered by the whole grid
func (g *Grid) Bounds() geom.BBox {
	return geom.BBox{
		Min: g.min,
		Max: geom.Point{
			X: g.min.X + float64(g.cols)*g.step.X,
			Y: g.min.Y + float64(g.rows)*g.step.Y,
		},
	}
}

// TileBox returns the rectangle of the tile at column x, row y.
// The index is not bounds-checked; out-of-range indices yield the rectangle
// the tile would have if the grid extended that far.
func (g *Grid) TileBox(x, y int) geom.BBox {
	min := geom.Point{
		X: g.min.X + float64(x)*g.step.X,
		Y: g.min.Y + float64(y)*g.step.Y,
	}
	return geom.BBox{Min: min, Max: min.Add(g.step)}
}

// LookupPoint returns the column/row index of the tile containing p.
// Points outside the grid yield out-of-range indices; callers must
// bounds-check before indexing tile storage.
func (g *Grid) LookupPoint(p geom.Point) (x, y int) {
	return floorDiv(p.X-g.min.X, g.step.X), floorDiv(p.Y-g.min.Y, g.step.Y)
}

func floorDiv(v, step float64) int {
	q := v / step
	i := int(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}

func (g *Grid) inRange(x, y int) bool {
	return 0 <= x && x < g.cols && 0 <= y && y < g.rows
}

func (g *Grid) flat(x, y int) int {
	return y*g.cols + x
}

// ClipPoint publishes p to the tile containing it, if any.
func (g *Grid) ClipPoint(p geom.Point, publish func(tile int, p geom.Point)) {
	if x, y := g.LookupPoint(p); g.inRange(x, y) {
		publish(g.flat(x, y), p)
	}
}

// ClipPolygon cuts a polygon into per-tile pieces and publishes each piece.
// The published slice is only valid for the duration of the callback; copy
// it to retain it. Empty pieces are published too, so the callback decides
// whether to keep degenerate results. A polygon contained in a single tile
// is published unmodified.
func (g *Grid) ClipPolygon(polygon []geom.Point, publish func(tile int, polygon []geom.Point)) {
	if len(polygon) == 0 {
		return
	}

	// Index-space bounding box of the polygon
	minX, minY := g.LookupPoint(polygon[0])
	maxX, maxY := minX, minY
	for _, p := range polygon[1:] {
		x, y := g.LookupPoint(p)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}

	// Contained in a single tile: no clipping ambiguity
	if minX == maxX && minY == maxY {
		if g.inRange(minX, minY) {
			publish(g.flat(minX, minY), polygon)
		}
		return
	}

	// Half-open upper bound for iteration
	maxX++
	maxY++

	// Entirely outside the grid
	if minX >= g.cols || minY >= g.rows || maxX <= 0 || maxY <= 0 {
		return
	}

	// Clamp to the valid index range
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > g.cols {
		maxX = g.cols
	}
	if maxY > g.rows {
		maxY = g.rows
	}

	// Reused buffers for the two-pass row clip and two-pass column clip
	var temp, row, tile []geom.Point

	for y := minY; y < maxY; y++ {
		box := g.TileBox(0, y)

		temp = geom.HalfPlane{Axis: geom.AxisY, Keep: geom.KeepGreater, Value: box.Min.Y}.Clip(polygon, temp[:0])
		row = geom.HalfPlane{Axis: geom.AxisY, Keep: geom.KeepLess, Value: box.Max.Y}.Clip(temp, row[:0])

		for x := minX; x < maxX; x++ {
			box := g.TileBox(x, y)

			temp = geom.HalfPlane{Axis: geom.AxisX, Keep: geom.KeepGreater, Value: box.Min.X}.Clip(row, temp[:0])
			tile = geom.HalfPlane{Axis: geom.AxisX, Keep: geom.KeepLess, Value: box.Max.X}.Clip(temp, tile[:0])

			publish(g.flat(x, y), tile)
		}
	}
}

// ClipPath cuts an open polyline into per-tile sub-paths. A path may leave
// and re-enter the same tile; each stay produces its own sub-path. Whenever
// a segment crosses a tile boundary the crossing point terminates the
// current tile's sub-path (published via the callback) and starts the next
// tile's, so the crossing vertex belongs to both. The published slice is
// reused; copy it to retain it.
//
// When a segment exits a tile exactly through a corner, the two candidate
// boundary crossings are equidistant; the horizontal-axis (x boundary)
// crossing wins. Exact ties are measure-zero in float inputs, so the rule
// only pins down determinism.
func (g *Grid) ClipPath(path []geom.Point, publish func(tile int, path []geom.Point)) {
	if len(path) == 0 {
		return
	}

	curP := path[0]
	curX, curY := g.LookupPoint(curP)
	if g.Bounds().Contains(curP) {
		g.pathAppend(curX, curY, curP)
	}

	for _, nextP := range path[1:] {
		nextX, nextY := g.LookupPoint(nextP)

		for nextX != curX || nextY != curY {
			box := g.TileBox(curX, curY)

			// Candidate crossings on the up-to-two boundaries in the
			// direction of movement. The x candidate is evaluated first
			// and only a strictly nearer y candidate replaces it.
			var (
				haveCand       bool
				cand           geom.Point
				candDX, candDY int
			)
			switch {
			case nextX > curX:
				cand = geom.Line{Axis: geom.AxisX, Value: box.Max.X}.Intersect(curP, nextP)
				candDX, haveCand = 1, true
			case nextX < curX:
				cand = geom.Line{Axis: geom.AxisX, Value: box.Min.X}.Intersect(curP, nextP)
				candDX, haveCand = -1, true
			}
			if nextY != curY {
				var y geom.Point
				if nextY > curY {
					y = geom.Line{Axis: geom.AxisY, Value: box.Max.Y}.Intersect(curP, nextP)
				} else {
					y = geom.Line{Axis: geom.AxisY, Value: box.Min.Y}.Intersect(curP, nextP)
				}
				if !haveCand || curP.DistSq(y) < curP.DistSq(cand) {
					cand = y
					candDX = 0
					if nextY > curY {
						candDY = 1
					} else {
						candDY = -1
					}
					haveCand = true
				}
			}
			if !haveCand {
				// The loop condition guarantees at least one axis moved;
				// reaching this point means the step precondition
				// (finite coordinates, step <= one tile) was violated.
				panic("grid: tile step without a boundary crossing")
			}

			// The crossing point ends this tile's sub-path and starts the
			// neighbour's.
			g.pathFlush(curX, curY, cand, publish)
			curX += candDX
			curY += candDY
			g.pathAppend(curX, curY, cand)
		}

		g.pathAppend(nextX, nextY, nextP)
		curP = nextP
		curX, curY = g.LookupPoint(nextP)
	}

	// Flush whatever remains in the last tile
	if g.inRange(curX, curY) {
		i := g.flat(curX, curY)
		if len(g.wip[i]) > 0 {
			publish(i, g.wip[i])
			g.wip[i] = g.wip[i][:0]
		}
	}
}

// pathAppend extends the tile's in-progress sub-path, ignoring out-of-range
// tiles.
func (g *Grid) pathAppend(x, y int, p geom.Point) {
	if g.inRange(x, y) {
		i := g.flat(x, y)
		g.wip[i] = append(g.wip[i], p)
	}
}

// pathFlush terminates the tile's in-progress sub-path with p and publishes
// it.
func (g *Grid) pathFlush(x, y int, p geom.Point, publish func(int, []geom.Point)) {
	if !g.inRange(x, y) {
		return
	}
	i := g.flat(x, y)
	g.wip[i] = append(g.wip[i], p)
	publish(i, g.wip[i])
	g.wip[i] = g.wip[i][:0]
}
