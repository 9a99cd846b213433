package grid

import (
	"math"
	"reflect"
	"testing"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
)

func TestLookupPoint(t *testing.T) {
	g := New(geom.Point{X: -2, Y: -2}, 4, 4, geom.Point{X: 1, Y: 1})

	tests := []struct {
		p    geom.Point
		x, y int
	}{
		{geom.Point{X: -2, Y: -2}, 0, 0},
		{geom.Point{X: -1.5, Y: -1.5}, 0, 0},
		{geom.Point{X: 0, Y: 0}, 2, 2},
		{geom.Point{X: 1.99, Y: -0.01}, 3, 1},
		{geom.Point{X: -2.5, Y: 0}, -1, 2}, // left of the grid
		{geom.Point{X: 2.5, Y: 0}, 4, 2},   // right of the grid
	}
	for _, tt := range tests {
		x, y := g.LookupPoint(tt.p)
		if x != tt.x || y != tt.y {
			t.Errorf("LookupPoint(%v) = (%d,%d), want (%d,%d)", tt.p, x, y, tt.x, tt.y)
		}
	}
}

func TestTileBoxRoundTrip(t *testing.T) {
	g := New(geom.Point{X: 3.5, Y: -1.25}, 8, 6, geom.Point{X: 0.25, Y: 0.5})
	for y := 0; y < g.Rows(); y++ {
		for x := 0; x < g.Cols(); x++ {
			box := g.TileBox(x, y)
			gotX, gotY := g.LookupPoint(box.Min)
			if gotX != x || gotY != y {
				t.Errorf("LookupPoint(TileBox(%d,%d).Min) = (%d,%d)", x, y, gotX, gotY)
			}
		}
	}
}

func TestClipPoint(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 2, 2, geom.Point{X: 1, Y: 1})

	var gotTile = -1
	g.ClipPoint(geom.Point{X: 1.5, Y: 0.5}, func(tile int, _ geom.Point) {
		gotTile = tile
	})
	if gotTile != 1 {
		t.Errorf("point published to tile %d, want 1", gotTile)
	}

	called := false
	g.ClipPoint(geom.Point{X: -1, Y: 0.5}, func(int, geom.Point) { called = true })
	if called {
		t.Error("out-of-grid point must not be published")
	}
}

func TestClipPolygonSingleTile(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 2, 2, geom.Point{X: 1, Y: 1})
	poly := []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.4, Y: 0.1}, {X: 0.3, Y: 0.6}}

	var got []geom.Point
	tiles := 0
	g.ClipPolygon(poly, func(tile int, p []geom.Point) {
		tiles++
		if tile != 0 {
			t.Errorf("published to tile %d, want 0", tile)
		}
		got = p
	})
	if tiles != 1 {
		t.Fatalf("published to %d tiles, want 1", tiles)
	}
	if !reflect.DeepEqual(got, poly) {
		t.Errorf("single-tile polygon must pass through unchanged, got %v", got)
	}
}

func TestClipPolygonOutsideGrid(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 2, 2, geom.Point{X: 1, Y: 1})
	poly := []geom.Point{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 6}}

	g.ClipPolygon(poly, func(tile int, p []geom.Point) {
		t.Errorf("polygon outside the grid published to tile %d: %v", tile, p)
	})
}

// A unit square centered on the shared corner of a 2x2 grid must split into
// four quadrants of area 0.25.
func TestClipPolygonQuadrants(t *testing.T) {
	g := New(geom.Point{X: -1, Y: -1}, 2, 2, geom.Point{X: 1, Y: 1})
	poly := []geom.Point{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	}

	areas := map[int]float64{}
	g.ClipPolygon(poly, func(tile int, p []geom.Point) {
		if len(p) == 0 {
			return
		}
		areas[tile] = polygonArea(p)
	})

	if len(areas) != 4 {
		t.Fatalf("expected 4 non-empty pieces, got %d: %v", len(areas), areas)
	}
	for tile, area := range areas {
		if math.Abs(area-0.25) > 1e-12 {
			t.Errorf("tile %d piece has area %f, want 0.25", tile, area)
		}
	}
}

func TestClipPathStraightCrossings(t *testing.T) {
	g := New(geom.Point{X: -2, Y: -2}, 4, 4, geom.Point{X: 1, Y: 1})
	path := []geom.Point{{X: -1.5, Y: 0}, {X: 1.5, Y: 0}}

	type frag struct {
		tile int
		pts  []geom.Point
	}
	var frags []frag
	g.ClipPath(path, func(tile int, p []geom.Point) {
		frags = append(frags, frag{tile, append([]geom.Point(nil), p...)})
	})

	row := 2 // y = 0 lies in row 2
	want := []frag{
		{row*4 + 0, []geom.Point{{X: -1.5, Y: 0}, {X: -1, Y: 0}}},
		{row*4 + 1, []geom.Point{{X: -1, Y: 0}, {X: 0, Y: 0}}},
		{row*4 + 2, []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
		{row*4 + 3, []geom.Point{{X: 1, Y: 0}, {X: 1.5, Y: 0}}},
	}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("fragments = %v, want %v", frags, want)
	}
}

// Concatenating the fragments in publish order must reconstruct the original
// in-bounds vertices, in order, with crossing points doubled on boundaries.
func TestClipPathCoverage(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 3, 3, geom.Point{X: 1, Y: 1})
	path := []geom.Point{
		{X: 0.5, Y: 0.5}, {X: 2.5, Y: 0.5}, {X: 2.5, Y: 2.5}, {X: 0.2, Y: 2.2},
	}

	var flat []geom.Point
	g.ClipPath(path, func(_ int, p []geom.Point) {
		flat = append(flat, p...)
	})

	next := 0
	for _, p := range flat {
		if next < len(path) && p == path[next] {
			next++
		}
	}
	if next != len(path) {
		t.Errorf("fragments lost original vertices: matched %d of %d in %v",
			next, len(path), flat)
	}
}

func TestClipPathReentersTile(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 3, 3, geom.Point{X: 1, Y: 1})
	path := []geom.Point{{X: 0.5, Y: 0.5}, {X: 1.5, Y: 0.5}, {X: 0.6, Y: 0.5}}

	perTile := map[int][][]geom.Point{}
	g.ClipPath(path, func(tile int, p []geom.Point) {
		perTile[tile] = append(perTile[tile], append([]geom.Point(nil), p...))
	})

	if n := len(perTile[0]); n != 2 {
		t.Errorf("tile 0 should receive 2 disjoint sub-paths, got %d: %v", n, perTile[0])
	}
	if n := len(perTile[1]); n != 1 {
		t.Errorf("tile 1 should receive 1 sub-path, got %d: %v", n, perTile[1])
	}
}

// Exiting exactly through a tile corner must take the x boundary first.
func TestClipPathCornerTieBreak(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 2, 2, geom.Point{X: 1, Y: 1})
	path := []geom.Point{{X: 0.5, Y: 0.5}, {X: 1.5, Y: 1.5}}

	var visited []int
	g.ClipPath(path, func(tile int, _ []geom.Point) {
		visited = append(visited, tile)
	})

	// tile 0 -> tile 1 (x step first) -> tile 3
	want := []int{0, 1, 3}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited tiles %v, want %v", visited, want)
	}
}

func TestClipPathBuffersReused(t *testing.T) {
	g := New(geom.Point{X: 0, Y: 0}, 2, 1, geom.Point{X: 1, Y: 1})
	path := []geom.Point{{X: 0.5, Y: 0.5}, {X: 1.5, Y: 0.5}}

	for i := 0; i < 3; i++ {
		count := 0
		g.ClipPath(path, func(_ int, p []geom.Point) {
			count++
			if len(p) != 2 {
				t.Errorf("run %d: fragment %v, want 2 points", i, p)
			}
		})
		if count != 2 {
			t.Errorf("run %d: %d fragments, want 2", i, count)
		}
	}
}

func polygonArea(p []geom.Point) float64 {
	sum := 0.0
	for i, cur := range p {
		next := p[(i+1)%len(p)]
		sum += cur.X*next.Y - next.X*cur.Y
	}
	return math.Abs(sum) / 2
}
