package world

import (
	"context"
	"sort"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2tiles-go/internal/match"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/rules"
	"github.com/wegman-software/osm2tiles-go/internal/source"
	"github.com/wegman-software/osm2tiles-go/internal/tile"
)

const testProfile = `
[Areas]
1: building;

[Nodes]
2: amenity;

[Ways]
3: highway;
`

// testGenerator covers [-2,2)x[-2,2) with 4x4 unit tiles: zoom 0 gives a
// unit step and the identity projection keeps coordinates as-is.
func testGenerator(t *testing.T) *Generator {
	t.Helper()
	r, err := rules.Parse(testProfile)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := match.New(match.StrategyNaive, r)
	if err != nil {
		t.Fatalf("match.New: %v", err)
	}
	g, err := New(Options{
		Center:     source.Coord{Lon: 0, Lat: 0},
		Cols:       4,
		Rows:       4,
		Zoom:       0,
		Matcher:    m,
		Projection: proj.Identity{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func tagged(key, value string) osm.Tags {
	return osm.Tags{{Key: key, Value: value}}
}

func TestGridPlacement(t *testing.T) {
	g := testGenerator(t)
	bounds := g.Grid().Bounds()
	if bounds.Min.X != -2 || bounds.Min.Y != -2 || bounds.Max.X != 2 || bounds.Max.Y != 2 {
		t.Errorf("grid bounds = %+v, want [-2,2)x[-2,2)", bounds)
	}
	if len(g.Tiles()) != 16 {
		t.Errorf("generator owns %d tiles, want 16", len(g.Tiles()))
	}
}

func TestNodePlacement(t *testing.T) {
	g := testGenerator(t)
	err := g.Run(source.NewSliceScanner(
		&source.Node{ID: 10, Tags: tagged("amenity", "cafe"), Coord: source.Coord{Lon: 0.5, Lat: 0.5}},
		&source.Node{ID: 11, Tags: tagged("name", "ignored"), Coord: source.Coord{Lon: 0.5, Lat: 0.5}},
		&source.Node{ID: 12, Tags: nil, Coord: source.Coord{Lon: 0.5, Lat: 0.5}},
		&source.Node{ID: 13, Tags: tagged("amenity", "bench"), Coord: source.Coord{Lon: 9, Lat: 9}},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// (0.5, 0.5) lies in column 2, row 2 of the 4x4 grid.
	tl := g.Tiles()[2*4+2]
	if len(tl.Nodes) != 1 {
		t.Fatalf("tile holds %d nodes, want 1", len(tl.Nodes))
	}
	if tl.Nodes[0].Visual != 2 || tl.Nodes[0].OID != 10 {
		t.Errorf("node entry = %+v, want visual 2 oid 10", tl.Nodes[0])
	}
	total := 0
	for _, tl := range g.Tiles() {
		total += len(tl.Nodes)
	}
	if total != 1 {
		t.Errorf("%d nodes across all tiles, want 1 (unmatched, untagged and out-of-grid skipped)", total)
	}
}

func TestAreaFragmentsShareVisualAndOID(t *testing.T) {
	g := testGenerator(t)
	// Unit square centered on the origin corner: spans 4 tiles.
	err := g.Run(source.NewSliceScanner(&source.Area{
		ID:   42,
		Tags: tagged("building", "yes"),
		Outer: []source.Coord{
			{Lon: -0.5, Lat: -0.5}, {Lon: 0.5, Lat: -0.5},
			{Lon: 0.5, Lat: 0.5}, {Lon: -0.5, Lat: 0.5},
		},
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fragments := 0
	for _, tl := range g.Tiles() {
		for _, a := range tl.Areas {
			fragments++
			if a.Visual != 1 || a.OID != 42 {
				t.Errorf("fragment = %+v, want visual 1 oid 42", a)
			}
		}
	}
	if fragments != 4 {
		t.Errorf("area split into %d fragments, want 4", fragments)
	}
}

func TestClosedWaySkipped(t *testing.T) {
	g := testGenerator(t)
	err := g.Run(source.NewSliceScanner(
		&source.Way{
			ID:     7,
			Tags:   tagged("highway", "service"),
			Points: []source.Coord{{Lon: 0.1, Lat: 0.1}, {Lon: 0.9, Lat: 0.1}, {Lon: 0.9, Lat: 0.9}, {Lon: 0.1, Lat: 0.1}},
			Closed: true,
		},
		&source.Way{
			ID:     8,
			Tags:   tagged("highway", "residential"),
			Points: []source.Coord{{Lon: -1.5, Lat: 0.5}, {Lon: 1.5, Lat: 0.5}},
		},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	oids := map[int64]bool{}
	for _, tl := range g.Tiles() {
		for _, w := range tl.Ways {
			oids[w.OID] = true
		}
	}
	if oids[7] {
		t.Error("closed way must not produce path fragments")
	}
	if !oids[8] {
		t.Error("open way produced no fragments")
	}
}

func TestDegenerateGeometrySkipped(t *testing.T) {
	g := testGenerator(t)
	err := g.Run(source.NewSliceScanner(
		&source.Area{ID: 1, Tags: tagged("building", "yes"), Outer: []source.Coord{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}},
		&source.Way{ID: 2, Tags: tagged("highway", "path"), Points: []source.Coord{{Lon: 0, Lat: 0}}},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tl := range g.Tiles() {
		if !tl.Empty() {
			t.Errorf("degenerate input produced output in tile %+v", tl)
		}
	}
	if g.Stats().Degenerate != 2 {
		t.Errorf("degenerate counter = %d, want 2", g.Stats().Degenerate)
	}
}

func TestAreaWithHole(t *testing.T) {
	g := testGenerator(t)
	err := g.Run(source.NewSliceScanner(&source.Area{
		ID:   5,
		Tags: tagged("building", "yes"),
		Outer: []source.Coord{
			{Lon: 0.1, Lat: 0.1}, {Lon: 0.9, Lat: 0.1}, {Lon: 0.9, Lat: 0.9}, {Lon: 0.1, Lat: 0.9},
		},
		Inners: [][]source.Coord{
			{{Lon: 0.4, Lat: 0.4}, {Lon: 0.6, Lat: 0.4}, {Lon: 0.6, Lat: 0.6}, {Lon: 0.4, Lat: 0.6}},
			{{Lon: 0.2, Lat: 0.2}, {Lon: 0.2, Lat: 0.2}}, // degenerate hole, dropped
		},
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	tl := g.Tiles()[2*4+2]
	if len(tl.Areas) != 1 {
		t.Fatalf("tile holds %d areas, want 1", len(tl.Areas))
	}
	// Outer ring and hole are spliced into one polygon: 4 + 1 + 4 + 1.
	if got := tl.AreaPoints(tl.Areas[0]); len(got) != 10 {
		t.Errorf("combined polygon has %d points, want 10", len(got))
	}
}

func primitiveMix() []source.Primitive {
	var prims []source.Primitive
	for i := 0; i < 40; i++ {
		f := float64(i%8)/4 - 1
		prims = append(prims,
			&source.Node{
				ID: int64(100 + i), Tags: tagged("amenity", "cafe"),
				Coord: source.Coord{Lon: f, Lat: -f / 2},
			},
			&source.Way{
				ID: int64(200 + i), Tags: tagged("highway", "residential"),
				Points: []source.Coord{{Lon: f - 0.5, Lat: f}, {Lon: f + 0.5, Lat: f}},
			},
			&source.Area{
				ID: int64(300 + i), Tags: tagged("building", "yes"),
				Outer: []source.Coord{{Lon: f, Lat: f}, {Lon: f + 0.3, Lat: f}, {Lon: f + 0.3, Lat: f + 0.3}, {Lon: f, Lat: f + 0.3}},
			},
		)
	}
	return prims
}

type spanKey struct {
	tile   int
	visual uint32
	oid    int64
	points int
}

func collectSpans(tiles []*tile.Tile) []spanKey {
	var keys []spanKey
	for i, tl := range tiles {
		for _, s := range tl.Areas {
			keys = append(keys, spanKey{i, s.Visual, s.OID, s.End - s.Start})
		}
		for _, s := range tl.Ways {
			keys = append(keys, spanKey{i, s.Visual, s.OID, s.End - s.Start})
		}
		for _, n := range tl.Nodes {
			keys = append(keys, spanKey{i, n.Visual, n.OID, 1})
		}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].tile != keys[b].tile {
			return keys[a].tile < keys[b].tile
		}
		if keys[a].oid != keys[b].oid {
			return keys[a].oid < keys[b].oid
		}
		return keys[a].points < keys[b].points
	})
	return keys
}

// Sharding the stream across workers must produce the same fragments as a
// serial pass, per tile, up to ordering.
func TestRunParallelMatchesSerial(t *testing.T) {
	prims := primitiveMix()

	serial := testGenerator(t)
	if err := serial.Run(source.NewSliceScanner(prims...)); err != nil {
		t.Fatalf("serial Run: %v", err)
	}

	parallel := testGenerator(t)
	err := parallel.RunParallel(context.Background(), source.NewSliceScanner(prims...), 4)
	if err != nil {
		t.Fatalf("RunParallel: %v", err)
	}

	got := collectSpans(parallel.Tiles())
	want := collectSpans(serial.Tiles())
	if len(got) != len(want) {
		t.Fatalf("parallel produced %d fragments, serial %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d: parallel %+v, serial %+v", i, got[i], want[i])
		}
	}
	if parallel.Stats() != serial.Stats() {
		t.Errorf("stats differ: parallel %+v, serial %+v", parallel.Stats(), serial.Stats())
	}
}
