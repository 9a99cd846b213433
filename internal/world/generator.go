// Package world orchestrates a streaming pass: primitives come in, get
// classified by the matcher, their geometry is projected and clipped by the
// grid, and the pieces land in per-tile output buffers.
package world

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
	"github.com/wegman-software/osm2tiles-go/internal/grid"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/match"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/source"
	"github.com/wegman-software/osm2tiles-go/internal/tile"
)

// Options parameterizes a Generator.
type Options struct {
	// Center is the raw coordinate the grid is centered on.
	Center source.Coord

	// Cols and Rows give the grid size in tiles.
	Cols int
	Rows int

	// Zoom sets the tile edge length to 1/2^Zoom in projected space.
	Zoom int

	Matcher    match.Matcher
	Projection proj.Projection

	Log *zap.Logger
}

// Stats counts what a streaming pass did.
type Stats struct {
	Areas      int64
	Nodes      int64
	Ways       int64
	Unmatched  int64
	Degenerate int64
}

// Generator runs the pass. It is single-threaded; for parallelism, shard
// the stream across Clones and merge afterwards (see RunParallel).
type Generator struct {
	opts  Options
	grid  *grid.Grid
	tiles []*tile.Tile
	stats Stats
	log   *zap.Logger

	// Reused projection buffers.
	outer  []geom.Point
	inners [][]geom.Point
	path   []geom.Point
}

// New builds a generator with an empty tile set. The projected center is
// snapped down to a tile-step multiple per axis so neighbouring runs with
// the same zoom produce aligned grids.
func New(opts Options) (*Generator, error) {
	if opts.Cols < 1 || opts.Rows < 1 {
		return nil, fmt.Errorf("invalid grid size %dx%d", opts.Cols, opts.Rows)
	}
	if opts.Zoom < 0 || opts.Zoom > 30 {
		return nil, fmt.Errorf("invalid zoom %d", opts.Zoom)
	}
	if opts.Matcher == nil {
		return nil, fmt.Errorf("no matcher configured")
	}
	if opts.Projection == nil {
		return nil, fmt.Errorf("no projection configured")
	}
	log := opts.Log
	if log == nil {
		log = logger.Get()
	}

	step := 1.0 / float64(int64(1)<<opts.Zoom)

	center := opts.Projection.Project(opts.Center.Lon, opts.Center.Lat)
	center.X -= math.Mod(center.X, step)
	center.Y -= math.Mod(center.Y, step)

	min := geom.Point{
		X: center.X - float64(opts.Cols)*step/2,
		Y: center.Y - float64(opts.Rows)*step/2,
	}

	g := &Generator{
		opts: opts,
		grid: grid.New(min, opts.Cols, opts.Rows, geom.Point{X: step, Y: step}),
		log:  log,
	}
	g.tiles = make([]*tile.Tile, 0, opts.Cols*opts.Rows)
	for y := 0; y < opts.Rows; y++ {
		for x := 0; x < opts.Cols; x++ {
			g.tiles = append(g.tiles, tile.New(g.grid.TileBox(x, y)))
		}
	}
	return g, nil
}

// Clone creates a fresh generator over the same parameters with its own
// empty tiles and clip buffers. The matcher and projection are shared;
// both are read-only after construction.
func (g *Generator) Clone() *Generator {
	clone, err := New(g.opts)
	if err != nil {
		// Options were already validated once.
		panic(err)
	}
	return clone
}

// Tiles returns the generator's tile set in row-major order.
func (g *Generator) Tiles() []*tile.Tile { return g.tiles }

// Grid returns the tile layout.
func (g *Generator) Grid() *grid.Grid { return g.grid }

// Stats returns the pass counters.
func (g *Generator) Stats() Stats { return g.stats }

// Run consumes the whole stream. Stream errors abort the pass.
func (g *Generator) Run(sc source.Scanner) error {
	for sc.Scan() {
		g.Handle(sc.Primitive())
	}
	return sc.Err()
}

// Handle dispatches one primitive. Primitives without tags are skipped
// before the matcher runs; they cannot match anything.
func (g *Generator) Handle(p source.Primitive) {
	switch p := p.(type) {
	case *source.Area:
		g.handleArea(p)
	case *source.Node:
		g.handleNode(p)
	case *source.Way:
		g.handleWay(p)
	}
}

func (g *Generator) handleArea(a *source.Area) {
	if len(a.Tags) == 0 {
		return
	}
	visual, ok := g.opts.Matcher.Area(a.Tags)
	if !ok {
		g.stats.Unmatched++
		return
	}

	g.outer = g.projectRing(g.outer[:0], a.Outer)
	if len(g.outer) < 3 {
		g.stats.Degenerate++
		g.log.Debug("Dropping degenerate area ring",
			zap.Int64("oid", a.ID), zap.Int("points", len(g.outer)))
		return
	}

	// Collect holes into reused buffers, keeping only usable rings.
	rings := 0
	for _, inner := range a.Inners {
		if rings == len(g.inners) {
			g.inners = append(g.inners, nil)
		}
		g.inners[rings] = g.projectRing(g.inners[rings][:0], inner)
		if len(g.inners[rings]) >= 3 {
			rings++
		}
	}
	polygon := g.outer
	if rings > 0 {
		polygon = geom.CombineRings(g.outer, g.inners[:rings])
	}

	g.stats.Areas++
	g.grid.ClipPolygon(polygon, func(index int, piece []geom.Point) {
		if len(piece) > 0 {
			g.tiles[index].AddArea(piece, visual, a.ID)
		}
	})
}

func (g *Generator) handleNode(n *source.Node) {
	if len(n.Tags) == 0 {
		return
	}
	visual, ok := g.opts.Matcher.Node(n.Tags)
	if !ok {
		g.stats.Unmatched++
		return
	}
	g.stats.Nodes++
	p := g.opts.Projection.Project(n.Coord.Lon, n.Coord.Lat)
	g.grid.ClipPoint(p, func(index int, p geom.Point) {
		g.tiles[index].AddNode(p, visual, n.ID)
	})
}

func (g *Generator) handleWay(w *source.Way) {
	if len(w.Tags) == 0 {
		return
	}
	// A closed way outlines something; its surface arrives separately as
	// an area primitive.
	if w.Closed {
		return
	}
	visual, ok := g.opts.Matcher.Way(w.Tags)
	if !ok {
		g.stats.Unmatched++
		return
	}

	g.path = g.projectRing(g.path[:0], w.Points)
	if len(g.path) < 2 {
		g.stats.Degenerate++
		g.log.Debug("Dropping degenerate way",
			zap.Int64("oid", w.ID), zap.Int("points", len(g.path)))
		return
	}

	g.stats.Ways++
	g.grid.ClipPath(g.path, func(index int, piece []geom.Point) {
		if len(piece) > 1 {
			g.tiles[index].AddWay(piece, visual, w.ID)
		}
	})
}

func (g *Generator) projectRing(dst []geom.Point, coords []source.Coord) []geom.Point {
	for _, c := range coords {
		dst = append(dst, g.opts.Projection.Project(c.Lon, c.Lat))
	}
	return dst
}

// merge folds a clone's tiles and counters into g.
func (g *Generator) merge(other *Generator) {
	for i, t := range other.tiles {
		g.tiles[i].Merge(t)
	}
	g.stats.Areas += other.stats.Areas
	g.stats.Nodes += other.stats.Nodes
	g.stats.Ways += other.stats.Ways
	g.stats.Unmatched += other.stats.Unmatched
	g.stats.Degenerate += other.stats.Degenerate
}
