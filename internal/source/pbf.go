package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/nodeindex"
)

// PBFOptions tunes the PBF scanner.
type PBFOptions struct {
	// Workers for the decoder; defaults to the CPU count.
	Workers int

	// IndexPath is where the node coordinate index is written during the
	// first pass. Defaults to <input>.nodes.
	IndexPath string
}

// PBF streams primitives out of an OSM PBF file in two passes. The first
// pass, run eagerly by OpenPBF, records every node's coordinates in a
// memory-mapped index. The second pass resolves way geometry against the
// index and yields primitives one Scan at a time.
//
// Closed ways whose tags imply an area surface are emitted as areas with
// an empty hole list.
// TODO: assemble multipolygon relations into areas with holes; relations
// are currently counted and skipped.
type PBF struct {
	file      *os.File
	index     *nodeindex.Index
	indexPath string
	scanner   *osmpbf.Scanner
	cancel    context.CancelFunc
	log       *zap.Logger

	cur Primitive
	err error

	relations   int64
	skippedWays int64
	coords      []Coord
}

// OpenPBF opens the file, builds the node index (pass 1) and positions the
// primitive stream at the start of pass 2.
func OpenPBF(ctx context.Context, path string, opts PBFOptions) (*PBF, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	indexPath := opts.IndexPath
	if indexPath == "" {
		indexPath = path + ".nodes"
	}
	log := logger.Get()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	log.Info("Pass 1: indexing node coordinates", zap.String("file", path))
	start := time.Now()
	count, err := buildNodeIndex(ctx, f, indexPath, workers)
	if err != nil {
		f.Close()
		return nil, err
	}
	log.Info("Pass 1 complete",
		zap.Int64("nodes", count),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	index, err := nodeindex.Open(indexPath)
	if err != nil {
		f.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	return &PBF{
		file:      f,
		index:     index,
		indexPath: indexPath,
		scanner:   osmpbf.New(ctx, f, workers),
		cancel:    cancel,
		log:       log,
	}, nil
}

func buildNodeIndex(ctx context.Context, f *os.File, path string, workers int) (int64, error) {
	idx, err := nodeindex.Create(path)
	if err != nil {
		return 0, err
	}
	defer idx.Close()

	scanner := osmpbf.New(ctx, f, workers)
	defer scanner.Close()

	var count int64
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			idx.Put(int64(o.ID), o.Lon, o.Lat)
			count++
		case *osm.Way:
			// Nodes precede ways in a sorted PBF; stop at the first way.
			return count, idx.Flush()
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return 0, err
	}
	return count, idx.Flush()
}

// Scan advances to the next primitive. Untagged nodes are dropped here,
// relations are counted and skipped.
func (p *PBF) Scan() bool {
	if p.err != nil {
		return false
	}
	for p.scanner.Scan() {
		switch o := p.scanner.Object().(type) {
		case *osm.Node:
			if len(o.Tags) == 0 {
				continue
			}
			p.cur = &Node{
				ID:    int64(o.ID),
				Tags:  o.Tags,
				Coord: Coord{Lon: o.Lon, Lat: o.Lat},
			}
			return true
		case *osm.Way:
			if prim := p.convertWay(o); prim != nil {
				p.cur = prim
				return true
			}
		case *osm.Relation:
			p.relations++
		}
	}
	if err := p.scanner.Err(); err != nil && err != io.EOF {
		p.err = fmt.Errorf("pbf stream: %w", err)
	}
	return false
}

// convertWay resolves the way's node coordinates. Ways referencing nodes
// outside the index are dropped; real extracts routinely clip ways at the
// extract boundary.
func (p *PBF) convertWay(w *osm.Way) Primitive {
	if len(w.Nodes) < 2 {
		return nil
	}
	p.coords = p.coords[:0]
	for _, ref := range w.Nodes {
		lon, lat, ok := p.index.Get(int64(ref.ID))
		if !ok {
			p.skippedWays++
			if p.skippedWays%100_000 == 1 {
				p.log.Debug("Way references unindexed node",
					zap.Int64("way", int64(w.ID)),
					zap.Int64("node", int64(ref.ID)),
					zap.Int64("skipped", p.skippedWays))
			}
			return nil
		}
		p.coords = append(p.coords, Coord{Lon: lon, Lat: lat})
	}
	points := append([]Coord(nil), p.coords...)

	closed := w.Nodes[0].ID == w.Nodes[len(w.Nodes)-1].ID
	if closed && isAreaSurface(w.Tags) {
		return &Area{ID: int64(w.ID), Tags: w.Tags, Outer: points}
	}
	return &Way{ID: int64(w.ID), Tags: w.Tags, Points: points, Closed: closed}
}

// Primitive returns the record produced by the last successful Scan.
func (p *PBF) Primitive() Primitive { return p.cur }

// Err returns the first fatal stream error.
func (p *PBF) Err() error { return p.err }

// Relations reports how many relations were skipped so far.
func (p *PBF) Relations() int64 { return p.relations }

// Close releases the scanner, the node index and its backing file.
func (p *PBF) Close() error {
	p.cancel()
	p.scanner.Close()
	err := p.index.Close()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	os.Remove(p.indexPath)
	return err
}

// isAreaSurface decides whether a closed way outlines a surface or is a
// looped line. An explicit area tag wins; otherwise common surface keys
// imply a polygon while transport keys stay lines (roundabouts, closed
// fences).
func isAreaSurface(tags osm.Tags) bool {
	for _, tag := range tags {
		if tag.Key == "area" {
			return tag.Value == "yes"
		}
	}
	surface := map[string]bool{
		"building": true,
		"landuse":  true,
		"natural":  true,
		"leisure":  true,
		"amenity":  true,
		"shop":     true,
		"tourism":  true,
		"man_made": true,
		"waterway": false,
		"highway":  false,
		"barrier":  false,
		"railway":  false,
	}
	for _, tag := range tags {
		if isArea, known := surface[tag.Key]; known {
			return isArea
		}
	}
	return false
}
