// Package wkb serializes tile geometry as PostGIS extended WKB. Tiles only
// hold simple shapes: points, open paths and single-ring polygons (holes
// are spliced into the outer ring before clipping).
package wkb

import (
	"encoding/binary"
	"math"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
)

// WKB type constants (ISO SQL/MM specification)
const (
	wkbPoint      = 1
	wkbLineString = 2
	wkbPolygon    = 3

	// SRID flag for EWKB (PostGIS extended WKB)
	wkbSRIDFlag = 0x20000000
)

// SRID constants for the coordinate spaces tiles are generated in.
const (
	SRID4326   = 4326 // WGS84, identity projection
	SRIDPlanar = 0    // normalized tile space, no geographic SRID
)

// Encoder encodes tile geometry to little-endian EWKB, reusing one buffer
// across calls. The returned slices alias the buffer; copy them before the
// next Encode call.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates an encoder with a pre-allocated buffer.
func NewEncoder(initialSize int, srid int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, initialSize),
		srid: uint32(srid),
	}
}

// SRID returns the encoder's SRID.
func (e *Encoder) SRID() int {
	return int(e.srid)
}

func (e *Encoder) reset() {
	e.buf = e.buf[:0]
}

// EncodePoint encodes a single point.
func (e *Encoder) EncodePoint(p geom.Point) []byte {
	e.reset()
	e.header(wkbPoint)
	e.appendPoint(p)
	return e.buf
}

// EncodePath encodes an open polyline.
func (e *Encoder) EncodePath(points []geom.Point) []byte {
	e.reset()
	e.header(wkbLineString)
	e.appendUint32(uint32(len(points)))
	for _, p := range points {
		e.appendPoint(p)
	}
	return e.buf
}

// EncodePolygon encodes a single-ring polygon. The ring is closed on the
// wire: the first point is repeated at the end when the input does not
// already do so.
func (e *Encoder) EncodePolygon(ring []geom.Point) []byte {
	e.reset()
	if len(ring) == 0 {
		return nil
	}
	closed := ring[0] == ring[len(ring)-1]
	n := len(ring)
	if !closed {
		n++
	}

	e.header(wkbPolygon)
	e.appendUint32(1) // ring count
	e.appendUint32(uint32(n))
	for _, p := range ring {
		e.appendPoint(p)
	}
	if !closed {
		e.appendPoint(ring[0])
	}
	return e.buf
}

// header writes byte order, type with SRID flag and the SRID.
func (e *Encoder) header(geomType uint32) {
	e.buf = append(e.buf, 0x01) // little-endian
	e.appendUint32(geomType | wkbSRIDFlag)
	e.appendUint32(e.srid)
}

func (e *Encoder) appendPoint(p geom.Point) {
	e.appendFloat64(p.X)
	e.appendFloat64(p.Y)
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}
