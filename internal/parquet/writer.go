// Package parquet writes generated tiles as columnar fragment tables, one
// row per clipped feature fragment with its geometry as EWKB.
package parquet

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osm2tiles-go/internal/geom"
	"github.com/wegman-software/osm2tiles-go/internal/tile"
	"github.com/wegman-software/osm2tiles-go/internal/wkb"
)

// Fragment kinds stored in the kind column.
const (
	KindArea = "A"
	KindNode = "N"
	KindWay  = "W"
)

// TileWriter streams tile fragments into one Parquet file, batching rows
// and compressing row groups with zstd.
type TileWriter struct {
	file    *os.File
	writer  *pqarrow.FileWriter
	builder *array.RecordBuilder
	encoder *wkb.Encoder

	batchSize int
	count     int
}

// NewTileWriter creates a fragment writer at path.
func NewTileWriter(path string, batchSize int) (*TileWriter, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "tile_x", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "tile_y", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "visual", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "oid", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
	}, nil)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &TileWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		encoder:   wkb.NewEncoder(1024, wkb.SRIDPlanar),
		batchSize: batchSize,
	}, nil
}

// WriteTile appends every fragment of the tile at grid position (x, y).
func (w *TileWriter) WriteTile(x, y int, t *tile.Tile) error {
	var err error
	t.EachArea(func(s tile.Span, points []geom.Point) {
		if err != nil {
			return
		}
		err = w.appendRow(x, y, KindArea, s.Visual, s.OID, w.encoder.EncodePolygon(points))
	})
	if err != nil {
		return err
	}
	t.EachNode(func(n tile.Node, p geom.Point) {
		if err != nil {
			return
		}
		err = w.appendRow(x, y, KindNode, n.Visual, n.OID, w.encoder.EncodePoint(p))
	})
	if err != nil {
		return err
	}
	t.EachWay(func(s tile.Span, points []geom.Point) {
		if err != nil {
			return
		}
		err = w.appendRow(x, y, KindWay, s.Visual, s.OID, w.encoder.EncodePath(points))
	})
	return err
}

func (w *TileWriter) appendRow(x, y int, kind string, visual uint32, oid int64, ewkb []byte) error {
	w.builder.Field(0).(*array.Int32Builder).Append(int32(x))
	w.builder.Field(1).(*array.Int32Builder).Append(int32(y))
	w.builder.Field(2).(*array.StringBuilder).Append(kind)
	w.builder.Field(3).(*array.Int64Builder).Append(int64(visual))
	w.builder.Field(4).(*array.Int64Builder).Append(oid)
	w.builder.Field(5).(*array.BinaryBuilder).Append(ewkb)

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *TileWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	record := w.builder.NewRecord()
	defer record.Release()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write fragment batch: %w", err)
	}
	w.count = 0
	return nil
}

// Close flushes the remaining rows and finalizes the file.
func (w *TileWriter) Close() error {
	if err := w.flush(); err != nil {
		w.writer.Close()
		w.file.Close()
		return err
	}
	w.builder.Release()
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
