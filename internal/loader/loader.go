// Package loader bulk-loads generated tile fragments from Parquet into
// PostGIS. Fragments land in one table keyed by grid position, so a map
// renderer can fetch a tile with a single indexed lookup.
package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2tiles-go/internal/config"
	"github.com/wegman-software/osm2tiles-go/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stats holds loader statistics.
type Stats struct {
	RowsLoaded int64
}

// Loader loads fragment Parquet files into PostgreSQL.
type Loader struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	dropExisting  bool
	createIndexes bool
}

// NewLoader connects to PostgreSQL and returns a loader.
func NewLoader(cfg *config.Config, dropExisting, createIndexes bool) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Workers)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Loader{
		cfg:           cfg,
		pool:          pool,
		dropExisting:  dropExisting,
		createIndexes: createIndexes,
	}, nil
}

// Close closes the connection pool.
func (l *Loader) Close() error {
	l.pool.Close()
	return nil
}

// Run loads the fragment file into the tile_fragments table.
func (l *Loader) Run(ctx context.Context, parquetPath string) (*Stats, error) {
	log := logger.Get()
	stats := &Stats{}

	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return nil, fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if l.cfg.DBSchema != "public" {
		if _, err := l.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", l.cfg.DBSchema)); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	table := fmt.Sprintf("%s.tile_fragments", l.cfg.DBSchema)

	log.Info("Loading fragments", zap.String("table", table), zap.String("source", parquetPath))
	count, err := l.loadTable(ctx, table, parquetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	stats.RowsLoaded = count
	log.Info("Fragments loaded", zap.Int64("rows", count))

	if l.createIndexes {
		if err := l.indexTable(ctx, table); err != nil {
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		log.Info("Indexes created")
	}
	return stats, nil
}

// loadTable creates the target table and bulk-copies one Parquet file into
// it. The table is UNLOGGED during the copy and set back afterwards.
func (l *Loader) loadTable(ctx context.Context, table, parquetPath string) (int64, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if l.dropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return 0, fmt.Errorf("failed to drop table: %w", err)
		}
	}

	createSQL := fmt.Sprintf(`
		CREATE UNLOGGED TABLE IF NOT EXISTS %s (
			tile_x INTEGER NOT NULL,
			tile_y INTEGER NOT NULL,
			kind CHAR(1) NOT NULL,
			visual INTEGER NOT NULL,
			oid BIGINT NOT NULL,
			geom GEOMETRY NOT NULL
		)
	`, table)
	if _, err := conn.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}

	if !l.dropExisting {
		conn.Exec(ctx, fmt.Sprintf("TRUNCATE %s", table))
	}

	count, err := l.copyFromParquet(ctx, conn.Conn(), table, parquetPath)
	if err != nil {
		return 0, err
	}

	conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s SET LOGGED", table))
	return count, nil
}

// indexTable builds the tile lookup and spatial indexes.
func (l *Loader) indexTable(ctx context.Context, table string) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	conn.Exec(ctx, "SET maintenance_work_mem = '2GB'")

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS tile_fragments_xy_idx ON %s (tile_x, tile_y)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS tile_fragments_geom_idx ON %s USING GIST (geom)", table),
	}
	for _, stmt := range indexes {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("ANALYZE %s", table)); err != nil {
		return err
	}
	return nil
}

// copyFromParquet streams the fragment file into the target table through
// a temp table, converting EWKB geometry server-side.
func (l *Loader) copyFromParquet(ctx context.Context, conn *pgx.Conn, table, parquetPath string) (int64, error) {
	f, err := os.Open(parquetPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read table: %w", err)
	}
	defer tbl.Release()

	if tbl.NumRows() == 0 {
		return 0, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tempTableSQL := `
		CREATE TEMP TABLE fragments_load_tmp (
			tile_x INTEGER,
			tile_y INTEGER,
			kind CHAR(1),
			visual INTEGER,
			oid BIGINT,
			geom_wkb BYTEA
		) ON COMMIT DROP
	`
	if _, err := tx.Exec(ctx, tempTableSQL); err != nil {
		return 0, fmt.Errorf("failed to create temp table: %w", err)
	}

	rowChan := make(chan []interface{}, 10000)
	go func() {
		defer close(rowChan)

		xCol := tbl.Column(0).Data()
		yCol := tbl.Column(1).Data()
		kindCol := tbl.Column(2).Data()
		visualCol := tbl.Column(3).Data()
		oidCol := tbl.Column(4).Data()
		geomCol := tbl.Column(5).Data()

		for chunkIdx := range xCol.Chunks() {
			xChunk := xCol.Chunk(chunkIdx).(*array.Int32)
			yChunk := yCol.Chunk(chunkIdx).(*array.Int32)
			kindChunk := kindCol.Chunk(chunkIdx).(*array.String)
			visualChunk := visualCol.Chunk(chunkIdx).(*array.Int64)
			oidChunk := oidCol.Chunk(chunkIdx).(*array.Int64)
			geomChunk := geomCol.Chunk(chunkIdx).(*array.Binary)

			for i := 0; i < xChunk.Len(); i++ {
				rowChan <- []interface{}{
					xChunk.Value(i),
					yChunk.Value(i),
					kindChunk.Value(i),
					visualChunk.Value(i),
					oidChunk.Value(i),
					geomChunk.Value(i),
				}
			}
		}
	}()

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"fragments_load_tmp"},
		[]string{"tile_x", "tile_y", "kind", "visual", "oid", "geom_wkb"},
		&rowSource{rows: rowChan},
	)
	if err != nil {
		return 0, fmt.Errorf("COPY failed: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (tile_x, tile_y, kind, visual, oid, geom)
		SELECT tile_x, tile_y, kind, visual, oid, ST_GeomFromWKB(geom_wkb)
		FROM fragments_load_tmp
	`, table)
	if _, err := tx.Exec(ctx, insertSQL); err != nil {
		return 0, fmt.Errorf("failed to insert from temp table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return copyCount, nil
}

// rowSource implements pgx.CopyFromSource over a channel.
type rowSource struct {
	rows    <-chan []interface{}
	current []interface{}
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	return true
}

func (r *rowSource) Values() ([]interface{}, error) { return r.current, nil }

func (r *rowSource) Err() error { return nil }
