package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
	"github.com/wegman-software/osm2tiles-go/internal/luatag"
	"github.com/wegman-software/osm2tiles-go/internal/match"
	"github.com/wegman-software/osm2tiles-go/internal/metrics"
	"github.com/wegman-software/osm2tiles-go/internal/parquet"
	"github.com/wegman-software/osm2tiles-go/internal/proj"
	"github.com/wegman-software/osm2tiles-go/internal/rules"
	"github.com/wegman-software/osm2tiles-go/internal/source"
	"github.com/wegman-software/osm2tiles-go/internal/tile"
	"github.com/wegman-software/osm2tiles-go/internal/world"
)

var (
	rulesFile     string
	centerLon     float64
	centerLat     float64
	gridCols      int
	gridRows      int
	gridZoom      int
	strategyStr   string
	projectionStr string
	jsonFile      string
	parquetFile   string
	skipEmpty     bool
	batchSize     int
	luaHookFile   string
	indexPath     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <input.osm.pbf>",
	Short: "Generate a tile grid from an OSM extract",
	Long: `Generate streams an OSM extract through the rule matcher and clips
every matched feature into a grid of tiles:

  1. Pass 1: stream nodes into a memory-mapped coordinate index
  2. Pass 2: stream primitives, match tags, project, clip, collect tiles

The grid is centered on --center-lon/--center-lat, sized --cols x --rows,
with a tile edge of 1/2^zoom in projected space.`,
	Args: cobra.ExactArgs(1),
	Run:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Rule file with [Areas], [Nodes] and [Ways] blocks")
	generateCmd.Flags().Float64Var(&centerLon, "center-lon", 0, "Grid center longitude")
	generateCmd.Flags().Float64Var(&centerLat, "center-lat", 0, "Grid center latitude")
	generateCmd.Flags().IntVar(&gridCols, "cols", 64, "Grid width in tiles")
	generateCmd.Flags().IntVar(&gridRows, "rows", 64, "Grid height in tiles")
	generateCmd.Flags().IntVarP(&gridZoom, "zoom", "z", 15, "Zoom level; tile edge is 1/2^zoom")
	generateCmd.Flags().StringVarP(&strategyStr, "strategy", "s", "trie", "Matcher strategy: naive, interned or trie")
	generateCmd.Flags().StringVarP(&projectionStr, "projection", "E", "web-mercator", "Projection: identity or web-mercator")
	generateCmd.Flags().StringVar(&jsonFile, "json", "tiles.json", "JSON tile output file name, empty to disable")
	generateCmd.Flags().StringVar(&parquetFile, "parquet", "", "Parquet fragment output file name, empty to disable")
	generateCmd.Flags().BoolVar(&skipEmpty, "skip-empty", true, "Omit empty tiles from JSON output")
	generateCmd.Flags().IntVar(&batchSize, "batch-size", 4096, "Parquet row group batch size")
	generateCmd.Flags().StringVar(&luaHookFile, "lua-hook", "", "Lua script rewriting tags before matching")
	generateCmd.Flags().StringVar(&indexPath, "node-index", "", "Node index file path (default: alongside the input)")
}

func runGenerate(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	applyGenerateFlags(cmd)

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}
	log := logger.Get()

	ruleText, err := os.ReadFile(cfg.RulesFile)
	if err != nil {
		exitWithError("failed to read rule file", err)
	}
	ruleSet, err := rules.Parse(string(ruleText))
	if err != nil {
		exitWithError("failed to parse rule file", err)
	}

	matcher, err := match.New(cfg.Strategy, ruleSet)
	if err != nil {
		exitWithError("failed to build matcher", err)
	}
	projection, err := proj.Parse(cfg.Projection)
	if err != nil {
		exitWithError("invalid projection", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsInterval.Std() > 0 {
		collector := metrics.NewCollector(cfg.MetricsInterval.Std(), log)
		go collector.Start(ctx)
	}

	totalStart := time.Now()
	log.Info("Starting tile generation",
		zap.String("input", cfg.InputFile),
		zap.String("rules", cfg.RulesFile),
		zap.String("strategy", cfg.Strategy),
		zap.String("projection", projection.Name()),
		zap.Int("cols", cfg.Cols),
		zap.Int("rows", cfg.Rows),
		zap.Int("zoom", cfg.Zoom),
		zap.Int("workers", cfg.Workers),
	)

	pbf, err := source.OpenPBF(ctx, cfg.InputFile, source.PBFOptions{
		Workers:   cfg.Workers,
		IndexPath: indexPath,
	})
	if err != nil {
		exitWithError("failed to open input", err)
	}

	var sc source.Scanner = pbf
	if luaHookFile != "" {
		hook, err := luatag.NewHookFromFile(luaHookFile)
		if err != nil {
			exitWithError("failed to load Lua hook", err)
		}
		sc = luatag.NewFilter(pbf, hook)
	}
	defer sc.Close()

	gen, err := world.New(world.Options{
		Center:     source.Coord{Lon: cfg.CenterLon, Lat: cfg.CenterLat},
		Cols:       cfg.Cols,
		Rows:       cfg.Rows,
		Zoom:       cfg.Zoom,
		Matcher:    matcher,
		Projection: projection,
		Log:        log,
	})
	if err != nil {
		exitWithError("failed to create generator", err)
	}

	if err := gen.RunParallel(ctx, sc, cfg.Workers); err != nil {
		exitWithError("generation failed", err)
	}

	stats := gen.Stats()
	log.Info("Generation pass complete",
		zap.Duration("elapsed", time.Since(totalStart).Round(time.Second)),
		zap.Int64("areas", stats.Areas),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("ways", stats.Ways),
		zap.Int64("unmatched", stats.Unmatched),
		zap.Int64("degenerate", stats.Degenerate),
		zap.Int64("relations_skipped", pbf.Relations()),
	)

	if err := writeOutputs(gen); err != nil {
		exitWithError("failed to write output", err)
	}

	log.Info("Done", zap.Duration("total_time", time.Since(totalStart).Round(time.Second)))
}

// applyGenerateFlags merges command-line flags over the profile values.
func applyGenerateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("rules") || cfg.RulesFile == "" {
		cfg.RulesFile = rulesFile
	}
	if flags.Changed("center-lon") {
		cfg.CenterLon = centerLon
	}
	if flags.Changed("center-lat") {
		cfg.CenterLat = centerLat
	}
	if flags.Changed("cols") {
		cfg.Cols = gridCols
	}
	if flags.Changed("rows") {
		cfg.Rows = gridRows
	}
	if flags.Changed("zoom") {
		cfg.Zoom = gridZoom
	}
	if flags.Changed("strategy") {
		cfg.Strategy = strategyStr
	}
	if flags.Changed("projection") {
		cfg.Projection = projectionStr
	}
	if flags.Changed("json") || cfg.JSONFile == "" {
		cfg.JSONFile = jsonFile
	}
	if flags.Changed("parquet") {
		cfg.ParquetFile = parquetFile
	}
	if flags.Changed("skip-empty") {
		cfg.SkipEmpty = skipEmpty
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = batchSize
	}
}

// writeOutputs writes the finished tile set as JSON and Parquet.
func writeOutputs(gen *world.Generator) error {
	log := logger.Get()
	tiles := gen.Tiles()
	cols := gen.Grid().Cols()

	if cfg.JSONFile == "" && cfg.ParquetFile == "" {
		log.Warn("No output requested, discarding tiles")
		return nil
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.JSONFile != "" {
		path := filepath.Join(cfg.OutputDir, cfg.JSONFile)
		out := tiles
		if cfg.SkipEmpty {
			out = make([]*tile.Tile, 0, len(tiles))
			for _, t := range tiles {
				if !t.Empty() {
					out = append(out, t)
				}
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := tile.WriteJSON(f, out); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Info("JSON tiles written", zap.String("path", path), zap.Int("tiles", len(out)))
	}

	if cfg.ParquetFile != "" {
		path := filepath.Join(cfg.OutputDir, cfg.ParquetFile)
		w, err := parquet.NewTileWriter(path, cfg.BatchSize)
		if err != nil {
			return err
		}
		rows := int64(0)
		for i, t := range tiles {
			if t.Empty() {
				continue
			}
			if err := w.WriteTile(i%cols, i/cols, t); err != nil {
				w.Close()
				return err
			}
			rows += int64(len(t.Areas) + len(t.Nodes) + len(t.Ways))
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.Info("Parquet fragments written", zap.String("path", path), zap.Int64("rows", rows))
	}
	return nil
}
