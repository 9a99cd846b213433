package cmd

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2tiles-go/internal/config"
	"github.com/wegman-software/osm2tiles-go/internal/logger"
)

var (
	cfg             = config.Default()
	profilePath     string
	verbose         bool
	logFile         string
	metricsInterval time.Duration
	workers         int
	outputDir       string

	dbHost     string
	dbPort     int
	dbName     string
	dbUser     string
	dbPassword string
	dbSchema   string
)

var rootCmd = &cobra.Command{
	Use:   "osm2tiles",
	Short: "Tile generator for OSM map data",
	Long: `osm2tiles streams an OSM extract through a tag-matching rule set and
clips every matched feature into a fixed grid of map tiles.

Features:
  - Boolean tag rules with naive, interned or trie-backed matching
  - Memory-mapped node index for O(1) coordinate lookups
  - Parallel generation with per-worker tile shards
  - JSON and Parquet tile output, bulk loading into PostGIS
  - Lua hooks for tag rewriting before matching`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if profilePath != "" {
			loaded, err := config.LoadFile(profilePath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		// Flags set on the command line win over the profile.
		flags := cmd.Flags()
		if flags.Changed("workers") {
			cfg.Workers = workers
		}
		if flags.Changed("output-dir") {
			cfg.OutputDir = outputDir
		}
		if flags.Changed("verbose") {
			cfg.Verbose = verbose
		}
		if flags.Changed("log-file") {
			cfg.LogFile = logFile
		}
		if flags.Changed("metrics-interval") {
			cfg.MetricsInterval = config.Duration(metricsInterval)
		}
		if flags.Changed("db-host") {
			cfg.DBHost = dbHost
		}
		if flags.Changed("db-port") {
			cfg.DBPort = dbPort
		}
		if flags.Changed("db-name") {
			cfg.DBName = dbName
		}
		if flags.Changed("db-user") {
			cfg.DBUser = dbUser
		}
		if flags.Changed("db-password") {
			cfg.DBPassword = dbPassword
		}
		if flags.Changed("db-schema") {
			cfg.DBSchema = dbSchema
		}

		if cfg.LogFile != "" {
			logger.InitWithFile(cfg.Verbose, cfg.LogFile)
		} else {
			logger.Init(cfg.Verbose)
		}
		return nil
	},
}

func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "YAML profile with run settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g., 10s, 1m)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", cfg.Workers, "Number of parallel workers")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", cfg.OutputDir, "Directory for tile output files")

	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&dbPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&dbName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&dbUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&dbPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&dbSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
