package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a tile generation run. Flags populate it
// directly; LoadFile merges a YAML profile over the defaults first so
// repeated runs can share one checked-in profile.
type Config struct {
	// Input settings
	InputFile string `yaml:"input"`
	RulesFile string `yaml:"rules"`

	// Grid settings
	CenterLon float64 `yaml:"center_lon"`
	CenterLat float64 `yaml:"center_lat"`
	Cols      int     `yaml:"cols"`
	Rows      int     `yaml:"rows"`
	Zoom      int     `yaml:"zoom"`

	// Matcher strategy: naive, interned or trie
	Strategy string `yaml:"strategy"`

	// Projection: identity or web-mercator
	Projection string `yaml:"projection"`

	// Output settings
	OutputDir   string `yaml:"output_dir"`
	JSONFile    string `yaml:"json_file"`
	ParquetFile string `yaml:"parquet_file"`
	BatchSize   int    `yaml:"batch_size"`
	SkipEmpty   bool   `yaml:"skip_empty"`

	// Database settings for the PostGIS loader
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBSchema   string `yaml:"db_schema"`

	// Processing settings
	Workers int `yaml:"workers"`

	// Logging and metrics
	Verbose         bool     `yaml:"verbose"`
	LogFile         string   `yaml:"log_file"`
	MetricsInterval Duration `yaml:"metrics_interval"`
}

// Duration wraps time.Duration so profiles can write "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a configuration with sensible defaults: a 64x64 grid at
// zoom 15 around the null island corner, trie matching, web mercator.
func Default() *Config {
	return &Config{
		Cols:            64,
		Rows:            64,
		Zoom:            15,
		Strategy:        "trie",
		Projection:      "web-mercator",
		OutputDir:       "./tiles",
		BatchSize:       4096,
		SkipEmpty:       true,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "tiles",
		DBUser:          "postgres",
		DBSchema:        "public",
		Workers:         runtime.NumCPU(),
		MetricsInterval: Duration(30 * time.Second),
	}
}

// LoadFile reads a YAML profile over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string for the loader.
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks the generation settings.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.RulesFile == "" {
		return fmt.Errorf("rules file is required")
	}
	if c.Cols < 1 || c.Rows < 1 {
		return fmt.Errorf("grid size must be at least 1x1, got %dx%d", c.Cols, c.Rows)
	}
	if c.Zoom < 0 || c.Zoom > 30 {
		return fmt.Errorf("zoom must be between 0 and 30, got %d", c.Zoom)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	switch c.Strategy {
	case "naive", "interned", "trie":
	default:
		return fmt.Errorf("unknown matcher strategy %q", c.Strategy)
	}
	return nil
}
