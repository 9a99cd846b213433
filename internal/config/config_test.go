package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.InputFile = "map.osm.pbf"
	cfg.RulesFile = "rules.conf"
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.InputFile = "" }},
		{"missing rules", func(c *Config) { c.RulesFile = "" }},
		{"zero cols", func(c *Config) { c.Cols = 0 }},
		{"negative zoom", func(c *Config) { c.Zoom = -1 }},
		{"huge zoom", func(c *Config) { c.Zoom = 31 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"bad strategy", func(c *Config) { c.Strategy = "magic" }},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.InputFile = "map.osm.pbf"
		cfg.RulesFile = "rules.conf"
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", tt.name)
		}
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := `
input: berlin.osm.pbf
rules: city.rules
center_lon: 13.4
center_lat: 52.5
cols: 16
rows: 8
zoom: 14
strategy: interned
metrics_interval: 5s
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.InputFile != "berlin.osm.pbf" || cfg.Cols != 16 || cfg.Rows != 8 || cfg.Zoom != 14 {
		t.Errorf("profile values not applied: %+v", cfg)
	}
	if cfg.Strategy != "interned" {
		t.Errorf("strategy = %q", cfg.Strategy)
	}
	if cfg.MetricsInterval.Std() != 5*time.Second {
		t.Errorf("metrics interval = %v", cfg.MetricsInterval)
	}
	// Untouched keys keep their defaults.
	if cfg.DBPort != 5432 || cfg.BatchSize != 4096 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded profile invalid: %v", err)
	}
}

func TestConnectionString(t *testing.T) {
	cfg := Default()
	cfg.DBPassword = "secret"
	s := cfg.ConnectionString()
	for _, want := range []string{"host=localhost", "port=5432", "password=secret"} {
		if !strings.Contains(s, want) {
			t.Errorf("connection string %q missing %q", s, want)
		}
	}
}
