package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by the CLI.
const FileName = "densify.yaml"

// Config represents the top-level densify.yaml configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Git     GitConfig     `yaml:"git"`
}

// EngineConfig tunes densification.
type EngineConfig struct {
	Seed              int64   `yaml:"seed"` // 0 draws a fresh seed per run
	Tolerance         float64 `yaml:"tolerance"`
	ConflictTolerance float64 `yaml:"conflict_tolerance"`
	Workers           int     `yaml:"workers"` // 0 uses GOMAXPROCS
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Precision int32  `yaml:"precision"`
}

// LogConfig selects the log writer.
type LogConfig struct {
	Format string `yaml:"format"` // "human" or "json"
	Level  string `yaml:"level,omitempty"`
}

// MetricsConfig names a Prometheus textfile to write after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// GitConfig controls committing run outputs.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a densify.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, but a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot use.
func (c *Config) Validate() error {
	switch {
	case c.Engine.Tolerance < 0:
		return fmt.Errorf("engine.tolerance must not be negative")
	case c.Engine.ConflictTolerance < 0:
		return fmt.Errorf("engine.conflict_tolerance must not be negative")
	case c.Engine.Workers < 0:
		return fmt.Errorf("engine.workers must not be negative")
	case c.Output.Precision < 0 || c.Output.Precision > 10:
		return fmt.Errorf("output.precision %d outside 0..10", c.Output.Precision)
	case c.Log.Format != "human" && c.Log.Format != "json":
		return fmt.Errorf("log.format %q must be human or json", c.Log.Format)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Tolerance:         1e-6,
			ConflictTolerance: 1e-6,
		},
		Output: OutputConfig{
			Dir:       "out",
			Precision: 2,
		},
		Log: LogConfig{
			Format: "human",
		},
		Git: GitConfig{
			AuthorName:  "Densify",
			AuthorEmail: "densify@localhost",
		},
	}
}
