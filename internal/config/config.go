// ABOUTME: Configuration loading and parsing for persona-studio
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config represents the complete persona-studio configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Replies RepliesConfig `yaml:"replies" toml:"replies"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
	Seed    SeedConfig    `yaml:"seed" toml:"seed"`
	Notices NoticesConfig `yaml:"notices" toml:"notices"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// StoreConfig selects the state backend. Both drivers keep state in process
// memory only.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
}

// RepliesConfig holds reply timing configuration
type RepliesConfig struct {
	DelayMin       time.Duration `yaml:"-" toml:"-"`
	DelayMax       time.Duration `yaml:"-" toml:"-"`
	GeneratorDelay time.Duration `yaml:"-" toml:"-"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	DelayMinRaw       string `yaml:"delay_min" toml:"delay_min"`
	DelayMaxRaw       string `yaml:"delay_max" toml:"delay_max"`
	GeneratorDelayRaw string `yaml:"generator_delay" toml:"generator_delay"`
	DedupeTTLRaw      string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// SeedConfig controls the sample agents created at startup
type SeedConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// NoticesConfig controls the in-memory notice feed
type NoticesConfig struct {
	Keep int `yaml:"keep" toml:"keep"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Server:  ServerConfig{HTTPAddr: "127.0.0.1:8080"},
		Store:   StoreConfig{Driver: DriverMemory},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Seed:    SeedConfig{Enabled: true},
		Notices: NoticesConfig{Keep: 50},
		Replies: RepliesConfig{
			DelayMinRaw:  "1s",
			DelayMaxRaw:  "3s",
			DedupeTTLRaw: "5m",
		},
	}
	// The defaults are known-good
	if err := parseDurations(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath picks the config file to load: the explicit path if given,
// then $PERSONA_STUDIO_CONFIG, then ./persona-studio.yaml or .toml, then
// ~/.config/persona-studio/config.yaml or .toml. Returns "" when none exists.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("PERSONA_STUDIO_CONFIG"); env != "" {
		return env
	}

	candidates := []string{"persona-studio.yaml", "persona-studio.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "persona-studio")
		candidates = append(candidates,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Store.Driver)
	}

	if c.Replies.DelayMin < 0 || c.Replies.DelayMax < 0 || c.Replies.GeneratorDelay < 0 || c.Replies.DedupeTTL < 0 {
		return fmt.Errorf("replies durations must not be negative")
	}
	if c.Replies.DelayMax < c.Replies.DelayMin {
		return fmt.Errorf("replies.delay_max (%s) must not be less than replies.delay_min (%s)",
			c.Replies.DelayMax, c.Replies.DelayMin)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / when metrics are enabled")
	}

	if c.Notices.Keep < 0 {
		return fmt.Errorf("notices.keep must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"delay_min", cfg.Replies.DelayMinRaw, &cfg.Replies.DelayMin},
		{"delay_max", cfg.Replies.DelayMaxRaw, &cfg.Replies.DelayMax},
		{"generator_delay", cfg.Replies.GeneratorDelayRaw, &cfg.Replies.GeneratorDelay},
		{"dedupe_ttl", cfg.Replies.DedupeTTLRaw, &cfg.Replies.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			*f.dst = 0
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
