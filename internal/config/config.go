// Package config loads knolsched settings from an optional YAML file,
// KNOLSCHED_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides, e.g. KNOLSCHED_DATABASE.
const EnvPrefix = "KNOLSCHED_"

// Config holds every runtime setting.
type Config struct {
	Database string `koanf:"database" validate:"required"`
	ReposDir string `koanf:"repos_dir" validate:"required"`

	Group       string  `koanf:"group"`
	DueLimit    int     `koanf:"due_limit" validate:"gte=0"`
	DueOnly     bool    `koanf:"due_only"`
	LongHorizon bool    `koanf:"long_horizon"`
	InitialEase float64 `koanf:"initial_ease" validate:"gte=1.3"`
	Seed        int64   `koanf:"seed"`

	Listen string `koanf:"listen" validate:"required,hostname_port"`

	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`
}

// RegisterFlags adds every setting to fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("database", "knolsched.db", "Path to the SQLite database file")
	fs.String("repos-dir", "repos", "Directory for cloned git sources")
	fs.String("group", "", "Only study cards from this group (project/topic)")
	fs.Int("due-limit", 0, "Maximum number of due cards to consider (0 = no limit)")
	fs.Bool("due-only", false, "Only select cards that are due on the long-horizon schedule")
	fs.Bool("long-horizon", true, "Track ease-factor/interval scheduling across sessions")
	fs.Float64("initial-ease", 2.5, "Starting ease factor for newly tracked cards")
	fs.Int64("seed", 0, "Random seed for card selection (0 = seeded from the clock)")
	fs.String("listen", "localhost:8080", "Address for the HTTP server")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
}

// Load builds a Config from the parsed flag set. The YAML file named by the
// --config flag (or KNOLSCHED_CONFIG) is optional.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys that no earlier provider set.
	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Logger builds the slog logger described by the config.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
