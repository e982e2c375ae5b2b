package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papapumpkin/rfplus/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by InitEnv.
const EnvPrefix = "RFPLUS"

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// LogConfig holds logger settings.
type LogConfig struct {
	Format     string `mapstructure:"format"`
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// PathConfig names an optional output file. Empty disables the output.
type PathConfig struct {
	Path string `mapstructure:"path"`
}

// ReportConfig holds the optional report outputs.
type ReportConfig struct {
	AnalysisPath string `mapstructure:"analysis_path"`
	SummaryPath  string `mapstructure:"summary_path"`
}

// WatchConfig holds settings of the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config holds all runtime configuration for an rfplus invocation.
// Values are populated from .rfplus.toml, RFPLUS_* env vars, and CLI flags.
type Config struct {
	Workers        int          `mapstructure:"workers"`
	Unrooted       bool         `mapstructure:"unrooted"`
	ExtraneousFree bool         `mapstructure:"extraneous_free"`
	AllPairs       bool         `mapstructure:"all_pairs"`
	Verbose        bool         `mapstructure:"verbose"`
	Log            LogConfig    `mapstructure:"log"`
	Store          PathConfig   `mapstructure:"store"`
	Telemetry      PathConfig   `mapstructure:"telemetry"`
	Metrics        PathConfig   `mapstructure:"metrics"`
	Report         ReportConfig `mapstructure:"report"`
	Watch          WatchConfig  `mapstructure:"watch"`
}

// InitEnv maps RFPLUS_* environment variables onto config keys. Nested keys
// use underscores, so log.level is read from RFPLUS_LOG_LEVEL.
func InitEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("workers", 0)
	viper.SetDefault("unrooted", false)
	viper.SetDefault("extraneous_free", false)
	viper.SetDefault("all_pairs", false)
	viper.SetDefault("verbose", false)
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("store.path", "")
	viper.SetDefault("telemetry.path", "")
	viper.SetDefault("metrics.path", "")
	viper.SetDefault("report.analysis_path", "")
	viper.SetDefault("report.summary_path", "")
	viper.SetDefault("watch.debounce", 300*time.Millisecond)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("%w: log rotation limits must be >= 0", ErrInvalid)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must be >= 0, got %s", ErrInvalid, c.Watch.Debounce)
	}
	return nil
}

// Logging returns the logger settings. Verbose raises the level to debug.
func (c Config) Logging() logging.Config {
	level := c.Log.Level
	if c.Verbose {
		level = "debug"
	}
	return logging.Config{
		Format:     c.Log.Format,
		Level:      level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}
