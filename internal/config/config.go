package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// STEMSTUDIO_AUDIO_SAMPLE_RATE
const EnvPrefix = "STEMSTUDIO"

// Config holds application configuration
type Config struct {
	Audio      AudioConfig      `mapstructure:"audio"`
	Timeline   TimelineConfig   `mapstructure:"timeline"`
	Separation SeparationConfig `mapstructure:"separation"`
	Project    ProjectConfig    `mapstructure:"project"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	DataDir    string           `mapstructure:"data_dir"`
}

// AudioConfig configures the project rate and the output device
type AudioConfig struct {
	SampleRate      int `mapstructure:"sample_rate"`
	BufferFrames    int `mapstructure:"buffer_frames"`
	ResampleQuality int `mapstructure:"resample_quality"`
}

// TimelineConfig configures lanes and the editing grid
type TimelineConfig struct {
	Tracks      []string `mapstructure:"tracks"`
	SnapSeconds float64  `mapstructure:"snap_seconds"`
	MinDuration float64  `mapstructure:"min_duration"`
	TailPadding float64  `mapstructure:"tail_padding"`
	SeekStep    float64  `mapstructure:"seek_step"`
}

// SeparationConfig selects the separation backend
type SeparationConfig struct {
	Backend string   `mapstructure:"backend"`
	Command string   `mapstructure:"command"`
	Model   string   `mapstructure:"model"`
	Args    []string `mapstructure:"args"`
}

// ProjectConfig configures how sources and stems are loaded
type ProjectConfig struct {
	LoadWorkers int  `mapstructure:"load_workers"`
	WatchStems  bool `mapstructure:"watch_stems"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer_frames", 2048)
	v.SetDefault("audio.resample_quality", 4)

	v.SetDefault("timeline.tracks", []string{"VOCALS", "DRUMS", "BASS", "OTHER"})
	v.SetDefault("timeline.snap_seconds", 0.1)
	v.SetDefault("timeline.min_duration", 60.0)
	v.SetDefault("timeline.tail_padding", 5.0)
	v.SetDefault("timeline.seek_step", 5.0)

	v.SetDefault("separation.backend", "band")
	v.SetDefault("separation.command", "demucs")
	v.SetDefault("separation.model", "htdemucs")
	v.SetDefault("separation.args", []string{})

	v.SetDefault("project.load_workers", 4)
	v.SetDefault("project.watch_stems", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.console", false)

	v.SetDefault("data_dir", DefaultDataDir())
}

// New returns a viper instance with defaults, config search paths and
// environment overrides set up. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first; it never overrides variables already set.
// cfgFile, when non-empty, is used instead of searching for config.*.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Logging.File == "" && cfg.DataDir != "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "stemstudio.log")
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	cfg.Logging.File = filepath.Join(cfg.DataDir, "stemstudio.log")
	return &cfg
}

// WriteDefault writes the default configuration to path, creating the
// directory. The format follows the file extension.
func WriteDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	v := viper.New()
	SetDefaults(v)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports the first invalid value
func (c *Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return &ConfigError{Field: "audio.sample_rate", Message: "must be positive"}
	case c.Audio.BufferFrames <= 0:
		return &ConfigError{Field: "audio.buffer_frames", Message: "must be positive"}
	case c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64:
		return &ConfigError{Field: "audio.resample_quality", Message: "must be between 1 and 64"}
	case len(c.Timeline.Tracks) == 0:
		return &ConfigError{Field: "timeline.tracks", Message: "at least one track is required"}
	case c.Timeline.SnapSeconds < 0:
		return &ConfigError{Field: "timeline.snap_seconds", Message: "must not be negative"}
	case c.Timeline.MinDuration < 0:
		return &ConfigError{Field: "timeline.min_duration", Message: "must not be negative"}
	case c.Timeline.TailPadding < 0:
		return &ConfigError{Field: "timeline.tail_padding", Message: "must not be negative"}
	case c.Timeline.SeekStep <= 0:
		return &ConfigError{Field: "timeline.seek_step", Message: "must be positive"}
	case c.Separation.Backend != "band" && c.Separation.Backend != "command":
		return &ConfigError{Field: "separation.backend", Message: fmt.Sprintf("unknown backend %q (band, command)", c.Separation.Backend)}
	case c.Separation.Backend == "command" && c.Separation.Command == "":
		return &ConfigError{Field: "separation.command", Message: "required for the command backend"}
	case c.Project.LoadWorkers <= 0:
		return &ConfigError{Field: "project.load_workers", Message: "must be positive"}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigDir returns the directory searched for config files
func ConfigDir() string {
	// Use XDG config directory if available
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stemstudio")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "stemstudio")
}

// DefaultDataDir returns where logs are kept by default
func DefaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "stemstudio")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "stemstudio")
}
