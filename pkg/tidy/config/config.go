package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/phototidy/pkg/tidy/hashing"
)

// AppName names the config, state and cache directories.
const AppName = "phototidy"

// EnvPrefix prefixes environment overrides, e.g. PHOTOTIDY_OUTPUT_DIR.
const EnvPrefix = "PHOTOTIDY"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// HashConfig configures exact deduplication digests.
type HashConfig struct {
	Algorithms      []string `mapstructure:"algorithms"`
	ChunkSizeKB     int      `mapstructure:"chunk_size_kb"`
	ParallelWorkers int      `mapstructure:"parallel_workers"`
	Cache           bool     `mapstructure:"cache"`
}

// ChunkSize returns the read size in bytes.
func (h HashConfig) ChunkSize() int {
	return h.ChunkSizeKB * 1024
}

// PHashConfig configures perceptual deduplication.
type PHashConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Threshold int  `mapstructure:"threshold"`
}

// RetryConfig configures backoff around filesystem primitives.
type RetryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffBaseSec float64 `mapstructure:"backoff_base_sec"`
	BackoffCapSec  float64 `mapstructure:"backoff_cap_sec"`
}

// Base returns the base backoff as a duration.
func (r RetryConfig) Base() time.Duration {
	return seconds(r.BackoffBaseSec)
}

// Cap returns the backoff ceiling as a duration.
func (r RetryConfig) Cap() time.Duration {
	return seconds(r.BackoffCapSec)
}

// CopyConfig configures the executor copy path.
type CopyConfig struct {
	ChunkedThresholdMB int  `mapstructure:"chunked_threshold_mb"`
	ChunkSizeKB        int  `mapstructure:"chunk_size_kb"`
	AllowCrossVolume   bool `mapstructure:"allow_cross_volume"`
}

// ChunkedThreshold returns the size in bytes above which copies are chunked.
func (c CopyConfig) ChunkedThreshold() int64 {
	return int64(c.ChunkedThresholdMB) * 1024 * 1024
}

// ChunkSize returns the copy chunk size in bytes.
func (c CopyConfig) ChunkSize() int {
	return c.ChunkSizeKB * 1024
}

// ProgressConfig configures progress events and slow-throughput detection.
type ProgressConfig struct {
	HeartbeatIntervalSec   float64 `mapstructure:"heartbeat_interval_sec"`
	EmitMinBytesKB         int     `mapstructure:"emit_min_bytes_kb"`
	EmitMinIntervalSec     float64 `mapstructure:"emit_min_interval_sec"`
	SlowConsecutiveSamples int     `mapstructure:"slow_consecutive_samples"`
	SlowMinSampleBytesKB   int     `mapstructure:"slow_min_sample_bytes_kb"`
	SlowMinSampleSec       float64 `mapstructure:"slow_min_sample_sec"`
	SlowThresholdMBps      float64 `mapstructure:"slow_threshold_mbps"`
}

// ThumbnailConfig configures thumbnail detection.
type ThumbnailConfig struct {
	MaxSizeKB      int `mapstructure:"max_size_kb"`
	MaxDimensionPx int `mapstructure:"max_dimension_px"`
	MinDimensionPx int `mapstructure:"min_dimension_px"`
}

// ArchiveConfig configures the year/month archive of keepers.
type ArchiveConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	RootDir    string `mapstructure:"root_dir"`
	UnknownDir string `mapstructure:"unknown_dir"`
}

// RenameConfig configures keeper renaming.
type RenameConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	SequenceDigits int  `mapstructure:"sequence_digits"`
}

// PlannerConfig configures optional planning rules.
type PlannerConfig struct {
	MoveOtherToKeep    bool   `mapstructure:"move_other_to_keep"`
	GroupScreenshots   bool   `mapstructure:"group_screenshots"`
	ScreenshotTemplate string `mapstructure:"screenshot_template"`
	RenameScreenshots  bool   `mapstructure:"rename_screenshots"`
}

// ScanConfig configures the scanner.
type ScanConfig struct {
	Exclude []string `mapstructure:"exclude"`
}

// Config represents the application configuration. It is loaded once,
// validated, and passed by value into component constructors.
type Config struct {
	OutputDir string          `mapstructure:"output_dir"`
	Hash      HashConfig      `mapstructure:"hash"`
	PHash     PHashConfig     `mapstructure:"phash"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Copy      CopyConfig      `mapstructure:"copy"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Rename    RenameConfig    `mapstructure:"rename"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "")

	v.SetDefault("hash.algorithms", DefaultHashAlgorithms)
	v.SetDefault("hash.chunk_size_kb", DefaultHashChunkSizeKB)
	v.SetDefault("hash.parallel_workers", DefaultHashWorkers)
	v.SetDefault("hash.cache", DefaultHashCache)

	v.SetDefault("phash.enabled", DefaultPHashEnabled)
	v.SetDefault("phash.threshold", DefaultPHashThreshold)

	v.SetDefault("retry.max_retries", DefaultMaxRetries)
	v.SetDefault("retry.backoff_base_sec", DefaultBackoffBaseSec)
	v.SetDefault("retry.backoff_cap_sec", DefaultBackoffCapSec)

	v.SetDefault("copy.chunked_threshold_mb", DefaultChunkedThresholdMB)
	v.SetDefault("copy.chunk_size_kb", DefaultCopyChunkSizeKB)
	v.SetDefault("copy.allow_cross_volume", DefaultAllowCrossVolume)

	v.SetDefault("progress.heartbeat_interval_sec", DefaultHeartbeatIntervalSec)
	v.SetDefault("progress.emit_min_bytes_kb", DefaultEmitMinBytesKB)
	v.SetDefault("progress.emit_min_interval_sec", DefaultEmitMinIntervalSec)
	v.SetDefault("progress.slow_consecutive_samples", DefaultSlowConsecutiveSamples)
	v.SetDefault("progress.slow_min_sample_bytes_kb", DefaultSlowMinSampleBytesKB)
	v.SetDefault("progress.slow_min_sample_sec", DefaultSlowMinSampleSec)
	v.SetDefault("progress.slow_threshold_mbps", DefaultSlowThresholdMBps)

	v.SetDefault("thumbnail.max_size_kb", DefaultThumbMaxSizeKB)
	v.SetDefault("thumbnail.max_dimension_px", DefaultThumbMaxDimensionPx)
	v.SetDefault("thumbnail.min_dimension_px", DefaultThumbMinDimensionPx)

	v.SetDefault("archive.enabled", DefaultArchiveEnabled)
	v.SetDefault("archive.root_dir", DefaultArchiveRoot)
	v.SetDefault("archive.unknown_dir", DefaultArchiveUnknown)

	v.SetDefault("rename.enabled", DefaultRenameEnabled)
	v.SetDefault("rename.sequence_digits", DefaultRenameSequenceDigits)

	v.SetDefault("planner.move_other_to_keep", false)
	v.SetDefault("planner.group_screenshots", false)
	v.SetDefault("planner.screenshot_template", DefaultScreenshotTemplate)
	v.SetDefault("planner.rename_screenshots", false)

	v.SetDefault("scan.exclude", DefaultExclusions)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"executor": "info",
		"rollback": "info",
		"dedup":    "info",
	})
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode; a failure here is a programming error.
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return cfg
}

// Load reads configuration from file and environment variables and
// validates it. When path is empty the file is searched in:
//   - $XDG_CONFIG_HOME/phototidy/config.yaml
//   - $HOME/.config/phototidy/config.yaml
//
// Environment variables are prefixed with PHOTOTIDY_ (e.g. PHOTOTIDY_HASH_PARALLEL_WORKERS).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, AppName))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", AppName))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	cfg.Hash.Algorithms = hashing.Normalize(cfg.Hash.Algorithms)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.OutputDir != "" {
		expanded, err := ExpandPath(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		cfg.OutputDir = expanded
	}

	return &cfg, nil
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// DefaultConfigPath returns the path Load searches first.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/phototidy/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/phototidy/ for the digest cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DigestCachePath returns the badger directory of the digest cache.
func DigestCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
