package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultHeader = `# phototidy configuration
#
# Every key can be overridden with PHOTOTIDY_<SECTION>_<KEY>, for example
# PHOTOTIDY_RETRY_MAX_RETRIES=2. Sizes are in KB or MB as the key says;
# durations are in seconds.

`

// WriteDefault writes the built-in configuration to path. It does nothing
// and returns false when a file already exists there.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := Marshal(Default())
	if err != nil {
		return false, err
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), body...), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

// Marshal renders cfg as YAML using the same keys Load reads.
func Marshal(cfg Config) ([]byte, error) {
	doc := map[string]any{
		"output_dir": cfg.OutputDir,
		"hash": map[string]any{
			"algorithms":       cfg.Hash.Algorithms,
			"chunk_size_kb":    cfg.Hash.ChunkSizeKB,
			"parallel_workers": cfg.Hash.ParallelWorkers,
			"cache":            cfg.Hash.Cache,
		},
		"phash": map[string]any{
			"enabled":   cfg.PHash.Enabled,
			"threshold": cfg.PHash.Threshold,
		},
		"retry": map[string]any{
			"max_retries":      cfg.Retry.MaxRetries,
			"backoff_base_sec": cfg.Retry.BackoffBaseSec,
			"backoff_cap_sec":  cfg.Retry.BackoffCapSec,
		},
		"copy": map[string]any{
			"chunked_threshold_mb": cfg.Copy.ChunkedThresholdMB,
			"chunk_size_kb":        cfg.Copy.ChunkSizeKB,
			"allow_cross_volume":   cfg.Copy.AllowCrossVolume,
		},
		"progress": map[string]any{
			"heartbeat_interval_sec":   cfg.Progress.HeartbeatIntervalSec,
			"emit_min_bytes_kb":        cfg.Progress.EmitMinBytesKB,
			"emit_min_interval_sec":    cfg.Progress.EmitMinIntervalSec,
			"slow_consecutive_samples": cfg.Progress.SlowConsecutiveSamples,
			"slow_min_sample_bytes_kb": cfg.Progress.SlowMinSampleBytesKB,
			"slow_min_sample_sec":      cfg.Progress.SlowMinSampleSec,
			"slow_threshold_mbps":      cfg.Progress.SlowThresholdMBps,
		},
		"thumbnail": map[string]any{
			"max_size_kb":      cfg.Thumbnail.MaxSizeKB,
			"max_dimension_px": cfg.Thumbnail.MaxDimensionPx,
			"min_dimension_px": cfg.Thumbnail.MinDimensionPx,
		},
		"archive": map[string]any{
			"enabled":     cfg.Archive.Enabled,
			"root_dir":    cfg.Archive.RootDir,
			"unknown_dir": cfg.Archive.UnknownDir,
		},
		"rename": map[string]any{
			"enabled":         cfg.Rename.Enabled,
			"sequence_digits": cfg.Rename.SequenceDigits,
		},
		"planner": map[string]any{
			"move_other_to_keep":  cfg.Planner.MoveOtherToKeep,
			"group_screenshots":   cfg.Planner.GroupScreenshots,
			"screenshot_template": cfg.Planner.ScreenshotTemplate,
			"rename_screenshots":  cfg.Planner.RenameScreenshots,
		},
		"scan": map[string]any{
			"exclude": cfg.Scan.Exclude,
		},
		"logging": map[string]any{
			"level":         cfg.Logging.Level,
			"path":          cfg.Logging.Path,
			"console_level": cfg.Logging.ConsoleLevel,
			"rotation": map[string]any{
				"max_size":    cfg.Logging.Rotation.MaxSize,
				"max_age":     cfg.Logging.Rotation.MaxAge,
				"max_backups": cfg.Logging.Rotation.MaxBackups,
				"daily":       cfg.Logging.Rotation.Daily,
			},
			"components": cfg.Logging.Components,
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
