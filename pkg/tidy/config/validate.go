package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/phototidy/pkg/tidy/hashing"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks every tunable and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if len(c.Hash.Algorithms) == 0 {
		bad("hash.algorithms must not be empty")
	}
	for _, alg := range c.Hash.Algorithms {
		if !hashing.IsSupported(alg) {
			bad("hash.algorithms: unsupported %q (supported: %s)", alg, strings.Join(hashing.Supported(), ", "))
		}
	}
	if c.Hash.ChunkSizeKB <= 0 {
		bad("hash.chunk_size_kb must be positive, got %d", c.Hash.ChunkSizeKB)
	}
	if c.Hash.ParallelWorkers <= 0 {
		bad("hash.parallel_workers must be positive, got %d", c.Hash.ParallelWorkers)
	}

	if c.PHash.Threshold < 0 || c.PHash.Threshold > MaxPHashThreshold {
		bad("phash.threshold must be within 0-%d, got %d", MaxPHashThreshold, c.PHash.Threshold)
	}

	if c.Retry.MaxRetries < 0 {
		bad("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BackoffBaseSec <= 0 {
		bad("retry.backoff_base_sec must be positive, got %g", c.Retry.BackoffBaseSec)
	}
	if c.Retry.BackoffCapSec <= 0 {
		bad("retry.backoff_cap_sec must be positive, got %g", c.Retry.BackoffCapSec)
	}
	if c.Retry.BackoffBaseSec > c.Retry.BackoffCapSec {
		bad("retry.backoff_base_sec (%g) must not exceed retry.backoff_cap_sec (%g)",
			c.Retry.BackoffBaseSec, c.Retry.BackoffCapSec)
	}

	if c.Copy.ChunkedThresholdMB < 0 {
		bad("copy.chunked_threshold_mb must not be negative, got %d", c.Copy.ChunkedThresholdMB)
	}
	if c.Copy.ChunkSizeKB <= 0 {
		bad("copy.chunk_size_kb must be positive, got %d", c.Copy.ChunkSizeKB)
	}

	p := c.Progress
	if p.HeartbeatIntervalSec <= 0 {
		bad("progress.heartbeat_interval_sec must be positive, got %g", p.HeartbeatIntervalSec)
	}
	if p.EmitMinBytesKB < 0 || p.EmitMinIntervalSec < 0 {
		bad("progress.emit_min_bytes_kb and progress.emit_min_interval_sec must not be negative")
	}
	if p.SlowConsecutiveSamples <= 0 {
		bad("progress.slow_consecutive_samples must be positive, got %d", p.SlowConsecutiveSamples)
	}
	if p.SlowMinSampleBytesKB < 0 || p.SlowMinSampleSec < 0 {
		bad("progress.slow_min_sample_bytes_kb and progress.slow_min_sample_sec must not be negative")
	}
	if p.SlowThresholdMBps < 0 {
		bad("progress.slow_threshold_mbps must not be negative, got %g", p.SlowThresholdMBps)
	}

	if c.Thumbnail.MaxSizeKB < 0 || c.Thumbnail.MaxDimensionPx < 0 || c.Thumbnail.MinDimensionPx < 0 {
		bad("thumbnail limits must not be negative")
	}

	if c.Archive.Enabled && strings.TrimSpace(c.Archive.RootDir) == "" {
		bad("archive.root_dir must be set when archive.enabled")
	}
	if strings.TrimSpace(c.Archive.UnknownDir) == "" {
		bad("archive.unknown_dir must not be empty")
	}
	if c.Rename.SequenceDigits < 1 || c.Rename.SequenceDigits > 9 {
		bad("rename.sequence_digits must be within 1-9, got %d", c.Rename.SequenceDigits)
	}
	if c.Planner.GroupScreenshots && strings.TrimSpace(c.Planner.ScreenshotTemplate) == "" {
		bad("planner.screenshot_template must be set when planner.group_screenshots")
	}

	for _, pattern := range c.Scan.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			bad("scan.exclude: pattern %q: %v", pattern, err)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		bad("logging.level: %v", err)
	}
	if c.Logging.ConsoleLevel != "" {
		if _, err := logging.ParseLevel(c.Logging.ConsoleLevel); err != nil {
			bad("logging.console_level: %v", err)
		}
	}

	return errors.Join(errs...)
}
