package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Hash.Algorithms) != 2 || cfg.Hash.Algorithms[0] != "sha256" {
		t.Errorf("Hash.Algorithms = %v, want %v", cfg.Hash.Algorithms, DefaultHashAlgorithms)
	}
	if cfg.Hash.ChunkSize() != DefaultHashChunkSizeKB*1024 {
		t.Errorf("Hash.ChunkSize() = %d", cfg.Hash.ChunkSize())
	}
	if cfg.Hash.ParallelWorkers != DefaultHashWorkers {
		t.Errorf("Hash.ParallelWorkers = %d, want %d", cfg.Hash.ParallelWorkers, DefaultHashWorkers)
	}
	if cfg.PHash.Threshold != DefaultPHashThreshold {
		t.Errorf("PHash.Threshold = %d, want %d", cfg.PHash.Threshold, DefaultPHashThreshold)
	}
	if cfg.Retry.MaxRetries != DefaultMaxRetries {
		t.Errorf("Retry.MaxRetries = %d, want %d", cfg.Retry.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Retry.Base() != time.Second || cfg.Retry.Cap() != 30*time.Second {
		t.Errorf("Retry backoff = %v/%v, want 1s/30s", cfg.Retry.Base(), cfg.Retry.Cap())
	}
	if cfg.Copy.ChunkedThreshold() != 64*1024*1024 {
		t.Errorf("Copy.ChunkedThreshold() = %d", cfg.Copy.ChunkedThreshold())
	}
	if cfg.Archive.RootDir != DefaultArchiveRoot || cfg.Archive.UnknownDir != DefaultArchiveUnknown {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if len(cfg.Scan.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Scan.Exclude) = %d, want %d", len(cfg.Scan.Exclude), len(DefaultExclusions))
	}
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	content := `
hash:
  algorithms: [sha1]
  parallel_workers: 2
phash:
  threshold: 4
retry:
  max_retries: 1
  backoff_base_sec: 0.5
  backoff_cap_sec: 2
planner:
  group_screenshots: true
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Hash.Algorithms) != 1 || cfg.Hash.Algorithms[0] != "sha1" {
		t.Errorf("Hash.Algorithms = %v, want [sha1]", cfg.Hash.Algorithms)
	}
	if cfg.Hash.ParallelWorkers != 2 {
		t.Errorf("Hash.ParallelWorkers = %d, want 2", cfg.Hash.ParallelWorkers)
	}
	if cfg.PHash.Threshold != 4 {
		t.Errorf("PHash.Threshold = %d, want 4", cfg.PHash.Threshold)
	}
	if cfg.Retry.Base() != 500*time.Millisecond {
		t.Errorf("Retry.Base() = %v, want 500ms", cfg.Retry.Base())
	}
	if !cfg.Planner.GroupScreenshots {
		t.Error("Planner.GroupScreenshots = false, want true")
	}
	// untouched keys keep their defaults
	if cfg.Hash.ChunkSizeKB != DefaultHashChunkSizeKB {
		t.Errorf("Hash.ChunkSizeKB = %d, want default", cfg.Hash.ChunkSizeKB)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PHOTOTIDY_RETRY_MAX_RETRIES", "2")
	t.Setenv("PHOTOTIDY_PHASH_THRESHOLD", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retry.MaxRetries != 2 {
		t.Errorf("Retry.MaxRetries = %d, want 2", cfg.Retry.MaxRetries)
	}
	if cfg.PHash.Threshold != 12 {
		t.Errorf("PHash.Threshold = %d, want 12", cfg.PHash.Threshold)
	}
}

func TestLoad_NormalizesAlgorithms(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	content := "hash:\n  algorithms: [SHA256, MD5, sha256]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"sha256", "md5"}
	if !slices.Equal(cfg.Hash.Algorithms, want) {
		t.Errorf("Hash.Algorithms = %v, want %v", cfg.Hash.Algorithms, want)
	}
}

func TestLoad_ExplicitPathInvalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "phash:\n  threshold: 40\nhash:\n  algorithms: [crc32]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"phash.threshold", "crc32"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"empty algorithms", func(c *Config) { c.Hash.Algorithms = nil }, "hash.algorithms"},
		{"zero chunk", func(c *Config) { c.Hash.ChunkSizeKB = 0 }, "hash.chunk_size_kb"},
		{"zero workers", func(c *Config) { c.Hash.ParallelWorkers = 0 }, "hash.parallel_workers"},
		{"threshold high", func(c *Config) { c.PHash.Threshold = 17 }, "phash.threshold"},
		{"threshold negative", func(c *Config) { c.PHash.Threshold = -1 }, "phash.threshold"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"base above cap", func(c *Config) { c.Retry.BackoffBaseSec = 60 }, "must not exceed"},
		{"bad glob", func(c *Config) { c.Scan.Exclude = []string{"[abc"} }, "scan.exclude"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"no heartbeat", func(c *Config) { c.Progress.HeartbeatIntervalSec = 0 }, "heartbeat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "phototidy", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !written {
		t.Fatal("WriteDefault() = false, want true on first call")
	}

	written, err = WriteDefault(path)
	if err != nil || written {
		t.Fatalf("WriteDefault() second call = %v, %v; want false, nil", written, err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(written default) error = %v", err)
	}
	if cfg.PHash.Threshold != DefaultPHashThreshold || cfg.Copy.ChunkSizeKB != DefaultCopyChunkSizeKB {
		t.Errorf("round trip mismatch: %+v", cfg)
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/Pictures")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if got != filepath.Join(home, "Pictures") {
		t.Errorf("ExpandPath() = %q", got)
	}

	got, _ = ExpandPath("/abs")
	if got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}
