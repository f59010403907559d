package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/cache"
	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Hash.ParallelWorkers = 2
	cfg.Progress.HeartbeatIntervalSec = 0
	return cfg
}

func TestNewRunDir(t *testing.T) {
	out := t.TempDir()
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local)

	first, err := NewRunDir(out, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Processed_20240601_093000"), first)

	second, err := NewRunDir(out, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Processed_20240601_093000_01"), second)
	assert.DirExists(t, second)
}

func TestPlan_JournalsDuplicates(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "photos")
	out := filepath.Join(root, "out")

	write(t, filepath.Join(src, "a.jpg"), "same bytes")
	write(t, filepath.Join(src, "trip", "b.jpg"), "same bytes")
	write(t, filepath.Join(src, "c.jpg"), "other bytes!")
	write(t, filepath.Join(src, "notes.txt"), "hello")

	p := New(testConfig(), nil, nil)
	run, err := p.Plan(context.Background(), src, out, ModeDryRun)
	require.NoError(t, err)

	assert.Equal(t, filepath.Dir(run.Dir), out)
	assert.FileExists(t, run.Manifest)
	assert.NoFileExists(t, run.Manifest+manifest.PartialSuffix)

	s := run.Summary
	assert.Equal(t, 4, s.TotalFiles)
	assert.Equal(t, 1, s.ExactDuplicates)
	assert.Equal(t, 3, s.Keepers)
	assert.Equal(t, 3, s.FormatCounts[".jpg"])
	assert.False(t, s.NoChangesNeeded)
	assert.Equal(t, ModeDryRun, s.Mode)

	var dup *types.Action
	for i, a := range run.Plan.Actions {
		if a.Reason == types.ReasonDuplicateHash {
			dup = &run.Plan.Actions[i]
		}
	}
	require.NotNil(t, dup)
	assert.Equal(t, filepath.Join(src, "trip", "b.jpg"), dup.Src, "the lexically first path is kept")
	assert.Equal(t, filepath.Join(run.Dir, "TO_DELETE", "DUPLICATES", "trip", "b.jpg"), dup.Dst)

	j, err := manifest.Load(run.Manifest)
	require.NoError(t, err)
	require.NotNil(t, j.Run)
	assert.Equal(t, run.ID, j.Run.RunID)
	assert.Len(t, j.Entries, len(run.Plan.Actions))
	for _, e := range j.Entries {
		assert.Equal(t, manifest.StatusPlanned, e.Status)
	}

	assert.True(t, resume.IsResumable(run.Manifest), "a fresh plan is pending work")
	assert.FileExists(t, filepath.Join(src, "trip", "b.jpg"), "planning never touches sources")
}

func TestPlan_OutputInsideSource(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a.jpg"), "x")

	p := New(testConfig(), nil, nil)
	first, err := p.Plan(context.Background(), src, "", ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, src, filepath.Dir(first.Dir))

	// The first run's directory is excluded from the second scan.
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, err := p.Plan(context.Background(), src, "", ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary.TotalFiles)
}

func TestPlan_WithDigestCache(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a.jpg"), "dup")
	write(t, filepath.Join(src, "b.jpg"), "dup")

	store, err := cache.OpenInMemory()
	require.NoError(t, err)
	dc := cache.NewDigestCache(store)
	t.Cleanup(func() { _ = dc.Close() })

	p := New(testConfig(), dc, nil)
	out := t.TempDir()
	first, err := p.Plan(context.Background(), src, out, ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.Hashed)

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, err := p.Plan(context.Background(), src, out, ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary.ExactDuplicates)

	hits, _ := dc.Stats()
	assert.Equal(t, 2, hits, "unchanged files are not rehashed")
}

func TestPlan_Cancelled(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a.jpg"), "x")
	out := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testConfig(), nil, nil).Plan(ctx, src, out, ModeDryRun)
	require.Error(t, err)
	assert.NoDirExists(t, out, "nothing is written for a cancelled plan")
}

func TestPlan_NoChanges(t *testing.T) {
	cfg := testConfig()
	cfg.Archive.Enabled = false
	src := t.TempDir()
	write(t, filepath.Join(src, "only.jpg"), "solo")

	run, err := New(cfg, nil, nil).Plan(context.Background(), src, t.TempDir(), ModeDryRun)
	require.NoError(t, err)
	assert.True(t, run.Summary.NoChangesNeeded)
	assert.Empty(t, run.Plan.Actions)
	assert.False(t, resume.IsResumable(run.Manifest))
}
