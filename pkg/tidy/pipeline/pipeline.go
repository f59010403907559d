// Package pipeline wires the planning stages together: scan, thumbnail
// split, exact and perceptual dedup, then the planner. The resulting plan
// is journaled as PLANNED entries in a fresh run directory, ready for the
// executor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/cache"
	"github.com/jamesainslie/phototidy/pkg/tidy/classify"
	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/dedup"
	"github.com/jamesainslie/phototidy/pkg/tidy/fileops"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/planner"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/scanner"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// Run modes recorded in the RUN header.
const (
	ModeDryRun  = "dry-run"
	ModeExecute = "execute"
)

// maxRunDirAttempts bounds the suffixes tried when a run directory name
// is already taken.
const maxRunDirAttempts = 100

// NewRunDir creates a run directory under output named after at. When two
// runs start within the same second the later one gets a _NN suffix.
func NewRunDir(output string, at time.Time) (string, error) {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := manifest.RunDirName(at)
	name := base
	for i := 1; i <= maxRunDirAttempts; i++ {
		dir := filepath.Join(output, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create run directory: %w", err)
		}
		name = fmt.Sprintf("%s_%02d", base, i)
	}
	return "", fmt.Errorf("failed to create run directory: %s taken", base)
}

// Summary reports what a plan found and intends to do.
type Summary struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Mode      string    `json:"mode" yaml:"mode"`
	SourceDir string    `json:"source_dir" yaml:"source_dir"`
	OutputDir string    `json:"output_dir" yaml:"output_dir"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	TotalFiles   int            `json:"total_files" yaml:"total_files"`
	TotalBytes   int64          `json:"total_bytes" yaml:"total_bytes"`
	FormatCounts map[string]int `json:"format_counts" yaml:"format_counts"`
	ScanErrors   int            `json:"scan_errors" yaml:"scan_errors"`

	Thumbnails       int   `json:"thumbnails" yaml:"thumbnails"`
	ThumbnailBytes   int64 `json:"thumbnail_bytes" yaml:"thumbnail_bytes"`
	Keepers          int   `json:"keepers" yaml:"keepers"`
	KeeperBytes      int64 `json:"keeper_bytes" yaml:"keeper_bytes"`
	ExactDuplicates  int   `json:"exact_duplicates" yaml:"exact_duplicates"`
	ExactBytes       int64 `json:"exact_duplicate_bytes" yaml:"exact_duplicate_bytes"`
	VisualDuplicates int   `json:"visual_duplicates" yaml:"visual_duplicates"`
	VisualBytes      int64 `json:"visual_duplicate_bytes" yaml:"visual_duplicate_bytes"`
	Unreadable       int   `json:"unreadable" yaml:"unreadable"`
	Hashed           int   `json:"hashed" yaml:"hashed"`

	PlannedActions  int            `json:"planned_actions" yaml:"planned_actions"`
	PlannedSections map[string]int `json:"planned_sections" yaml:"planned_sections"`

	CrossVolume     bool `json:"cross_volume" yaml:"cross_volume"`
	NoChangesNeeded bool `json:"no_changes_needed" yaml:"no_changes_needed"`
}

// Run is a planned run on disk.
type Run struct {
	ID       string
	Dir      string
	Manifest string
	Plan     *planner.Plan
	Summary  Summary
}

// Pipeline builds plans.
type Pipeline struct {
	cfg     config.Config
	emitter *progress.Emitter
	digests dedup.DigestCache
	phashes dedup.PHashCache
	now     func() time.Time
	log     *logging.Logger
}

// New returns a pipeline. dc and em may be nil.
func New(cfg config.Config, dc *cache.DigestCache, em *progress.Emitter) *Pipeline {
	p := &Pipeline{cfg: cfg, emitter: em, now: time.Now, log: logging.Get("pipeline")}
	if dc != nil {
		p.digests = dc
		p.phashes = dc
	}
	return p
}

// Plan scans source, deduplicates, plans and journals the result in a new
// run directory under output. An empty output means a run directory inside
// the configured output_dir, or inside source when none is configured.
func (p *Pipeline) Plan(ctx context.Context, source, output, mode string) (*Run, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source: %w", err)
	}
	if output == "" {
		output = p.cfg.OutputDir
	}
	if output == "" {
		output = source
	}
	if output, err = filepath.Abs(output); err != nil {
		return nil, fmt.Errorf("failed to resolve output: %w", err)
	}

	started := p.now()
	log := p.log.With("source", source)
	log.Info("planning started", "output", output, "mode", mode)

	sc, err := scanner.New(scanner.OptionsFromConfig(p.cfg), p.emitter)
	if err != nil {
		return nil, err
	}
	scan, err := sc.Scan(ctx, source)
	if err != nil {
		return nil, err
	}

	keepers, thumbnails := classify.NewThumbnailDetector(p.cfg.Thumbnail).Split(scan.Files)
	log.Info("thumbnails detected", "thumbnails", len(thumbnails), "keepers", len(keepers))

	exact, err := dedup.NewExact(dedup.ExactOptionsFromConfig(p.cfg), p.digests, p.emitter).Run(ctx, keepers)
	if err != nil {
		return nil, err
	}
	keepers = exact.Keepers
	duplicates := exact.Duplicates

	var visual *dedup.Result
	if p.cfg.PHash.Enabled {
		visual, err = dedup.NewPerceptual(dedup.PerceptualOptionsFromConfig(p.cfg), p.phashes, p.emitter).Run(ctx, keepers)
		if err != nil {
			return nil, err
		}
		keepers = visual.Keepers
		duplicates = append(duplicates, visual.Duplicates...)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("planning cancelled: %w", err)
	}

	runDir, err := NewRunDir(output, started)
	if err != nil {
		return nil, err
	}
	run := &Run{ID: filepath.Base(runDir), Dir: runDir, Manifest: manifest.PathFor(runDir)}

	run.Plan = planner.New(planner.OptionsFromConfig(p.cfg)).Plan(planner.Input{
		SourceRoot: source,
		OutputRoot: runDir,
		Keepers:    keepers,
		Thumbnails: thumbnails,
		Duplicates: duplicates,
	})

	header := manifest.RunHeader{
		RunID:     run.ID,
		Mode:      mode,
		SourceDir: source,
		OutputDir: runDir,
		CreatedAt: started.Format(time.RFC3339),
	}
	if err := writeManifest(run.Manifest, header, run.Plan.Actions); err != nil {
		return nil, err
	}

	run.Summary = summarize(header, started, scan, thumbnails, exact, visual, run.Plan)
	run.Summary.Keepers = len(keepers)
	run.Summary.KeeperBytes = totalSize(keepers)
	if same, err := fileops.SameVolume(source, runDir); err == nil {
		run.Summary.CrossVolume = !same
	}

	log.Info("planning finished", "run", run.ID, "actions", len(run.Plan.Actions),
		"elapsed", p.now().Sub(started).Round(time.Millisecond))
	return run, nil
}

func writeManifest(path string, header manifest.RunHeader, actions []types.Action) error {
	w, err := manifest.Create(path)
	if err != nil {
		return err
	}
	if err := w.WriteRun(header); err != nil {
		_ = w.Abort()
		return err
	}
	for _, a := range actions {
		if err := w.WriteEntry(manifest.EntryFromAction(a, manifest.StatusPlanned)); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Finalize()
}

func summarize(
	h manifest.RunHeader,
	at time.Time,
	scan *scanner.Result,
	thumbnails []*types.FileRecord,
	exact, visual *dedup.Result,
	plan *planner.Plan,
) Summary {
	s := Summary{
		RunID:           h.RunID,
		Mode:            h.Mode,
		SourceDir:       h.SourceDir,
		OutputDir:       h.OutputDir,
		CreatedAt:       at,
		TotalFiles:      len(scan.Files),
		TotalBytes:      scan.TotalSize,
		FormatCounts:    make(map[string]int),
		ScanErrors:      len(scan.Errors),
		Thumbnails:      len(thumbnails),
		ThumbnailBytes:  totalSize(thumbnails),
		PlannedActions:  len(plan.Actions),
		PlannedSections: make(map[string]int, len(plan.Sections)),
		NoChangesNeeded: plan.Empty(),
	}
	for _, r := range scan.Files {
		s.FormatCounts[r.Ext]++
	}
	for _, sec := range plan.Sections {
		s.PlannedSections[sec.Name] = len(sec.Actions)
	}

	s.ExactDuplicates = len(exact.Duplicates)
	s.ExactBytes = totalSize(exact.DuplicateRecords())
	s.Hashed = exact.Hashed
	s.Unreadable = len(exact.Unreadable)
	if visual != nil {
		s.VisualDuplicates = len(visual.Duplicates)
		s.VisualBytes = totalSize(visual.DuplicateRecords())
	}
	return s
}

func totalSize(records []*types.FileRecord) int64 {
	var n int64
	for _, r := range records {
		n += r.Size
	}
	return n
}
