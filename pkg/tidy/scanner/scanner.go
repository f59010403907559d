package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// PhaseScan is the progress phase name.
const PhaseScan = "scan"

// ScanError is a per-path failure that did not stop the walk.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the outcome of a scan. Files are sorted by path.
type Result struct {
	Root            string
	Files           []*types.FileRecord
	Errors          []ScanError
	DirsScanned     int64
	SymlinksSkipped int64
	Excluded        int64
	TotalSize       int64
	Elapsed         time.Duration
}

// Scanner walks a tree with fastwalk.
type Scanner struct {
	opts     Options
	excludes []glob.Glob
	emitter  *progress.Emitter
	log      *logging.Logger

	dirs     atomic.Int64
	symlinks atomic.Int64
	excluded atomic.Int64
	bytes    atomic.Int64

	mu      sync.Mutex
	files   []*types.FileRecord
	errors  []ScanError
	tracker *progress.Tracker
}

// New returns a scanner. It fails only on an invalid exclude pattern.
func New(opts Options, em *progress.Emitter) (*Scanner, error) {
	globs, err := opts.compile()
	if err != nil {
		return nil, err
	}
	return &Scanner{
		opts:     opts,
		excludes: globs,
		emitter:  em,
		log:      logging.Get("scanner"),
	}, nil
}

// Scan walks root and returns a record per regular file. Symlinks are
// never followed or recorded. Unreadable entries are collected in
// Result.Errors. A cancelled context stops the walk and returns its error.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	start := time.Now()

	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}

	s.files, s.errors = nil, nil
	s.dirs.Store(0)
	s.symlinks.Store(0)
	s.excluded.Store(0)
	s.bytes.Store(0)

	done := s.emitter.Phase(PhaseScan, 0)
	s.tracker = progress.NewTracker(s.emitter, PhaseScan, 0, 0, s.opts.Progress)
	stop := s.tracker.StartHeartbeat(ctx)
	defer stop()

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}
	walkErr := fastwalk.Walk(&conf, root, s.walkFunc(ctx, root))
	if err := ctx.Err(); err != nil {
		done("cancelled")
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		done("error")
		return nil, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}

	slices.SortFunc(s.files, func(a, b *types.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})

	res := &Result{
		Root:            root,
		Files:           s.files,
		Errors:          s.errors,
		DirsScanned:     s.dirs.Load(),
		SymlinksSkipped: s.symlinks.Load(),
		Excluded:        s.excluded.Load(),
		TotalSize:       s.bytes.Load(),
		Elapsed:         time.Since(start),
	}
	s.log.Info("scan complete",
		"root", root, "files", len(res.Files), "dirs", res.DirsScanned,
		"symlinks", res.SymlinksSkipped, "excluded", res.Excluded, "errors", len(res.Errors))
	done("ok")
	return res, nil
}

func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan root %s: %w", abs, os.ErrInvalid)
	}
	return abs, nil
}

func (s *Scanner) walkFunc(ctx context.Context, root string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fastwalk.ErrSkipFiles
		}
		if err != nil {
			s.addError(path, err)
			return nil
		}
		if path == root {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			s.symlinks.Add(1)
			s.log.Debug("skipped symlink", "path", path)
			return nil
		}

		if s.isExcluded(d.Name()) {
			s.excluded.Add(1)
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.dirs.Add(1)
			return nil
		}

		if d.Type().IsRegular() {
			s.processFile(path, d)
		}
		return nil
	}
}

func (s *Scanner) processFile(path string, d fs.DirEntry) {
	info, err := d.Info()
	if err != nil {
		s.addError(path, err)
		return
	}

	rec := &types.FileRecord{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Ext:      strings.ToLower(filepath.Ext(path)),
		FileType: Classify(path),
	}

	var exifAt time.Time
	if s.opts.ReadMetadata && rec.FileType == types.FileTypeImage {
		if res, err := resolution(path); err == nil {
			rec.Resolution = res
		} else {
			s.log.Debug("cannot determine resolution", "path", path, "error", err)
		}
		if t, err := exifTime(path); err == nil {
			exifAt = t
		}
	}
	rec.TimestampLocked, rec.TimestampSource = lockTimestamp(exifAt, info)

	s.bytes.Add(rec.Size)
	s.mu.Lock()
	s.files = append(s.files, rec)
	s.mu.Unlock()

	s.tracker.Done(path, rec.Size, "scanned")
}

func (s *Scanner) isExcluded(name string) bool {
	for _, g := range s.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (s *Scanner) addError(path string, err error) {
	s.log.Warn("scan error", "path", path, "error", err)
	s.mu.Lock()
	s.errors = append(s.errors, ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}
