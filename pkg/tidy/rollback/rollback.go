// Package rollback undoes the filesystem changes recorded in a run's
// journal. Completed operations are replayed newest first; every outcome
// is appended to the journal as a new ROLLBACK record so that repeated
// attempts keep the full history.
package rollback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/fileops"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/planner"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// Holding areas inside the run directory.
const (
	TrashDir     = "ROLLBACK_TRASH"
	ConflictsDir = "ROLLBACK_CONFLICTS"
)

// PhaseRollback is the progress phase name.
const PhaseRollback = "rollback"

// conflictDigits is the width of the uniqueness suffix in holding areas.
const conflictDigits = 3

// Relocator moves a file across volumes if needed, removing the source.
type Relocator interface {
	Relocate(ctx context.Context, src, dst string, meter fileops.Meter) fileops.Result
}

// Result summarizes one rollback attempt.
type Result struct {
	RunDir    string
	Manifest  string
	AttemptAt string

	// Entries are the records appended to the journal, in replay order.
	Entries []manifest.Entry

	RolledBack int
	Trashed    int
	Conflicts  int
	Skipped    int
	Failed     int
	Cancelled  bool
}

// OK reports whether nothing failed and the attempt ran to completion.
func (r *Result) OK() bool {
	return r.Failed == 0 && !r.Cancelled
}

func (r *Result) count(s manifest.Status) {
	switch s {
	case manifest.StatusRolledBack:
		r.RolledBack++
	case manifest.StatusRollbackTrashed:
		r.Trashed++
	case manifest.StatusRollbackConflict:
		r.Conflicts++
	case manifest.StatusRollbackSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Runner replays a journal backwards.
type Runner struct {
	ops        Relocator
	emitter    *progress.Emitter
	thresholds progress.Thresholds
	now        func() time.Time
	exists     func(path string) bool
}

// New returns a runner. em may be nil.
func New(ops Relocator, em *progress.Emitter, th progress.Thresholds) *Runner {
	return &Runner{
		ops:        ops,
		emitter:    em,
		thresholds: th,
		now:        time.Now,
		exists:     lexists,
	}
}

// Run rolls back the run in runDir. The manifest must pass validation.
// Per-entry failures are recorded as ROLLBACK_ERROR and do not stop the
// attempt; the returned error is non-nil only when the journal cannot be
// read, validated or appended to.
func (r *Runner) Run(ctx context.Context, runDir string) (*Result, error) {
	path := manifest.PathFor(runDir)
	j, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	v := resume.ValidateJournal(j)
	v.Path = path
	if err := v.Err(); err != nil {
		return nil, err
	}

	attemptAt := r.now().UTC().Format(time.RFC3339Nano)
	log := logging.Get("rollback").With("run", filepath.Base(runDir), "attempt", attemptAt)
	res := &Result{RunDir: runDir, Manifest: path, AttemptAt: attemptAt}

	candidates := Candidates(j)
	done := r.emitter.Phase(PhaseRollback, len(candidates))
	var total int64
	for _, e := range candidates {
		total += e.SizeBytes
	}
	tracker := progress.NewTracker(r.emitter, PhaseRollback, total, len(candidates), r.thresholds)
	stop := tracker.StartHeartbeat(ctx)
	defer stop()

	log.Info("rollback started", "manifest", path, "candidates", len(candidates))

	// Holding-area names are reserved for the whole attempt.
	names := planner.NewNameRegistry(r.exists)
	for _, fwd := range candidates {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		e := r.undo(ctx, runDir, fwd, attemptAt, names, tracker)
		if err := manifest.Append(path, e); err != nil {
			done("error")
			return res, fmt.Errorf("failed to record rollback of %s: %w", fwd.OpID, err)
		}
		res.Entries = append(res.Entries, e)
		res.count(e.Status)

		if e.Status == manifest.StatusRollbackError {
			log.Error("rollback failed", "op_id", fwd.OpID, "src", e.SrcPath, "dst", e.DstPath,
				"code", e.ErrorCode, "error", e.ErrorMessage)
		} else {
			log.Info("rollback step", "op_id", fwd.OpID, "status", e.Status, "src", e.SrcPath, "dst", e.DstPath)
		}
	}

	status := "ok"
	switch {
	case res.Cancelled:
		status = "cancelled"
	case res.Failed > 0:
		status = "failed"
	}
	log.Info("rollback finished", "rolled_back", res.RolledBack, "trashed", res.Trashed,
		"conflicts", res.Conflicts, "skipped", res.Skipped, "failed", res.Failed, "status", status)
	done(status)
	return res, nil
}

// Candidates returns the forward entries of j that changed the filesystem
// and have not been undone yet, newest first.
func Candidates(j *manifest.Journal) []manifest.Entry {
	undone := make(map[string]bool)
	for _, e := range j.Entries {
		if e.RollbackOf != "" && e.Status.Undone() {
			undone[e.RollbackOf] = true
		}
	}

	var out []manifest.Entry
	for i := len(j.Entries) - 1; i >= 0; i-- {
		e := j.Entries[i]
		if e.Action == string(types.ActionRollback) || undone[e.OpID] {
			continue
		}
		if outcome(e) != "" {
			out = append(out, e)
		}
	}
	return out
}

// outcome returns MOVED, COPIED or RENAMED for a completed entry, or "".
func outcome(e manifest.Entry) string {
	if !e.Status.Completed() {
		return ""
	}
	s := e.ResultStatus
	if e.Status != manifest.StatusSuccess {
		s = string(e.Status)
	}
	switch s {
	case fileops.Moved, fileops.Copied, fileops.Renamed:
		return s
	}
	return ""
}

func (r *Runner) undo(
	ctx context.Context,
	runDir string,
	fwd manifest.Entry,
	attemptAt string,
	names *planner.NameRegistry,
	tracker *progress.Tracker,
) manifest.Entry {
	src, dst := fwd.SrcPath, fwd.DstPath

	if src == "" || dst == "" || !r.exists(dst) {
		return r.entry(fwd, manifest.StatusRollbackSkipped, dst, src, attemptAt)
	}

	var target string
	var status manifest.Status
	switch {
	case outcome(fwd) == fileops.Copied:
		// The source was never touched.
		target = holdingPath(names, runDir, TrashDir, dst)
		status = manifest.StatusRollbackTrashed
	case r.exists(src):
		target = holdingPath(names, runDir, ConflictsDir, dst)
		status = manifest.StatusRollbackConflict
	default:
		target = src
		status = manifest.StatusRolledBack
	}

	tracker.StartFile(dst, string(types.ActionRollback), fwd.SizeBytes)
	out := r.ops.Relocate(ctx, dst, target, tracker)
	if !out.Success {
		tracker.FinishFile(string(manifest.StatusRollbackError))
		e := r.entry(fwd, manifest.StatusRollbackError, dst, target, attemptAt)
		e.ErrorCode = fileops.ErrorCode(out.Err)
		e.ErrorMessage = out.Err.Error()
		e.RetryCount = out.RetryCount
		e.ElapsedTimeSec = out.Elapsed.Seconds()
		return e
	}
	tracker.FinishFile(string(status))

	e := r.entry(fwd, status, dst, target, attemptAt)
	e.RetryCount = out.RetryCount
	e.ElapsedTimeSec = out.Elapsed.Seconds()
	return e
}

// entry builds a ROLLBACK record for fwd carrying its file metadata.
func (r *Runner) entry(fwd manifest.Entry, status manifest.Status, from, to, attemptAt string) manifest.Entry {
	e := fwd
	e.OpID = manifest.RollbackOpID(fwd.OpID, from, to, attemptAt)
	e.Action = string(types.ActionRollback)
	e.SrcPath = from
	e.DstPath = to
	e.Status = status
	e.ResultStatus = ""
	e.NewName, e.RenameBase = "", ""
	e.RollbackOf = fwd.OpID
	e.RollbackAt = attemptAt
	e.ClearError()
	e.RetryCount = 0
	e.ElapsedTimeSec = 0
	e.UpdatedAt = r.now().Format(time.RFC3339)
	if e.Reason == "" {
		e.Reason = types.ReasonRollback
	}
	return e
}

// holdingPath maps dst into a holding area of the run, keeping its path
// relative to the run directory and adding a suffix when taken.
func holdingPath(names *planner.NameRegistry, runDir, area, dst string) string {
	rel, err := filepath.Rel(runDir, dst)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(dst)
	}
	p := filepath.Join(runDir, area, rel)
	return names.Reserve(filepath.Dir(p), filepath.Base(p), "", conflictDigits)
}

func lexists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
