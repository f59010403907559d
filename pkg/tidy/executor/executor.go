// Package executor applies planned actions to the filesystem under the
// run journal. Each action is recorded STARTED before it runs and SUCCESS
// or FAILED after, so an interrupted run can be resumed and nothing that
// already succeeded is repeated.
package executor

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/phototidy/pkg/tidy/fileops"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/retry"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// PhaseExecute is the progress phase name.
const PhaseExecute = "execute"

// FileOps is the subset of *fileops.Ops the executor needs.
type FileOps interface {
	MoveOrCopy(ctx context.Context, src, dst string, meter fileops.Meter) fileops.Result
	Rename(ctx context.Context, src, dst string) fileops.Result
}

// Outcome is what happened to one action.
type Outcome struct {
	Action       types.Action
	OpID         string
	Status       manifest.Status
	ResultStatus string
	ErrorCode    string
	Error        error
	RetryCount   int
	Elapsed      time.Duration

	// Skipped is set when the journal already recorded SUCCESS.
	Skipped bool
}

// Result summarizes an execution.
type Result struct {
	Session   string
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Skipped   int
	// Pending counts actions not started because the run was cancelled.
	Pending   int
	Cancelled bool
}

// OK reports whether every action succeeded or was skipped.
func (r *Result) OK() bool {
	return r.Failed == 0 && !r.Cancelled
}

// Executor runs actions one at a time.
type Executor struct {
	ops        FileOps
	emitter    *progress.Emitter
	thresholds progress.Thresholds
	stat       func(string) (os.FileInfo, error)
}

// New returns an executor. em may be nil.
func New(ops FileOps, em *progress.Emitter, th progress.Thresholds) *Executor {
	return &Executor{ops: ops, emitter: em, thresholds: th, stat: os.Stat}
}

// Execute performs actions in order. When manifestPath is set the journal
// there drives idempotency: actions it records as SUCCESS are skipped,
// unknown actions are added as PLANNED, and every status change is
// persisted before moving on.
//
// A failed action is recorded and execution continues. Cancellation stops
// before the next action and leaves completed work in place. The returned
// error is non-nil only when the journal cannot be read or written.
func (x *Executor) Execute(ctx context.Context, actions []types.Action, manifestPath string) (*Result, error) {
	session := uuid.NewString()
	log := logging.Get("executor").With("session", session)

	var journal *manifest.Journal
	if manifestPath != "" {
		j, err := manifest.Load(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		journal = j
	}

	res := &Result{Session: session}
	var total int64
	for _, a := range actions {
		total += x.sizeOf(a)
	}

	done := x.emitter.Phase(PhaseExecute, len(actions))
	tracker := progress.NewTracker(x.emitter, PhaseExecute, total, len(actions), x.thresholds)
	stop := tracker.StartHeartbeat(ctx)
	defer stop()

	log.Info("execution started", "actions", len(actions), "manifest", manifestPath)

	for i, a := range actions {
		if ctx.Err() != nil {
			res.Cancelled = true
			res.Pending = len(actions) - i
			break
		}

		out, err := x.executeOne(ctx, a, journal, manifestPath, tracker, log)
		if err != nil {
			done("error")
			return res, err
		}
		res.Outcomes = append(res.Outcomes, out)

		switch {
		case out.Skipped:
			res.Skipped++
		case out.Status == manifest.StatusSuccess:
			res.Succeeded++
		default:
			res.Failed++
			if out.ErrorCode == fileops.CodeCancelled {
				res.Cancelled = true
				res.Pending = len(actions) - i - 1
			}
		}
		if res.Cancelled {
			break
		}
	}

	status := "ok"
	switch {
	case res.Cancelled:
		status = "cancelled"
	case res.Failed > 0:
		status = "failed"
	}
	log.Info("execution finished",
		"succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped,
		"pending", res.Pending, "status", status)
	done(status)
	return res, nil
}

func (x *Executor) executeOne(
	ctx context.Context,
	a types.Action,
	journal *manifest.Journal,
	path string,
	tracker *progress.Tracker,
	log *logging.Logger,
) (Outcome, error) {
	opID := manifest.ActionOpID(a)
	out := Outcome{Action: a, OpID: opID}

	var interrupted *manifest.Entry
	if journal != nil {
		if e, ok := journal.Find(opID); ok && e.Status.Completed() {
			log.Debug("already done, skipping", "op_id", opID, "src", a.Src)
			out.Skipped = true
			out.Status = manifest.StatusSuccess
			out.ResultStatus = cmp.Or(e.ResultStatus, string(e.Status))
			tracker.Skip(x.sizeOf(a))
			return out, nil
		} else if !ok {
			journal.Add(manifest.EntryFromAction(a, manifest.StatusPlanned))
		} else if e.Status == manifest.StatusStarted {
			snapshot := *e
			interrupted = &snapshot
		}

		err := journal.Transition(opID, manifest.StatusStarted, func(e *manifest.Entry) {
			e.ClearError()
		})
		if err != nil {
			return out, fmt.Errorf("failed to mark %s started: %w", opID, err)
		}
		if err := journal.Persist(path); err != nil {
			return out, fmt.Errorf("failed to persist manifest: %w", err)
		}
	}

	tracker.StartFile(a.Src, string(a.Kind), x.sizeOf(a))
	r, recovered := x.alreadyApplied(a, interrupted)
	if recovered {
		log.Warn("interrupted action already applied", "op_id", opID, "src", a.Src, "dst", a.Dst)
	} else {
		r = x.perform(ctx, a, tracker)
	}
	out.RetryCount = r.RetryCount
	out.Elapsed = r.Elapsed

	if r.Success {
		out.Status = manifest.StatusSuccess
		out.ResultStatus = r.Status
		tracker.FinishFile(r.Status)
		log.Info("action done", "op_id", opID, "action", a.Kind, "src", a.Src, "dst", a.Dst,
			"result", r.Status, "retries", r.RetryCount)
	} else {
		out.Status = manifest.StatusFailed
		out.Error = r.Err
		out.ErrorCode = fileops.ErrorCode(r.Err)
		tracker.FinishFile(string(manifest.StatusFailed))
		log.Error("action failed", "op_id", opID, "action", a.Kind, "src", a.Src, "dst", a.Dst,
			"code", out.ErrorCode, "error", r.Err, "retries", r.RetryCount)
	}

	if journal == nil {
		return out, nil
	}
	err := journal.Transition(opID, out.Status, func(e *manifest.Entry) {
		e.RetryCount = out.RetryCount
		e.ElapsedTimeSec = out.Elapsed.Seconds()
		e.ResultStatus = out.ResultStatus
		if out.Error != nil {
			e.ErrorCode = out.ErrorCode
			e.ErrorMessage = out.Error.Error()
		}
	})
	if err != nil {
		return out, fmt.Errorf("failed to record outcome of %s: %w", opID, err)
	}
	if err := journal.Persist(path); err != nil {
		return out, fmt.Errorf("failed to persist manifest: %w", err)
	}
	return out, nil
}

func (x *Executor) perform(ctx context.Context, a types.Action, meter fileops.Meter) fileops.Result {
	switch a.Kind {
	case types.ActionMove, types.ActionArchive:
		if a.Dst == "" {
			break
		}
		return x.ops.MoveOrCopy(ctx, a.Src, a.Dst, meter)
	case types.ActionRename:
		if a.Dst == "" {
			break
		}
		return x.ops.Rename(ctx, a.Src, a.Dst)
	}
	err := fmt.Errorf("%w: %s %s", fileops.ErrInvalidAction, a.Kind, a.Src)
	return fileops.Result{Outcome: retry.Outcome{Err: err}}
}

// alreadyApplied reports whether an action left STARTED by an interrupted
// run has in fact completed: its source is gone and its destination holds
// a file of the recorded size. Such an action is recorded as SUCCESS
// rather than retried against a missing source.
func (x *Executor) alreadyApplied(a types.Action, started *manifest.Entry) (fileops.Result, bool) {
	if started == nil || a.Dst == "" {
		return fileops.Result{}, false
	}
	if _, err := x.stat(a.Src); !os.IsNotExist(err) {
		return fileops.Result{}, false
	}
	info, err := x.stat(a.Dst)
	if err != nil || info.IsDir() {
		return fileops.Result{}, false
	}
	if started.SizeBytes > 0 && info.Size() != started.SizeBytes {
		return fileops.Result{}, false
	}

	status := fileops.Moved
	if a.Kind == types.ActionRename {
		status = fileops.Renamed
	}
	return fileops.Result{Outcome: retry.Outcome{Success: true}, Status: status}, true
}

func (x *Executor) sizeOf(a types.Action) int64 {
	if a.Record != nil {
		return a.Record.Size
	}
	if info, err := x.stat(a.Src); err == nil {
		return info.Size()
	}
	return 0
}
