package main

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/executor"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/output"
	"github.com/jamesainslie/phototidy/pkg/tidy/pipeline"
	"github.com/jamesainslie/phototidy/pkg/tidy/resume"
	"github.com/jamesainslie/phototidy/pkg/tidy/rollback"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// render writes r to stdout in the selected format.
func render(r *output.Result) error {
	formatter, err := output.Get(flagFormat)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", flagFormat, output.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func stat(label string, count int, size int64) output.Stat {
	s := output.Stat{Label: label, Count: count, Bytes: size}
	if size > 0 {
		s.BytesHuman = types.FormatSize(size)
	}
	return s
}

func actionLine(a types.Action, status string) output.ActionLine {
	var size int64
	if a.Record != nil {
		size = a.Record.Size
	}
	return output.ActionLine{
		OpID:      manifest.ActionOpID(a),
		Action:    string(a.Kind),
		Reason:    a.Reason,
		Status:    status,
		Src:       a.Src,
		Dst:       a.Dst,
		Size:      size,
		SizeHuman: types.FormatSize(size),
	}
}

// planResult describes a freshly planned run.
func planResult(run *pipeline.Run, elapsed time.Duration) *output.Result {
	s := run.Summary
	r := &output.Result{
		Kind:     output.KindPlan,
		Title:    "Plan",
		RunID:    run.ID,
		Mode:     s.Mode,
		Source:   s.SourceDir,
		Output:   run.Dir,
		Manifest: run.Manifest,
		Stats: []output.Stat{
			stat("Files", s.TotalFiles, s.TotalBytes),
			stat("Thumbnails", s.Thumbnails, s.ThumbnailBytes),
			stat("Exact duplicates", s.ExactDuplicates, s.ExactBytes),
			stat("Visual duplicates", s.VisualDuplicates, s.VisualBytes),
			stat("Keepers", s.Keepers, s.KeeperBytes),
			stat("Hashed", s.Hashed, 0),
			stat("Planned actions", s.PlannedActions, 0),
		},
		Duration: elapsed,
		OK:       true,
	}
	for _, sec := range run.Plan.Sections {
		out := output.Section{Name: sec.Name}
		for _, a := range sec.Actions {
			out.Actions = append(out.Actions, actionLine(a, string(manifest.StatusPlanned)))
		}
		r.Sections = append(r.Sections, out)
	}

	if s.ScanErrors > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d paths could not be scanned", s.ScanErrors))
	}
	if s.Unreadable > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d files could not be hashed and were kept", s.Unreadable))
	}
	if s.CrossVolume {
		r.Warnings = append(r.Warnings, "source and output are on different volumes: files will be copied, then removed")
	}
	return r
}

// Execution sections.
const (
	sectionFailed    = "FAILED"
	sectionCompleted = "COMPLETED"
	sectionSkipped   = "ALREADY_DONE"
)

// executeResult describes one executor pass over a run. sizes maps op_id
// to the journaled file size for actions rebuilt without a file record.
func executeResult(res *executor.Result, runDir, manifestPath string, sizes map[string]int64, elapsed time.Duration) *output.Result {
	r := &output.Result{
		Kind:     output.KindExecute,
		Title:    "Execution",
		RunID:    runName(runDir),
		Mode:     pipeline.ModeExecute,
		Output:   runDir,
		Manifest: manifestPath,
		Stats: []output.Stat{
			stat("Succeeded", res.Succeeded, 0),
			stat("Failed", res.Failed, 0),
			stat("Already done", res.Skipped, 0),
			stat("Not started", res.Pending, 0),
		},
		Duration:    elapsed,
		Interrupted: res.Cancelled,
		OK:          res.OK(),
	}

	groups := map[string]*output.Section{}
	for _, o := range res.Outcomes {
		name := sectionCompleted
		switch {
		case o.Skipped:
			name = sectionSkipped
		case o.Status == manifest.StatusFailed:
			name = sectionFailed
		}
		sec, ok := groups[name]
		if !ok {
			sec = &output.Section{Name: name}
			groups[name] = sec
		}

		line := actionLine(o.Action, cmp.Or(o.ResultStatus, string(o.Status)))
		line.OpID = o.OpID
		if line.Size == 0 && sizes[o.OpID] > 0 {
			line.Size = sizes[o.OpID]
			line.SizeHuman = types.FormatSize(line.Size)
		}
		line.ErrorCode = o.ErrorCode
		line.RetryCount = o.RetryCount
		if o.Error != nil {
			line.Error = o.Error.Error()
		}
		sec.Actions = append(sec.Actions, line)
	}
	for _, name := range []string{sectionFailed, sectionCompleted, sectionSkipped} {
		if sec, ok := groups[name]; ok {
			r.Sections = append(r.Sections, *sec)
		}
	}

	if res.Cancelled {
		r.Warnings = append(r.Warnings, fmt.Sprintf("interrupted with %d actions not started: run 'phototidy execute --resume' to continue", res.Pending))
	}
	if res.Failed > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d actions failed: fix the cause and resume the run", res.Failed))
	}
	return r
}

// rollbackResult describes one rollback attempt.
func rollbackResult(res *rollback.Result, elapsed time.Duration) *output.Result {
	r := &output.Result{
		Kind:     output.KindRollback,
		Title:    "Rollback",
		RunID:    runName(res.RunDir),
		Output:   res.RunDir,
		Manifest: res.Manifest,
		Stats: []output.Stat{
			stat("Restored", res.RolledBack, 0),
			stat("Trashed copies", res.Trashed, 0),
			stat("Conflicts", res.Conflicts, 0),
			stat("Skipped", res.Skipped, 0),
			stat("Failed", res.Failed, 0),
		},
		Duration:    elapsed,
		Interrupted: res.Cancelled,
		OK:          res.OK(),
	}

	groups := map[manifest.Status]*output.Section{}
	for _, e := range res.Entries {
		sec, ok := groups[e.Status]
		if !ok {
			sec = &output.Section{Name: string(e.Status)}
			groups[e.Status] = sec
		}
		sec.Actions = append(sec.Actions, output.ActionLine{
			OpID:       e.OpID,
			Action:     e.Action,
			Reason:     e.Reason,
			Status:     string(e.Status),
			Src:        e.SrcPath,
			Dst:        e.DstPath,
			Size:       e.SizeBytes,
			SizeHuman:  types.FormatSize(e.SizeBytes),
			ErrorCode:  e.ErrorCode,
			Error:      e.ErrorMessage,
			RetryCount: e.RetryCount,
		})
	}
	for _, s := range []manifest.Status{
		manifest.StatusRollbackError,
		manifest.StatusRollbackConflict,
		manifest.StatusRolledBack,
		manifest.StatusRollbackTrashed,
		manifest.StatusRollbackSkipped,
	} {
		if sec, ok := groups[s]; ok {
			r.Sections = append(r.Sections, *sec)
		}
	}

	if res.Conflicts > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d files could not return to an occupied path and were moved to %s", res.Conflicts, rollback.ConflictsDir))
	}
	return r
}

func runName(runDir string) string {
	return filepath.Base(runDir)
}

// runsResult lists the runs under an output root.
func runsResult(root string, runs []resume.Run) *output.Result {
	r := &output.Result{Kind: output.KindRuns, Title: "Runs", Output: root, OK: true}
	for _, run := range runs {
		info := output.RunInfo{Name: run.Name, Dir: run.Dir, Manifest: run.Manifest, ModTime: run.ModTime}
		if run.Manifest != "" {
			if j, err := manifest.Load(run.Manifest); err == nil {
				if j.Run != nil {
					info.Mode = j.Run.Mode
				}
				info.Entries = len(j.Entries)
				info.Pending = len(resume.Pending(j))
				info.Resumable = info.Pending > 0 && resume.ValidateJournal(j).Valid()
			} else {
				r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", run.Name, err))
			}
		}
		r.Runs = append(r.Runs, info)
	}
	return r
}
