// Package planner turns classified and deduplicated records into an
// ordered list of filesystem actions.
package planner

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
	"github.com/jamesainslie/phototidy/pkg/tidy/dedup"
	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// holdingDigits is the suffix width for names in holding and archive dirs.
const holdingDigits = 3

// Options configures the planner.
type Options struct {
	Archive config.ArchiveConfig
	Rename  config.RenameConfig
	Planner config.PlannerConfig
}

// OptionsFromConfig projects the planning settings.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{Archive: cfg.Archive, Rename: cfg.Rename, Planner: cfg.Planner}
}

// Input is everything the planner needs from earlier stages.
type Input struct {
	SourceRoot string
	// OutputRoot is the run directory destinations are built under.
	OutputRoot string

	Keepers    []*types.FileRecord
	Thumbnails []*types.FileRecord
	Duplicates []dedup.Duplicate
}

// Section is a named slice of the plan, for reporting.
type Section struct {
	Name    string
	Actions []types.Action
}

// Plan is the ordered action list.
type Plan struct {
	Actions  []types.Action
	Sections []Section
}

// Empty reports whether no changes are needed.
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0
}

// Planner derives destinations. It is a pure function of its input apart
// from the exists check used to avoid names already on disk.
type Planner struct {
	opts   Options
	exists func(string) bool
	log    *logging.Logger
}

// New returns a planner that checks the real filesystem for collisions.
func New(opts Options) *Planner {
	return &Planner{opts: opts, exists: pathExists, log: logging.Get("planner")}
}

// WithExists replaces the on-disk collision check.
func (p *Planner) WithExists(exists func(string) bool) *Planner {
	p.exists = exists
	return p
}

// Plan builds actions in application order: thumbnails, duplicates, other
// files, grouped screenshots, renames, then archive moves. A destination
// equal to its source is dropped rather than planned.
func (p *Planner) Plan(in Input) *Plan {
	names := NewNameRegistry(p.exists)
	plan := &Plan{}
	add := func(section string, actions []types.Action) {
		if len(actions) == 0 {
			return
		}
		plan.Sections = append(plan.Sections, Section{Name: section, Actions: actions})
		plan.Actions = append(plan.Actions, actions...)
	}

	var thumbs []types.Action
	for _, r := range in.Thumbnails {
		dir := filepath.Join(in.OutputRoot, ToDeleteDir, ThumbnailsDir, filepath.Dir(relativeTo(in.SourceRoot, r.Path)))
		if a, ok := p.move(names, r, dir, types.ReasonThumbnail); ok {
			thumbs = append(thumbs, a)
		}
	}
	add("Thumbnails", thumbs)

	var dups []types.Action
	for _, d := range in.Duplicates {
		dir := filepath.Join(in.OutputRoot, ToDeleteDir, DuplicatesDir, filepath.Dir(relativeTo(in.SourceRoot, d.Record.Path)))
		if a, ok := p.move(names, d.Record, dir, d.Reason); ok {
			dups = append(dups, a)
		}
	}
	add("Duplicates", dups)

	// Keepers moved by earlier rules are not renamed or archived.
	var rest []*types.FileRecord
	var others []types.Action
	var screenshots []*types.FileRecord
	for _, r := range in.Keepers {
		switch {
		case p.opts.Planner.MoveOtherToKeep && r.FileType == types.FileTypeOther:
			dir := filepath.Join(in.OutputRoot, p.opts.Archive.RootDir, OtherDir, filepath.Dir(relativeTo(in.SourceRoot, r.Path)))
			if a, ok := p.move(names, r, dir, types.ReasonOtherKeep); ok {
				others = append(others, a)
			}
		case p.opts.Planner.GroupScreenshots && r.IsScreenshot:
			screenshots = append(screenshots, r)
		default:
			rest = append(rest, r)
		}
	}
	add("Other files", others)
	add("Screenshots", p.screenshots(names, in.OutputRoot, screenshots))

	var renames []types.Action
	current := make(map[*types.FileRecord]string, len(rest))
	if p.opts.Rename.Enabled {
		var media []*types.FileRecord
		for _, r := range rest {
			if r.FileType != types.FileTypeOther {
				media = append(media, r)
			}
		}
		renames = RenamePlan(media, p.opts.Rename.SequenceDigits, names)
		for _, a := range renames {
			current[a.Record] = a.Dst
		}
	}
	add("Renaming", renames)

	var archives []types.Action
	if p.opts.Archive.Enabled {
		for _, r := range rest {
			src := r.Path
			if renamed, ok := current[r]; ok {
				src = renamed
			}
			name := filepath.Base(src)
			dst := ArchivePath(in.OutputRoot, p.opts.Archive.RootDir, p.opts.Archive.UnknownDir, r, name)
			if SamePath(dst, src) {
				continue
			}
			dst = names.Reserve(filepath.Dir(dst), name, src, holdingDigits)
			archives = append(archives, types.Action{
				Kind:   types.ActionArchive,
				Reason: types.ReasonArchive,
				Src:    src,
				Dst:    dst,
				Record: r,
			})
		}
	}
	add("Archiving", archives)

	p.log.Info("plan built",
		"actions", len(plan.Actions), "thumbnails", len(thumbs), "duplicates", len(dups),
		"renames", len(renames), "archives", len(archives))
	return plan
}

func (p *Planner) move(names *NameRegistry, r *types.FileRecord, dir, reason string) (types.Action, bool) {
	if SamePath(filepath.Join(dir, r.Name()), r.Path) {
		return types.Action{}, false
	}
	dst := names.Reserve(dir, r.Name(), r.Path, holdingDigits)
	return types.Action{
		Kind:   types.ActionMove,
		Reason: reason,
		Src:    r.Path,
		Dst:    dst,
		Record: r,
	}, true
}

// screenshots moves each record to the templated directory and, when
// enabled, renames it there in capture order.
func (p *Planner) screenshots(names *NameRegistry, output string, records []*types.FileRecord) []types.Action {
	var actions []types.Action
	for i, r := range byCaptureOrder(records) {
		dir := ScreenshotDir(output, p.opts.Planner.ScreenshotTemplate, r)
		move, ok := p.move(names, r, dir, types.ReasonScreenshot)
		if !ok {
			continue
		}
		actions = append(actions, move)

		if !p.opts.Planner.RenameScreenshots {
			continue
		}
		name := sequenceName("IMG", capturedAt(r), i+1, minRenameDigits) + strings.ToLower(filepath.Ext(r.Path))
		if SamePath(filepath.Join(dir, name), move.Dst) {
			continue
		}
		dst := names.Reserve(dir, name, move.Dst, minRenameDigits)
		base := filepath.Base(dst)
		actions = append(actions, types.Action{
			Kind:       types.ActionRename,
			Reason:     types.ReasonScreenshotRename,
			Src:        move.Dst,
			Dst:        dst,
			NewName:    base,
			RenameBase: strings.TrimSuffix(base, filepath.Ext(base)),
			Record:     r,
		})
	}
	return actions
}
