// Package resume finds earlier runs and turns their journals back into
// executable work. A journal is only resumed after it passes structural
// validation, and only entries that did not reach SUCCESS are replayed.
package resume

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
	"github.com/jamesainslie/phototidy/pkg/tidy/manifest"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

var (
	// ErrNoManifest is returned when no run with a manifest can be found.
	ErrNoManifest = errors.New("no manifest found")

	// ErrInvalidManifest wraps validation failures.
	ErrInvalidManifest = errors.New("manifest failed validation")
)

// Run is one run directory under an output root.
type Run struct {
	Name    string
	Dir     string
	ModTime time.Time

	// Manifest is the canonical manifest path, or "" when the run never
	// finalized one.
	Manifest string
}

// ListRuns returns the run directories under outputRoot, newest first.
// Runs are ordered by name, which embeds the start time, then by
// modification time. A missing outputRoot yields no runs.
func ListRuns(outputRoot string) ([]Run, error) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	runs := []Run{}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), manifest.RunDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		dir := filepath.Join(outputRoot, e.Name())
		run := Run{Name: e.Name(), Dir: dir, ModTime: info.ModTime()}
		if p := manifest.PathFor(dir); fileExists(p) {
			run.Manifest = p
		}
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b Run) int {
		return cmp.Or(
			strings.Compare(b.Name, a.Name),
			b.ModTime.Compare(a.ModTime),
		)
	})
	return runs, nil
}

// FindLatestRun returns the newest run directory that holds a manifest.
func FindLatestRun(outputRoot string) (string, error) {
	runs, err := ListRuns(outputRoot)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		if r.Manifest != "" {
			return r.Dir, nil
		}
	}
	return "", fmt.Errorf("%w under %s", ErrNoManifest, outputRoot)
}

// FindManifest returns the manifest of the newest run under outputRoot.
func FindManifest(outputRoot string) (string, error) {
	dir, err := FindLatestRun(outputRoot)
	if err != nil {
		return "", err
	}
	return manifest.PathFor(dir), nil
}

// Locate resolves path to a manifest. path may be a manifest file, a run
// directory, or an output root holding run directories.
func Locate(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoManifest, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	if p := manifest.PathFor(path); fileExists(p) {
		return p, nil
	}
	return FindManifest(path)
}

// Validation lists the structural problems found in a manifest.
type Validation struct {
	Path   string
	Errors []string
}

// Valid reports whether no problems were found.
func (v *Validation) Valid() bool {
	return len(v.Errors) == 0
}

// Err returns nil for a valid manifest and an ErrInvalidManifest wrapper
// naming the first problems otherwise.
func (v *Validation) Err() error {
	if v.Valid() {
		return nil
	}
	shown := v.Errors
	if len(shown) > 3 {
		shown = shown[:3]
	}
	return fmt.Errorf("%w: %s: %s (%d problems)", ErrInvalidManifest, v.Path, strings.Join(shown, "; "), len(v.Errors))
}

func (v *Validation) addf(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks the manifest at path. Unreadable or missing files are
// reported as validation errors.
func Validate(path string) *Validation {
	j, err := manifest.Load(path)
	if err != nil {
		return &Validation{Path: path, Errors: []string{err.Error()}}
	}
	v := ValidateJournal(j)
	v.Path = path
	return v
}

// ValidateJournal checks a loaded journal: a RUN header is present, every
// line parsed, every ACTION record carries op_id, action, src_path and
// status, every status is known and no op_id repeats.
func ValidateJournal(j *manifest.Journal) *Validation {
	v := &Validation{}
	if j.Run == nil {
		v.addf("missing RUN header")
	}
	for _, le := range j.Skipped {
		v.addf("%s", le.Error())
	}

	seen := make(map[string]int, len(j.Entries))
	for i, e := range j.Entries {
		var missing []string
		if e.OpID == "" {
			missing = append(missing, "op_id")
		}
		if e.Action == "" {
			missing = append(missing, "action")
		}
		if e.SrcPath == "" {
			missing = append(missing, "src_path")
		}
		if e.Status == "" {
			missing = append(missing, "status")
		}
		if len(missing) > 0 {
			v.addf("entry %d: missing fields: %s", i+1, strings.Join(missing, ", "))
			continue
		}

		if !e.Status.Valid() {
			v.addf("entry %d: invalid status %q", i+1, e.Status)
		}
		if prev, dup := seen[e.OpID]; dup {
			v.addf("entry %d: duplicate op_id %s (first at entry %d)", i+1, e.OpID, prev)
			continue
		}
		seen[e.OpID] = i + 1
	}
	return v
}

// Pending returns the forward entries of j that did not complete. Rollback
// history is never replayed.
//
// A journal whose forward entries are all still PLANNED has never been
// executed and is returned in journal order, which is plan order. Otherwise
// entries are sorted by op_id, except that an entry whose source is another
// pending entry's destination runs after it, so chains such as a rename
// followed by an archive of the renamed file stay in order.
func Pending(j *manifest.Journal) []manifest.Entry {
	var out []manifest.Entry
	fresh := true
	for _, e := range j.Entries {
		if !types.ActionKind(e.Action).Valid() || e.Status.IsRollback() {
			continue
		}
		if e.Status != manifest.StatusPlanned {
			fresh = false
		}
		if !e.Status.Completed() {
			out = append(out, e)
		}
	}
	if fresh {
		return out
	}

	slices.SortFunc(out, func(a, b manifest.Entry) int {
		return strings.Compare(a.OpID, b.OpID)
	})
	return orderChains(out)
}

// orderChains moves every entry behind the pending entry that produces its
// source. Entries keep their relative order otherwise.
func orderChains(entries []manifest.Entry) []manifest.Entry {
	producer := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.DstPath == "" {
			continue
		}
		key := chainKey(e.DstPath)
		if _, taken := producer[key]; !taken {
			producer[key] = i
		}
	}

	const (
		unvisited = iota
		visiting
		emitted
	)
	state := make([]int, len(entries))
	out := make([]manifest.Entry, 0, len(entries))

	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		if p, ok := producer[chainKey(entries[i].SrcPath)]; ok && p != i && state[p] == unvisited {
			visit(p)
		}
		state[i] = emitted
		out = append(out, entries[i])
	}
	for i := range entries {
		visit(i)
	}
	return out
}

func chainKey(path string) string {
	return filepath.Clean(manifest.NormalizePath(path))
}

// IsResumable reports whether the manifest at path is valid and still has
// work to do.
func IsResumable(path string) bool {
	j, err := manifest.Load(path)
	if err != nil {
		return false
	}
	if !ValidateJournal(j).Valid() {
		return false
	}
	return len(Pending(j)) > 0
}

// Plan loads and validates the manifest at path and returns its pending
// entries. An invalid manifest yields ErrInvalidManifest.
func Plan(path string) ([]manifest.Entry, error) {
	j, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	v := ValidateJournal(j)
	v.Path = path
	if err := v.Err(); err != nil {
		return nil, err
	}

	pending := Pending(j)
	logging.Get("resume").Info("resume plan loaded",
		"manifest", path, "entries", len(j.Entries), "pending", len(pending))
	return pending, nil
}

// BuildActions rebuilds executable actions from entries. Entries without
// a destination cannot be replayed and are left out.
func BuildActions(entries []manifest.Entry) []types.Action {
	actions := make([]types.Action, 0, len(entries))
	for _, e := range entries {
		if e.DstPath == "" {
			continue
		}
		actions = append(actions, e.ToAction())
	}
	return actions
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
