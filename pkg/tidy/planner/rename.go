package planner

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

const minRenameDigits = 4

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local)

// byCaptureOrder sorts by locked timestamp, then lowercase name, then
// lowercase path.
func byCaptureOrder(records []*types.FileRecord) []*types.FileRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *types.FileRecord) int {
		return cmp.Or(
			cmp.Compare(a.TimestampLocked, b.TimestampLocked),
			cmp.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name())),
			cmp.Compare(strings.ToLower(a.Path), strings.ToLower(b.Path)),
		)
	})
	return sorted
}

func capturedAt(r *types.FileRecord) time.Time {
	if t, ok := types.ParseTimestamp(r.TimestampLocked); ok {
		return t
	}
	return epoch
}

// sequenceName is PREFIX_YYYYMMDD_HHMMSS_NNNN.
func sequenceName(prefix string, at time.Time, seq, digits int) string {
	return fmt.Sprintf("%s_%s_%0*d", prefix, at.Format("20060102_150405"), digits, seq)
}

// RenamePlan builds in-place RENAME actions giving each record a
// capture-time name. Members of a live pair share one sequence number and
// the earliest timestamp of the pair. Records already carrying their
// target name produce no action.
func RenamePlan(records []*types.FileRecord, digits int, names *NameRegistry) []types.Action {
	digits = max(digits, minRenameDigits)
	sorted := byCaptureOrder(records)

	pairTime := make(map[string]time.Time)
	for _, r := range sorted {
		if !r.IsLivePair || r.PairID == "" {
			continue
		}
		t, ok := types.ParseTimestamp(r.TimestampLocked)
		if !ok {
			continue
		}
		if cur, seen := pairTime[r.PairID]; !seen || t.Before(cur) {
			pairTime[r.PairID] = t
		}
	}

	sequence := make(map[string]int)
	next := 1
	var actions []types.Action
	for _, r := range sorted {
		group := "single:" + r.Path
		if r.IsLivePair && r.PairID != "" {
			group = r.PairID
		}
		if _, ok := sequence[group]; !ok {
			sequence[group] = next
			next++
		}

		at := capturedAt(r)
		if t, ok := pairTime[r.PairID]; ok && r.IsLivePair {
			at = t
		}
		prefix := "IMG"
		if r.FileType == types.FileTypeVideo && !r.IsLivePair {
			prefix = "VID"
		}

		dir := filepath.Dir(r.Path)
		name := sequenceName(prefix, at, sequence[group], digits) + strings.ToLower(filepath.Ext(r.Path))
		if SamePath(filepath.Join(dir, name), r.Path) {
			continue
		}
		dst := names.Reserve(dir, name, r.Path, digits)
		base := filepath.Base(dst)
		actions = append(actions, types.Action{
			Kind:       types.ActionRename,
			Reason:     types.ReasonRename,
			Src:        r.Path,
			Dst:        dst,
			NewName:    base,
			RenameBase: strings.TrimSuffix(base, filepath.Ext(base)),
			Record:     r,
		})
	}
	return actions
}
