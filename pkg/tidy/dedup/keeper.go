// Package dedup finds byte-identical and visually similar files and picks
// one keeper per group.
package dedup

import (
	"slices"
	"strings"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// KeeperLess orders candidates best first: larger pixel area, then larger
// byte size, then the lexicographically smaller path. The order is total,
// so the keeper never depends on input order.
func KeeperLess(a, b *types.FileRecord) bool {
	if aa, ba := a.Area(), b.Area(); aa != ba {
		return aa > ba
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.Path < b.Path
}

// SelectKeeper returns the best record of a non-empty group and the rest in
// their original order.
func SelectKeeper(group []*types.FileRecord) (keeper *types.FileRecord, rest []*types.FileRecord) {
	best := 0
	for i := 1; i < len(group); i++ {
		if KeeperLess(group[i], group[best]) {
			best = i
		}
	}
	rest = make([]*types.FileRecord, 0, len(group)-1)
	rest = append(rest, group[:best]...)
	rest = append(rest, group[best+1:]...)
	return group[best], rest
}

// Duplicate is a record that lost keeper selection.
type Duplicate struct {
	Record *types.FileRecord
	Keeper *types.FileRecord
	Reason string
}

// Group is one set of matching records with its keeper.
type Group struct {
	Key        string
	Keeper     *types.FileRecord
	Duplicates []*types.FileRecord
}

// Result is the output of a dedup pass. Keepers preserve input order.
type Result struct {
	Keepers    []*types.FileRecord
	Duplicates []Duplicate
	Groups     []Group

	// Hashed is the number of files whose contents were read.
	Hashed int
	// Unreadable lists records kept because no fingerprint could be computed.
	Unreadable []*types.FileRecord
}

// DuplicateRecords returns just the duplicate records.
func (r *Result) DuplicateRecords() []*types.FileRecord {
	out := make([]*types.FileRecord, len(r.Duplicates))
	for i, d := range r.Duplicates {
		out[i] = d.Record
	}
	return out
}

// collect turns groups into a Result, keeping survivors in the order they
// appear in records.
func collect(records []*types.FileRecord, groups [][]*types.FileRecord, keys []string, reason string) *Result {
	res := &Result{}
	lost := make(map[*types.FileRecord]bool)

	for i, members := range groups {
		if len(members) < 2 {
			continue
		}
		keeper, rest := SelectKeeper(members)
		slices.SortFunc(rest, func(a, b *types.FileRecord) int {
			return strings.Compare(a.Path, b.Path)
		})
		res.Groups = append(res.Groups, Group{Key: keys[i], Keeper: keeper, Duplicates: rest})
		for _, d := range rest {
			lost[d] = true
			res.Duplicates = append(res.Duplicates, Duplicate{Record: d, Keeper: keeper, Reason: reason})
		}
	}

	for _, r := range records {
		if !lost[r] {
			res.Keepers = append(res.Keepers, r)
		}
	}
	return res
}
