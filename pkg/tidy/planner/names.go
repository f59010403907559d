package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NameRegistry tracks destination names already planned per directory,
// compared case-insensitively, and resolves collisions with a numeric
// suffix.
type NameRegistry struct {
	dirs   map[string]map[string]bool
	exists func(path string) bool
}

// NewNameRegistry returns a registry. exists reports whether a path is
// already taken on disk; nil uses os.Lstat.
func NewNameRegistry(exists func(path string) bool) *NameRegistry {
	if exists == nil {
		exists = pathExists
	}
	return &NameRegistry{dirs: make(map[string]map[string]bool), exists: exists}
}

// Reserve returns a path in dir for name that is neither planned nor on
// disk, appending _NNN (digits wide) before the extension until unique.
// An existing file at src itself is not a conflict.
func (r *NameRegistry) Reserve(dir, name, src string, digits int) string {
	key := foldPath(dir)
	planned := r.dirs[key]
	if planned == nil {
		planned = make(map[string]bool)
		r.dirs[key] = planned
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for seq := 1; ; seq++ {
		path := filepath.Join(dir, candidate)
		taken := r.exists(path) && !SamePath(path, src)
		if !planned[strings.ToLower(candidate)] && !taken {
			planned[strings.ToLower(candidate)] = true
			return path
		}
		candidate = fmt.Sprintf("%s_%0*d%s", stem, digits, seq, ext)
	}
}

// Planned reports whether name is reserved in dir.
func (r *NameRegistry) Planned(dir, name string) bool {
	return r.dirs[foldPath(dir)][strings.ToLower(name)]
}

// SamePath compares two paths after cleaning, ignoring case.
func SamePath(a, b string) bool {
	return foldPath(a) == foldPath(b)
}

func foldPath(p string) string {
	return strings.ToLower(filepath.Clean(p))
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
