package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Index returns the position of the entry with opID, or -1.
func (j *Journal) Index(opID string) int {
	for i := range j.Entries {
		if j.Entries[i].OpID == opID {
			return i
		}
	}
	return -1
}

// Find returns the entry with opID.
func (j *Journal) Find(opID string) (*Entry, bool) {
	i := j.Index(opID)
	if i < 0 {
		return nil, false
	}
	return &j.Entries[i], true
}

// Add appends a new entry in memory.
func (j *Journal) Add(e Entry) {
	e.RecordType = RecordAction
	j.Entries = append(j.Entries, e)
}

// Transition moves the entry with opID to status, applying mutate to fill
// the outcome fields. Illegal transitions are rejected.
func (j *Journal) Transition(opID string, to Status, mutate func(*Entry)) error {
	e, ok := j.Find(opID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, opID)
	}
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, opID, e.Status, to)
	}
	e.Status = to
	e.UpdatedAt = time.Now().Format(time.RFC3339)
	if mutate != nil {
		mutate(e)
	}
	return nil
}

// Persist rewrites the whole manifest at path through a temp file in the
// same directory and an atomic rename. A crash leaves either the old or
// the new file, never a mix.
func (j *Journal) Persist(path string) error {
	if j.Run == nil {
		return ErrNoRunHeader
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	buf := bufio.NewWriter(tmp)
	write := func(v any) error {
		line, err := encodeRecord(v)
		if err != nil {
			return err
		}
		_, err = buf.Write(line)
		return err
	}

	run := *j.Run
	run.RecordType = RecordRun
	if err := write(run); err != nil {
		cleanup()
		return fmt.Errorf("failed to encode RUN record: %w", err)
	}
	for i := range j.Entries {
		e := j.Entries[i]
		e.RecordType = RecordAction
		if err := write(e); err != nil {
			cleanup()
			return fmt.Errorf("failed to encode entry %s: %w", e.OpID, err)
		}
	}

	if err := buf.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// UpdateStatus loads path, transitions one entry and persists the result.
func UpdateStatus(path, opID string, to Status, mutate func(*Entry)) error {
	j, err := Load(path)
	if err != nil {
		return err
	}
	if err := j.Transition(opID, to, mutate); err != nil {
		return err
	}
	return j.Persist(path)
}

// Append adds entries to the end of an existing manifest without
// rewriting it. Each line is written whole and the file is synced.
func Append(path string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var data []byte
	for _, e := range entries {
		e.RecordType = RecordAction
		line, err := encodeRecord(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", e.OpID, err)
		}
		data = append(data, line...)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open manifest for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	return f.Close()
}
