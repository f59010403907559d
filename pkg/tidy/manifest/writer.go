package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer streams a new manifest into a working file. Nothing is visible at
// the canonical path until Finalize renames the working file into place.
type Writer struct {
	mu        sync.Mutex
	path      string
	partial   string
	file      *os.File
	buf       *bufio.Writer
	entries   int
	finalized bool
}

// Create opens <path>.partial for writing, truncating a leftover from an
// earlier crash. Parent directories are created.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	partial := path + PartialSuffix
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create working manifest: %w", err)
	}

	return &Writer{
		path:    path,
		partial: partial,
		file:    f,
		buf:     bufio.NewWriter(f),
	}, nil
}

// Path returns the canonical manifest path.
func (w *Writer) Path() string {
	return w.path
}

// WriteRun writes the RUN header. It must be the first record.
func (w *Writer) WriteRun(h RunHeader) error {
	h.RecordType = RecordRun
	return w.writeLine(h)
}

// WriteEntry appends an ACTION record.
func (w *Writer) WriteEntry(e Entry) error {
	e.RecordType = RecordAction
	if err := w.writeLine(e); err != nil {
		return err
	}
	w.mu.Lock()
	w.entries++
	w.mu.Unlock()
	return nil
}

// Entries returns the number of ACTION records written so far.
func (w *Writer) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

func (w *Writer) writeLine(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrFinalized
	}

	data, err := encodeRecord(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Finalize flushes and syncs the working file and atomically renames it to
// the canonical path.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to flush manifest: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}
	if err := os.Rename(w.partial, w.path); err != nil {
		return fmt.Errorf("failed to finalize manifest: %w", err)
	}
	syncDir(filepath.Dir(w.path))
	return nil
}

// Abort closes and removes the working file. It is a no-op after Finalize.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil
	}
	w.finalized = true
	_ = w.file.Close()
	if err := os.Remove(w.partial); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove working manifest: %w", err)
	}
	return nil
}

// syncDir makes a rename durable. Failures are ignored; not every
// filesystem supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
