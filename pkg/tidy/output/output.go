// Package output renders phototidy results (plans, executions, rollbacks
// and run listings) in various formats (pretty, plain, json, yaml, csv).
//
// The package uses a registry pattern so the format can be selected at
// runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/logging"
)

// Kind names what a Result describes.
type Kind string

// Result kinds.
const (
	KindPlan     Kind = "plan"
	KindExecute  Kind = "execute"
	KindRollback Kind = "rollback"
	KindRuns     Kind = "runs"
)

// Stat is one labelled counter, optionally with a byte total.
type Stat struct {
	Label      string `json:"label" yaml:"label"`
	Count      int    `json:"count" yaml:"count"`
	Bytes      int64  `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	BytesHuman string `json:"bytes_human,omitempty" yaml:"bytes_human,omitempty"`
}

// ActionLine is one filesystem operation, planned or performed.
type ActionLine struct {
	OpID       string `json:"op_id" yaml:"op_id"`
	Action     string `json:"action" yaml:"action"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Status     string `json:"status" yaml:"status"`
	Src        string `json:"src_path" yaml:"src_path"`
	Dst        string `json:"dst_path" yaml:"dst_path"`
	Size       int64  `json:"size_bytes" yaml:"size_bytes"`
	SizeHuman  string `json:"size_human" yaml:"size_human"`
	ErrorCode  string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	RetryCount int    `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
}

// Section groups actions under a heading such as TO_DELETE/DUPLICATES.
type Section struct {
	Name    string       `json:"name" yaml:"name"`
	Actions []ActionLine `json:"actions" yaml:"actions"`
}

// RunInfo describes one run directory.
type RunInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Dir       string    `json:"dir" yaml:"dir"`
	Manifest  string    `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
	Mode      string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Entries   int       `json:"entries" yaml:"entries"`
	Pending   int       `json:"pending" yaml:"pending"`
	Resumable bool      `json:"resumable" yaml:"resumable"`
}

// Result contains everything a formatter renders.
type Result struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title" yaml:"title"`

	RunID    string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	Stats    []Stat    `json:"stats,omitempty" yaml:"stats,omitempty"`
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
	Runs     []RunInfo `json:"runs,omitempty" yaml:"runs,omitempty"`

	Duration    time.Duration `json:"duration" yaml:"duration"`
	Warnings    []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool          `json:"interrupted" yaml:"interrupted"`
	OK          bool          `json:"ok" yaml:"ok"`
}

// Actions returns every action of every section in order.
func (r *Result) Actions() []ActionLine {
	var out []ActionLine
	for _, s := range r.Sections {
		out = append(out, s.Actions...)
	}
	return out
}

// ActionCount returns the number of actions across all sections.
func (r *Result) ActionCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Actions)
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// Report file names written into a run's REPORT directory.
const (
	SummaryFile = "summary.txt"
	CSVFile     = "report.csv"
)

// WriteReports renders r as plain text and CSV into dir.
func WriteReports(dir string, r *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	files := []struct {
		name   string
		format Formatter
	}{
		{SummaryFile, &PlainFormatter{}},
		{CSVFile, &CSVFormatter{}},
	}
	for _, f := range files {
		var buf bytes.Buffer
		if err := f.format.Format(&buf, r); err != nil {
			return err
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		logging.Get("output").Debug("report written", "path", path, "bytes", buf.Len())
	}
	return nil
}
