// Package manifest implements the run journal: an NDJSON file holding one
// RUN header followed by one ACTION record per planned operation.
//
// The journal is written once through a working file that is atomically
// renamed into place, mutated by whole-file rewrites, and extended by
// appends when new history (rollback outcomes) is recorded.
package manifest

import (
	"errors"
	"slices"
)

// File names inside a run's REPORT directory.
const (
	ReportDirName = "REPORT"
	FileName      = "manifest.jsonl"
	PartialSuffix = ".partial"
)

// RecordType discriminates journal lines.
type RecordType string

// Record types.
const (
	RecordRun    RecordType = "RUN"
	RecordAction RecordType = "ACTION"
)

// Status is the lifecycle state of an ACTION record.
type Status string

// Forward lifecycle.
const (
	StatusPlanned Status = "PLANNED"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Rollback outcomes. Each is recorded on a new entry.
const (
	StatusRolledBack       Status = "ROLLED_BACK"
	StatusRollbackTrashed  Status = "ROLLBACK_TRASHED"
	StatusRollbackConflict Status = "ROLLBACK_CONFLICT"
	StatusRollbackSkipped  Status = "ROLLBACK_SKIPPED"
	StatusRollbackError    Status = "ROLLBACK_ERROR"
)

// Legacy terminal statuses. Older journals stored the filesystem outcome
// in status instead of result_status; they are read but never written.
const (
	StatusMoved   Status = "MOVED"
	StatusCopied  Status = "COPIED"
	StatusRenamed Status = "RENAMED"
)

var allStatuses = []Status{
	StatusPlanned, StatusStarted, StatusSuccess, StatusFailed,
	StatusRolledBack, StatusRollbackTrashed, StatusRollbackConflict,
	StatusRollbackSkipped, StatusRollbackError,
	StatusMoved, StatusCopied, StatusRenamed,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return slices.Contains(allStatuses, s)
}

// Completed reports whether a forward entry finished successfully.
func (s Status) Completed() bool {
	switch s {
	case StatusSuccess, StatusMoved, StatusCopied, StatusRenamed:
		return true
	}
	return false
}

// IsRollback reports whether s is a rollback outcome.
func (s Status) IsRollback() bool {
	switch s {
	case StatusRolledBack, StatusRollbackTrashed, StatusRollbackConflict, StatusRollbackSkipped, StatusRollbackError:
		return true
	}
	return false
}

// Undone reports whether a rollback outcome means the forward work has
// been taken out of the output tree.
func (s Status) Undone() bool {
	return s == StatusRolledBack || s == StatusRollbackTrashed || s == StatusRollbackConflict
}

// Errors returned by journal operations.
var (
	ErrNoRunHeader       = errors.New("manifest has no RUN header")
	ErrEntryNotFound     = errors.New("manifest entry not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrFinalized         = errors.New("manifest writer already finalized")
)

// CanTransition reports whether an entry may move from one status to
// another. SUCCESS is a sink. STARTED may be re-entered from STARTED or
// FAILED so that interrupted or failed work is re-attempted by a later run.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusStarted:
		return from == StatusPlanned || from == StatusStarted || from == StatusFailed
	case StatusSuccess, StatusFailed:
		return from == StatusStarted
	}
	return false
}

// RunHeader is the first record of a manifest.
type RunHeader struct {
	RecordType RecordType `json:"record_type"`
	RunID      string     `json:"run_id"`
	Mode       string     `json:"mode"`
	SourceDir  string     `json:"source_dir"`
	OutputDir  string     `json:"output_dir"`
	CreatedAt  string     `json:"created_at"`
}

// Entry is an ACTION record: an action's projection plus its outcome and
// a snapshot of the originating file's metadata.
type Entry struct {
	RecordType RecordType `json:"record_type"`
	OpID       string     `json:"op_id"`
	Action     string     `json:"action"`
	SrcPath    string     `json:"src_path"`
	DstPath    string     `json:"dst_path"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason"`

	// ResultStatus records MOVED, COPIED or RENAMED once Status is SUCCESS.
	ResultStatus string `json:"result_status,omitempty"`

	NewName    string `json:"new_name,omitempty"`
	RenameBase string `json:"rename_base,omitempty"`

	// RollbackOf and RollbackAt identify the forward entry a rollback
	// record undoes and the rollback attempt that produced it.
	RollbackOf string `json:"rollback_of,omitempty"`
	RollbackAt string `json:"rollback_at,omitempty"`

	ErrorCode      string  `json:"error_code"`
	ErrorMessage   string  `json:"error_message"`
	RetryCount     int     `json:"retry_count"`
	ElapsedTimeSec float64 `json:"elapsed_time_sec"`
	UpdatedAt      string  `json:"updated_at,omitempty"`

	SizeBytes          int64   `json:"size_bytes"`
	Resolution         []int   `json:"resolution"`
	HashMD5            string  `json:"hash_md5"`
	HashSHA256         string  `json:"hash_sha256"`
	TimestampLocked    string  `json:"timestamp_locked"`
	TimestampSource    string  `json:"timestamp_source"`
	FileType           string  `json:"file_type"`
	IsLivePair         bool    `json:"is_live_pair"`
	PairID             string  `json:"pair_id"`
	PairConfidence     float64 `json:"pair_confidence"`
	IsScreenshot       bool    `json:"is_screenshot"`
	ScreenshotEvidence string  `json:"screenshot_evidence"`
}

// ClearError resets the error fields.
func (e *Entry) ClearError() {
	e.ErrorCode, e.ErrorMessage = "", ""
}
