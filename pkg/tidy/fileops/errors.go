package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jamesainslie/phototidy/pkg/tidy/retry"
)

// Logical precondition failures. All wrap retry.ErrPermanent and are never retried.
var (
	ErrDestinationExists    = fmt.Errorf("%w: destination already exists", retry.ErrPermanent)
	ErrCrossDirectoryRename = fmt.Errorf("%w: rename target is in a different directory", retry.ErrPermanent)
	ErrCrossVolumeRename    = fmt.Errorf("%w: rename across volumes", retry.ErrPermanent)
	ErrCrossVolumeBlocked   = fmt.Errorf("%w: cross-volume move disabled by policy", retry.ErrPermanent)
	ErrSourceMissing        = fmt.Errorf("%w: source does not exist", retry.ErrPermanent)
	ErrInvalidAction        = fmt.Errorf("%w: invalid action", retry.ErrPermanent)
)

// Error codes recorded in the manifest.
const (
	CodeDestExists        = "E_DEST_EXISTS"
	CodeCrossDirRename    = "E_CROSS_DIR_RENAME"
	CodeCrossVolumeRename = "E_CROSS_VOLUME_RENAME"
	CodeCrossVolumeMove   = "E_CROSS_VOLUME_BLOCKED"
	CodeSourceMissing     = "E_SOURCE_MISSING"
	CodeInvalidAction     = "E_INVALID_ACTION"
	CodeCancelled         = "E_CANCELLED"
	CodePermission        = "E_PERMISSION"
	CodeIO                = "E_IO"
)

// ErrorCode maps an error onto its manifest error code. nil maps to "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDestinationExists), errors.Is(err, fs.ErrExist):
		return CodeDestExists
	case errors.Is(err, ErrCrossDirectoryRename):
		return CodeCrossDirRename
	case errors.Is(err, ErrCrossVolumeRename):
		return CodeCrossVolumeRename
	case errors.Is(err, ErrCrossVolumeBlocked):
		return CodeCrossVolumeMove
	case errors.Is(err, ErrSourceMissing), errors.Is(err, fs.ErrNotExist):
		return CodeSourceMissing
	case errors.Is(err, ErrInvalidAction):
		return CodeInvalidAction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, fs.ErrPermission):
		return CodePermission
	default:
		return CodeIO
	}
}
