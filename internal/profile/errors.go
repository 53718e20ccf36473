package profile

import (
	"errors"
	"fmt"

	"github.com/tradewire/tradewire/internal/validation"
)

var (
	// ErrSaveInFlight is returned when a save is already running for the section.
	ErrSaveInFlight = errors.New("save_in_flight")
	// ErrBufferClosed is returned for operations on a buffer that is not open.
	ErrBufferClosed = errors.New("edit_buffer_not_open")
)

// Validation failure reasons.
const (
	ReasonInvalidFields   = "invalid_fields"
	ReasonInvalidFileType = "invalid_file_type"
	ReasonFileTooLarge    = "file_too_large"
)

// ValidationError means bad input was caught before any store call was made.
type ValidationError struct {
	Reason     string
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("validation failed (%s): %v", e.Reason, map[string]string(e.Violations))
	}
	return "validation failed: " + e.Reason
}

// PersistError means the record store write failed. Nothing was written; the
// draft is safe to retry.
type PersistError struct {
	Section Section
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Section, e.Err)
}
func (e *PersistError) Unwrap() error { return e.Err }

// ReconcileError means the write succeeded server-side but the canonical
// refresh failed, so local readers may be stale. Callers must not conflate
// this with a full failure: re-submitting would repeat a write that already
// landed.
type ReconcileError struct {
	Section Section
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("saved %s but refresh failed: %v", e.Section, e.Err)
}
func (e *ReconcileError) Unwrap() error { return e.Err }

// UploadError means the asset store upload or URL retrieval failed. The
// previous avatar is untouched.
type UploadError struct {
	Stage string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload (%s): %v", e.Stage, e.Err)
}
func (e *UploadError) Unwrap() error { return e.Err }
