package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned for any id that was not produced by a successful upload.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob means an id was inserted twice. Ids come from a UUID generator,
	// so hitting this is an invariant violation.
	ErrDuplicateJob = errors.New("duplicate job id")

	// ErrInvalidInput marks requests rejected before any work is done.
	ErrInvalidInput = errors.New("invalid input")
)

// Upload stages reported by ProcessingError.
const (
	StageStore    = "store"
	StageExtract  = "extract"
	StageAnalyze  = "analyze"
	StageRegister = "register"
)

// ProcessingError is returned by Upload when any stage fails or the request is cancelled mid-way.
// No job record exists for JobID when this error is returned.
type ProcessingError struct {
	JobID string
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing job %s failed at %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
