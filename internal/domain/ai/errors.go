package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

var (
	// ErrMalformedResponse means the backend answered with something that is not the expected shape.
	ErrMalformedResponse = errors.New("malformed ai response")
	// ErrEmptyResponse means the backend answered with no content.
	ErrEmptyResponse = errors.New("empty ai response")
)

// Backend operations named in BackendError.
const (
	OpAnalyze   = "analyze"
	OpChat      = "chat"
	OpRewrite   = "rewrite"
	OpNextSteps = "next_steps"
)

// BackendError wraps any failure of the language-model backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ai backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
