package transcription

import (
	"errors"
	"fmt"

	"github.com/aistack/controlpanel/internal/shared/upstream"
)

// Failure kinds. Match with errors.Is on the error a pipeline returns.
var (
	ErrDecode             = errors.New("decode error")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrUpstream           = errors.New("upstream error")
	ErrBackendUnavailable = upstream.ErrUnavailable
	// ErrScratch is a local I/O fault staging audio; no backend was contacted.
	ErrScratch = errors.New("scratch file error")
	// ErrCanceled means the caller gave up before the backend answered.
	ErrCanceled = upstream.ErrAbandoned
)

// UpstreamError carries a backend's non-success status and body.
type UpstreamError = upstream.Error

// StageError reports the stage a pipeline halted at and why.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func fail(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// kindOf classifies a backend error.
func kindOf(err error) error {
	switch {
	case errors.Is(err, ErrScratch):
		return ErrScratch
	case errors.Is(err, upstream.ErrAbandoned):
		return ErrCanceled
	case upstream.IsUnavailable(err):
		return ErrBackendUnavailable
	}
	return ErrUpstream
}
