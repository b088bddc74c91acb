package interview

import "errors"

// Caller-facing errors. Collaborator failures never surface through them.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("session not found")
	ErrInvalidState  = errors.New("invalid session state")
	ErrOutOfSequence = errors.New("answer out of sequence")
	ErrUnavailable   = errors.New("storage unavailable")
)

// Errors a Repository reports to the processor.
var (
	ErrSessionMissing = errors.New("session does not exist")
	ErrStepConflict   = errors.New("session step changed concurrently")
)
