package massimport

import (
	"errors"
	"fmt"
)

// ValidationError marks a candidate as structurally unusable. It is recorded
// as an error outcome and never reaches the resolver.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid candidate: " + e.Reason
}

// CollaboratorError wraps a failure from an external collaborator (archive
// query, submission API, photo pipeline). These are the only errors that feed
// the orchestrator's circuit breaker.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func collaboratorErr(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}

// IsCollaboratorError reports whether err originated at an external boundary.
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
