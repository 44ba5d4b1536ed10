package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidElementID      = errors.New("invalid element ID")
	ErrUnnormalizedPath      = errors.New("file path is not normalized")
	ErrInvalidWeight         = errors.New("relationship weight must be between 0 and 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrEmptyContent          = errors.New("content cannot be empty")
)

// Indexing run errors
var (
	ErrSyntax             = errors.New("syntax error")
	ErrIndexingInProgress = errors.New("indexing already in progress for this project")
	ErrProjectRoot        = errors.New("project root is not a readable directory")
)

// ErrorKind labels the failure class of an indexing run
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindPartial       ErrorKind = "partial-failure"
	KindConfiguration ErrorKind = "fatal-configuration"
	KindStore         ErrorKind = "store-failure"
)

// RunError is returned by an indexing run that did not complete.
// State names the pipeline state the run was in when it failed.
type RunError struct {
	Kind  ErrorKind
	State string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Partial reports whether store writes may have been committed before the failure
func (e *RunError) Partial() bool {
	return e.Kind != KindConfiguration
}

// IsKind reports whether err is a RunError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *RunError
	return errors.As(err, &re) && re.Kind == kind
}
