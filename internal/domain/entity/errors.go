package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTransient         = errors.New("transient failure")
	ErrMalformedDecision = errors.New("malformed planner decision")
	ErrPlannerProtocol   = errors.New("planner protocol error")
	ErrToolEscalation    = errors.New("tool failure escalated")
	ErrCancelled         = errors.New("session cancelled")
)

// ValidationError describes a single rejected field. It matches ErrInvalidArgument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// ErrorKind classifies a failed tool invocation for the ledger.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindInvalidArgument ErrorKind = "invalid_argument"
	ErrorKindTransient       ErrorKind = "transient"
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindInternal        ErrorKind = "internal"
)

// ClassifyError maps an error to the kind recorded on failure observations.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return ErrorKindInvalidArgument
	case errors.Is(err, ErrTransient):
		return ErrorKindTransient
	case isDeadline(err):
		return ErrorKindTimeout
	default:
		return ErrorKindInternal
	}
}

// Retryable reports whether a tool failure is worth retrying with backoff.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTransient || k == ErrorKindTimeout
}

type deadlineError interface {
	Timeout() bool
}

func isDeadline(err error) bool {
	var de deadlineError
	if errors.As(err, &de) {
		return de.Timeout()
	}
	return false
}

// ToolError wraps a failure raised while invoking a named tool.
type ToolError struct {
	Tool string
	Kind ErrorKind
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
