package resolver

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a resolution failure by how much of the resolution
// it aborts.
type ErrorClass string

const (
	// ErrorClassFatal aborts the whole resolution. Only the root repository
	// load produces fatal errors.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassSkipped means the smallest affected unit (a nested
	// repository subtree, a feature, a single content entry) was skipped
	// and resolution continued.
	ErrorClassSkipped ErrorClass = "skipped"

	// ErrorClassAdvisory carries information only; nothing was skipped.
	ErrorClassAdvisory ErrorClass = "advisory"
)

// ResolveError is a classified resolution error with diagnostic context.
type ResolveError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the failure for programmatic handling.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Reference is the repository reference involved, if any.
	Reference string `json:"reference,omitempty"`

	// Feature is the feature name involved, if any.
	Feature string `json:"feature,omitempty"`

	// PID is the configuration PID involved, if any.
	PID string `json:"pid,omitempty"`

	// File is the config file final name involved, if any.
	File string `json:"file,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Reference != "":
		msg += fmt.Sprintf(" (reference=%s)", e.Reference)
	case e.Feature != "" && e.PID != "":
		msg += fmt.Sprintf(" (feature=%s, pid=%s)", e.Feature, e.PID)
	case e.Feature != "" && e.File != "":
		msg += fmt.Sprintf(" (feature=%s, file=%s)", e.Feature, e.File)
	case e.Feature != "":
		msg += fmt.Sprintf(" (feature=%s)", e.Feature)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Is matches on class and code.
func (e *ResolveError) Is(target error) bool {
	t, ok := target.(*ResolveError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewFatalError creates a resolution-aborting error.
func NewFatalError(message string, err error) *ResolveError {
	return &ResolveError{Class: ErrorClassFatal, Message: message, Err: err}
}

// NewSkippedError creates an error describing a skipped unit.
func NewSkippedError(message string, err error) *ResolveError {
	return &ResolveError{Class: ErrorClassSkipped, Message: message, Err: err}
}

// NewAdvisoryError creates an informational error.
func NewAdvisoryError(message string) *ResolveError {
	return &ResolveError{Class: ErrorClassAdvisory, Message: message}
}

// WithCode adds an error code.
func (e *ResolveError) WithCode(code string) *ResolveError {
	e.Code = code
	return e
}

// WithReference adds the repository reference involved.
func (e *ResolveError) WithReference(ref string) *ResolveError {
	e.Reference = ref
	return e
}

// WithFeature adds the feature name involved.
func (e *ResolveError) WithFeature(name string) *ResolveError {
	e.Feature = name
	return e
}

// WithPID adds the configuration PID involved.
func (e *ResolveError) WithPID(pid string) *ResolveError {
	e.PID = pid
	return e
}

// WithFile adds the config file name involved.
func (e *ResolveError) WithFile(file string) *ResolveError {
	e.File = file
	return e
}

// IsFatal returns true if the error aborts the whole resolution.
func IsFatal(err error) bool {
	var e *ResolveError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}

// Error codes for the resolution failure taxonomy.
const (
	ErrCodeFetchOrParse        = "FETCH_OR_PARSE"
	ErrCodeNestedRepository    = "NESTED_REPOSITORY"
	ErrCodeCyclicReference     = "CYCLIC_REFERENCE"
	ErrCodeUnsupportedResolver = "UNSUPPORTED_RESOLVER"
	ErrCodeInvalidProperties   = "INVALID_PROPERTIES"
	ErrCodeDeployFailed        = "DEPLOY_FAILED"
	ErrCodeNoWorkDir           = "NO_WORK_DIR"
	ErrCodeDependencyBundle    = "DEPENDENCY_BUNDLE"
	ErrCodeUnmetDependency     = "UNMET_DEPENDENCY"
)
