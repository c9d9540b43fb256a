package models

import (
	"errors"
	"fmt"
	"sort"
)

// ErrorKind classifies failures so callers receive a structured
// (kind, message) pair instead of leaked internals.
type ErrorKind string

const (
	// ErrorKindSchema covers malformed design payloads, unknown merge
	// fields and out-of-bounds elements. Schema errors block publishing
	// and job creation.
	ErrorKindSchema ErrorKind = "schema"
	// ErrorKindResolution covers unknown entity ids, member/license/club
	// mismatches and missing paper profiles. Reported before any
	// rendering starts.
	ErrorKindResolution ErrorKind = "resolution"
	// ErrorKindExecution covers render/compile failures during a job
	// attempt. Recorded on the job; always retryable.
	ErrorKindExecution ErrorKind = "execution"
	// ErrorKindStorage covers artifact persistence failures; treated as
	// execution errors for the job state machine.
	ErrorKindStorage ErrorKind = "storage"
)

// Error is the structured error surfaced to callers of the core.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a structured error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to execution for
// untyped errors reaching the job state machine.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindExecution
}

// ErrNotFound is returned by lookups when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ValidationErrors maps a field path (e.g.
// "design_payload.elements[2].width_mm") to the messages recorded for it.
type ValidationErrors map[string][]string

// Add records a message under the given field path.
func (v ValidationErrors) Add(path, message string) {
	v[path] = append(v[path], message)
}

// HasErrors reports whether any message was recorded.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Paths returns the recorded field paths in sorted order.
func (v ValidationErrors) Paths() []string {
	paths := make([]string, 0, len(v))
	for p := range v {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Error renders the map as a single message, paths sorted.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	msg := ""
	for _, p := range v.Paths() {
		for _, m := range v[p] {
			if msg != "" {
				msg += "; "
			}
			msg += p + ": " + m
		}
	}
	return msg
}
