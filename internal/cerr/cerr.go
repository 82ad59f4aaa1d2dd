// Package cerr defines the error kinds cepler's engine can return, per
// spec.md §7. An error's kind is tested with this package's Is; callers
// that need the chain of "what was I doing" context wrap these with
// github.com/pkg/errors the way the rest of the engine does.
package cerr

import "github.com/pkg/errors"

// Kind classifies why an engine operation failed.
type Kind int

const (
	// IoError covers filesystem or repo capability failures.
	IoError Kind = iota
	// ConfigError covers an unknown environment name or a malformed state file.
	ConfigError
	// PrerequisiteError covers recording/checking a downstream whose
	// upstream has never been recorded.
	PrerequisiteError
	// InvariantError should never occur; it indicates a corrupted state directory.
	InvariantError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case PrerequisiteError:
		return "prerequisite error"
	case InvariantError:
		return "invariant error"
	default:
		return "io error"
	}
}

// Error is a typed engine error: its Kind lets callers distinguish a
// not-deployed-yet upstream from a corrupt state directory without string
// matching.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// New builds an Error of the given kind with a plain message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap attaches kind and a context message to an underlying error, chaining
// it with errors.Wrap so %+v still prints the original cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: errors.Wrap(err, msg).Error()}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
