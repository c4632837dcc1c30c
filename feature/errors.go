package feature

import "fmt"

// ErrDuplicateID is returned when a module or popup view is registered
// under an id that is already present. This is a programmer error and is
// never recovered automatically.
type ErrDuplicateID struct {
	Kind string // "module" or "popup view"
	ID   string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("feature: %s already registered: %s", e.Kind, e.ID)
}

// ErrInitFailed wraps a module Init error with the failing module's id.
type ErrInitFailed struct {
	Module string
	Cause  error
}

func (e *ErrInitFailed) Error() string {
	return fmt.Sprintf("feature: init %s: %v", e.Module, e.Cause)
}

func (e *ErrInitFailed) Unwrap() error { return e.Cause }
