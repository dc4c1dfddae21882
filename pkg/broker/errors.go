package broker

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no escalation exists for the given id.
	ErrNotFound = errors.New("escalation not found")
	// ErrConflict is returned when an operation is attempted in the wrong
	// state: resolving an already-resolved escalation, or deleting one that
	// is no longer pending.
	ErrConflict = errors.New("escalation in conflicting state")
)
