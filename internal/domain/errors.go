package domain

import "errors"

// Sentinel errors shared across services, repositories, and transport.
// Wrap them with fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing order, user, or queue entry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition marks a stage change that is not in the allowed table.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrGateNotSatisfied marks a transition blocked by an unmet precondition flag.
	ErrGateNotSatisfied = errors.New("gate not satisfied")

	// ErrConcurrentModification marks a lost compare-and-set race on an order's
	// stage. Callers may re-read the order and retry.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrConflict marks an operation rejected because of the entity's current state.
	ErrConflict = errors.New("conflict")
)
