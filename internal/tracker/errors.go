package tracker

import "errors"

var (
	// ErrNotFound is returned when no job carries the requested execution id.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicate is returned when Create is given an execution id already in use.
	ErrDuplicate = errors.New("execution id already exists")
	// ErrInvalidTransition is returned when a mutator moves a job along an illegal edge.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvariant is returned when a mutator breaks a job invariant.
	ErrInvariant = errors.New("job invariant violated")
)
