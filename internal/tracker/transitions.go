package tracker

import (
	"fmt"
	"strings"
)

var allowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusCompletedWithErrors, StatusError},
}

// CanTransition reports whether from -> to is a legal edge. Staying in place
// is always legal for non-terminal states.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validateNew checks a job offered to Create.
func validateNew(job Job) error {
	if strings.TrimSpace(job.ExecutionID) == "" {
		return fmt.Errorf("%w: execution id is required", ErrInvariant)
	}
	switch job.Status {
	case StatusQueued, StatusProcessing:
	default:
		return fmt.Errorf("%w: new job must start queued or processing, got %q", ErrInvalidTransition, job.Status)
	}
	return checkErrorsImplyFailure(job)
}

// validateCommit checks the result of applying a mutator to before.
func validateCommit(before, after Job) error {
	if after.ExecutionID != before.ExecutionID {
		return fmt.Errorf("%w: execution id is immutable", ErrInvariant)
	}
	if before.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, before.ExecutionID, before.Status)
	}
	if !CanTransition(before.Status, after.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, after.Status)
	}
	if len(after.Errors) < len(before.Errors) {
		return fmt.Errorf("%w: errors are append-only", ErrInvariant)
	}
	for i := range before.Errors {
		if after.Errors[i].Message != before.Errors[i].Message || !after.Errors[i].Timestamp.Equal(before.Errors[i].Timestamp) {
			return fmt.Errorf("%w: errors are append-only", ErrInvariant)
		}
	}
	if len(after.Results) < len(before.Results) {
		return fmt.Errorf("%w: results are append-only", ErrInvariant)
	}
	for i := range before.Results {
		if after.Results[i].Stage != before.Results[i].Stage || !after.Results[i].Timestamp.Equal(before.Results[i].Timestamp) {
			return fmt.Errorf("%w: results are append-only", ErrInvariant)
		}
	}
	return checkErrorsImplyFailure(after)
}

func checkErrorsImplyFailure(job Job) error {
	if len(job.Errors) == 0 {
		return nil
	}
	if job.Status == StatusError || job.Status == StatusCompletedWithErrors {
		return nil
	}
	return fmt.Errorf("%w: job %s has errors but status %s", ErrInvariant, job.ExecutionID, job.Status)
}
