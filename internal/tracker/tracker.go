package tracker

import "context"

// Mutator edits a private copy of a job. Returning an error aborts the update.
type Mutator func(*Job) error

// Tracker is the job state store consumed by the dispatcher and admission.
type Tracker interface {
	Create(ctx context.Context, job Job) (string, error)
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, id string, mutate Mutator) (Job, error)
	List(ctx context.Context, statuses ...Status) ([]Job, error)
	Close() error
}

func statusFilter(statuses []Status) map[Status]struct{} {
	if len(statuses) == 0 {
		return nil
	}
	filter := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		filter[s] = struct{}{}
	}
	return filter
}
