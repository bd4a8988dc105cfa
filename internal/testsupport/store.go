package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"stemworker/internal/tracker"
)

// MustOpenTracker opens a sqlite tracker under a temp dir and registers cleanup.
func MustOpenTracker(t testing.TB) *tracker.Store {
	t.Helper()

	store, err := tracker.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("tracker.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a queued job for tests using the provided tracker.
func NewJob(t testing.TB, tr tracker.Tracker, id, source, destination string) tracker.Job {
	t.Helper()

	ctx := context.Background()
	if _, err := tr.Create(ctx, tracker.Job{
		ExecutionID:         id,
		SourceLocation:      source,
		DestinationLocation: destination,
		Status:              tracker.StatusQueued,
	}); err != nil {
		t.Fatalf("tracker.Create: %v", err)
	}
	job, err := tr.Get(ctx, id)
	if err != nil {
		t.Fatalf("tracker.Get: %v", err)
	}
	return job
}
