package tracker_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stemworker/internal/services"
	"stemworker/internal/tracker"
)

type factory func(t *testing.T) tracker.Tracker

func implementations() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T) tracker.Tracker {
			return tracker.NewMemory()
		},
		"sqlite": func(t *testing.T) tracker.Tracker {
			store, err := tracker.Open(filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func newJob(id string) tracker.Job {
	return tracker.Job{
		ExecutionID:         id,
		SourceLocation:      "gs://bucket/in/Song",
		DestinationLocation: "gs://bucket/out",
		CallbackURL:         "http://example.test/cb",
		Status:              tracker.StatusQueued,
		FolderName:          "Song",
	}
}

func TestTrackerContract(t *testing.T) {
	for name, open := range implementations() {
		t.Run(name, func(t *testing.T) {
			t.Run("create and get", func(t *testing.T) { testCreateGet(t, open(t)) })
			t.Run("duplicate", func(t *testing.T) { testDuplicate(t, open(t)) })
			t.Run("lifecycle", func(t *testing.T) { testLifecycle(t, open(t)) })
			t.Run("illegal transitions", func(t *testing.T) { testIllegalTransitions(t, open(t)) })
			t.Run("errors require failure status", func(t *testing.T) { testErrorsRequireFailure(t, open(t)) })
			t.Run("snapshot isolation", func(t *testing.T) { testSnapshotIsolation(t, open(t)) })
			t.Run("list filters", func(t *testing.T) { testList(t, open(t)) })
			t.Run("concurrent readers", func(t *testing.T) { testConcurrentReaders(t, open(t)) })
		})
	}
}

func testCreateGet(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	id, err := tr.Create(ctx, newJob("job-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "job-1" {
		t.Fatalf("unexpected id %q", id)
	}
	got, err := tr.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != tracker.StatusQueued || got.FolderName != "Song" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if _, err := tr.Get(ctx, "missing"); !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := tr.Update(ctx, "missing", func(*tracker.Job) error { return nil }); !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func testDuplicate(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	if _, err := tr.Create(ctx, newJob("dup")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tr.Create(ctx, newJob("dup")); !errors.Is(err, tracker.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := tr.Create(ctx, newJob("")); !errors.Is(err, tracker.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for blank id, got %v", err)
	}
}

func testLifecycle(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	if _, err := tr.Create(ctx, newJob("life")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tr.Update(ctx, "life", func(j *tracker.Job) error {
		j.Status = tracker.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	verified := true
	done, err := tr.Update(ctx, "life", func(j *tracker.Job) error {
		j.AddResult(tracker.Result{Stage: "automation", Status: "success", ExportVerified: &verified})
		j.AddError(services.KindTransfer, "upload failed", "upload")
		j.Status = tracker.StatusCompletedWithErrors
		now := time.Now().UTC()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("to terminal: %v", err)
	}
	if done.Status != tracker.StatusCompletedWithErrors {
		t.Fatalf("unexpected status %s", done.Status)
	}

	got, err := tr.Get(ctx, "life")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].ExportVerified == nil || !*got.Results[0].ExportVerified {
		t.Fatalf("unexpected results: %+v", got.Results)
	}
	if len(got.Errors) != 1 || got.Errors[0].Kind != services.KindTransfer {
		t.Fatalf("unexpected errors: %+v", got.Errors)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at")
	}

	_, err = tr.Update(ctx, "life", func(j *tracker.Job) error {
		j.Status = tracker.StatusProcessing
		return nil
	})
	if !errors.Is(err, tracker.ErrInvalidTransition) {
		t.Fatalf("expected terminal job to reject re-entry, got %v", err)
	}
}

func testIllegalTransitions(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	if _, err := tr.Create(ctx, newJob("skip")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := tr.Update(ctx, "skip", func(j *tracker.Job) error {
		j.Status = tracker.StatusCompleted
		return nil
	})
	if !errors.Is(err, tracker.ErrInvalidTransition) {
		t.Fatalf("expected queued -> completed to be rejected, got %v", err)
	}
	got, _ := tr.Get(ctx, "skip")
	if got.Status != tracker.StatusQueued {
		t.Fatalf("expected rejected update to leave status queued, got %s", got.Status)
	}

	terminal := newJob("born-terminal")
	terminal.Status = tracker.StatusCompleted
	if _, err := tr.Create(ctx, terminal); !errors.Is(err, tracker.ErrInvalidTransition) {
		t.Fatalf("expected terminal creation to be rejected, got %v", err)
	}
}

func testErrorsRequireFailure(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	job := newJob("err")
	job.Status = tracker.StatusProcessing
	if _, err := tr.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := tr.Update(ctx, "err", func(j *tracker.Job) error {
		j.AddError(services.KindAutomation, "boom", "")
		return nil
	})
	if !errors.Is(err, tracker.ErrInvariant) {
		t.Fatalf("expected errors without failure status to be rejected, got %v", err)
	}

	sentinel := errors.New("abort")
	if _, err := tr.Update(ctx, "err", func(*tracker.Job) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected mutator error to surface, got %v", err)
	}
}

func testSnapshotIsolation(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	job := newJob("iso")
	job.Status = tracker.StatusProcessing
	if _, err := tr.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tr.Update(ctx, "iso", func(j *tracker.Job) error {
		j.AddResult(tracker.Result{Stage: "fetch", Status: "success"})
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, err := tr.Get(ctx, "iso")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap.Results[0].Stage = "tampered"
	snap.FolderName = "tampered"

	again, _ := tr.Get(ctx, "iso")
	if again.Results[0].Stage != "fetch" || again.FolderName != "Song" {
		t.Fatalf("expected stored job to be unaffected by snapshot edits: %+v", again)
	}
}

func testList(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := tr.Create(ctx, newJob(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if _, err := tr.Update(ctx, "b", func(j *tracker.Job) error {
		j.Status = tracker.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := tr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	processing, err := tr.List(ctx, tracker.StatusProcessing)
	if err != nil {
		t.Fatalf("List processing: %v", err)
	}
	if len(processing) != 1 || processing[0].ExecutionID != "b" {
		t.Fatalf("unexpected processing list: %+v", processing)
	}
}

func testConcurrentReaders(t *testing.T, tr tracker.Tracker) {
	ctx := context.Background()
	job := newJob("conc")
	job.Status = tracker.StatusProcessing
	if _, err := tr.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := tr.Get(ctx, "conc")
				if err != nil {
					t.Errorf("Get: %v", err)
					return
				}
				for _, r := range snap.Results {
					if r.Stage == "" {
						t.Errorf("observed partially written result: %+v", snap.Results)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if _, err := tr.Update(ctx, "conc", func(j *tracker.Job) error {
			j.AddResult(tracker.Result{Stage: "step", Status: "success"})
			return nil
		}); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	final, _ := tr.Get(ctx, "conc")
	if len(final.Results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(final.Results))
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to tracker.Status
		want     bool
	}{
		{tracker.StatusQueued, tracker.StatusProcessing, true},
		{tracker.StatusQueued, tracker.StatusError, false},
		{tracker.StatusProcessing, tracker.StatusCompleted, true},
		{tracker.StatusProcessing, tracker.StatusCompletedWithErrors, true},
		{tracker.StatusProcessing, tracker.StatusError, true},
		{tracker.StatusProcessing, tracker.StatusQueued, false},
		{tracker.StatusCompleted, tracker.StatusProcessing, false},
		{tracker.StatusError, tracker.StatusError, false},
		{tracker.StatusProcessing, tracker.StatusProcessing, true},
	}
	for _, tc := range cases {
		if got := tracker.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStoreReopenKeepsJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Create(context.Background(), newJob("persist")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "persist")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.SourceLocation != "gs://bucket/in/Song" {
		t.Fatalf("unexpected source after reopen: %q", got.SourceLocation)
	}
}
