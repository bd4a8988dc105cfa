package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stemworker/internal/automation"
	"stemworker/internal/callback"
	"stemworker/internal/config"
	"stemworker/internal/events"
	"stemworker/internal/media/integrity"
	"stemworker/internal/queue"
	"stemworker/internal/testsupport"
	"stemworker/internal/tracker"
	"stemworker/internal/transfer"
	"stemworker/internal/validator"
	"stemworker/internal/workflow"
)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []callback.Payload
	urls     []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, url string, payload callback.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	r.payloads = append(r.payloads, payload)
	return r.err
}

func (r *recordingNotifier) calls() []callback.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]callback.Payload(nil), r.payloads...)
}

type harness struct {
	cfg       *config.Config
	tracker   *tracker.Memory
	queue     *queue.Memory
	storage   *testsupport.FakeStorage
	notifier  *recordingNotifier
	events    *events.Recorder
	pipeline  *transfer.Pipeline
	manager   *workflow.Manager
	sourceDir string
	destDir   string
}

func newHarness(t *testing.T, build func(sharedDir string) automation.Adapter) *harness {
	t.Helper()
	return newHarnessWithTracker(t, build, nil)
}

// newHarnessWithTracker lets wrap interpose on the tracker the manager sees.
func newHarnessWithTracker(t *testing.T, build func(sharedDir string) automation.Adapter, wrap func(tracker.Tracker) tracker.Tracker) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	h := &harness{
		cfg:       cfg,
		tracker:   tracker.NewMemory(),
		queue:     queue.NewMemory(),
		storage:   &testsupport.FakeStorage{},
		notifier:  &recordingNotifier{},
		events:    &events.Recorder{},
		sourceDir: filepath.Join(base, "source"),
		destDir:   filepath.Join(base, "dest"),
	}
	h.pipeline = &transfer.Pipeline{
		Storage: h.storage,
		Checker: integrity.Native{PrefixFrames: integrity.DefaultPrefixFrames},
		Rule:    validator.DefaultRule,
		Root:    cfg.Paths.WorkspaceRoot,
	}
	runner := &automation.Runner{
		Adapter: build(cfg.Paths.SharedOutputDir),
		Guard:   automation.NewGuard(cfg.Automation.LockPath),
		Shared:  automation.SharedArea{Dir: cfg.Paths.SharedOutputDir, Extension: ".wav"},
	}
	var jobs tracker.Tracker = h.tracker
	if wrap != nil {
		jobs = wrap(h.tracker)
	}
	h.manager = workflow.NewManager(cfg, workflow.Dependencies{
		Queue:     h.queue,
		Tracker:   jobs,
		Pipeline:  h.pipeline,
		Runner:    runner,
		Rule:      validator.DefaultRule,
		Notifier:  h.notifier,
		Publisher: h.events,
	}, nil)
	return h
}

// source creates a local source folder holding a valid mix plus extras.
func (h *harness) source(t *testing.T, folder string, extra ...string) string {
	t.Helper()
	dir := filepath.Join(h.sourceDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	testsupport.WriteMixFolder(t, dir, folder+"_mix.wav", extra...)
	return dir
}

func (h *harness) message(id, source string) queue.Message {
	return queue.Message{
		ExecutionID:         id,
		SourceLocation:      source,
		DestinationLocation: h.destDir,
		CallbackURL:         "http://callback.invalid/hook",
		CreatedAt:           time.Now().UTC(),
	}
}

func (h *harness) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	dirs, err := transfer.ListWorkspaces(h.cfg.Paths.WorkspaceRoot)
	if err != nil {
		t.Fatalf("list workspaces: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected no workspaces after pass, found %v", dirs)
	}
}

func (h *harness) assertSharedAreaEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.Paths.SharedOutputDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read shared dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected shared output area to be reset, found %d entries", len(entries))
	}
}

// exportingAdapter simulates a host application that writes stems named
// after the folder into the shared output area.
func exportingAdapter(sharedDir string, stems ...string) automation.AdapterFunc {
	return func(_ context.Context, mixFilePath, folderName string) automation.Outcome {
		if err := os.MkdirAll(sharedDir, 0o755); err != nil {
			return automation.Outcome{Status: automation.OutcomeError, Error: err.Error()}
		}
		for _, stem := range stems {
			path := filepath.Join(sharedDir, folderName+"_"+stem+".wav")
			if err := os.WriteFile(path, []byte("RIFF-stem-"+stem), 0o644); err != nil {
				return automation.Outcome{Status: automation.OutcomeError, Error: err.Error()}
			}
		}
		return automation.Outcome{Status: automation.OutcomeSuccess, Message: "exported", File: mixFilePath}
	}
}

type countingAdapter struct {
	mu    sync.Mutex
	calls int
	next  automation.Adapter
}

func (c *countingAdapter) Process(ctx context.Context, mixFilePath, folderName string) automation.Outcome {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Process(ctx, mixFilePath, folderName)
}

func (c *countingAdapter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type panickingChecker struct{}

func (panickingChecker) Check(context.Context, string) (integrity.Report, error) {
	panic("decoder crashed")
}

// flakyTracker fails the first failTerminal updates that would commit a
// terminal status.
type flakyTracker struct {
	tracker.Tracker
	mu           sync.Mutex
	failTerminal int
	failed       int
}

func (f *flakyTracker) Update(ctx context.Context, id string, mutate tracker.Mutator) (tracker.Job, error) {
	current, err := f.Tracker.Get(ctx, id)
	if err != nil {
		return tracker.Job{}, err
	}
	preview := current.Clone()
	if err := mutate(&preview); err == nil && preview.IsTerminal() {
		f.mu.Lock()
		fail := f.failed < f.failTerminal
		if fail {
			f.failed++
		}
		f.mu.Unlock()
		if fail {
			return tracker.Job{}, errors.New("database is locked")
		}
	}
	return f.Tracker.Update(ctx, id, mutate)
}
