package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stemworker/internal/automation"
	"stemworker/internal/config"
	"stemworker/internal/logging"
	"stemworker/internal/media/integrity"
	"stemworker/internal/queue"
	"stemworker/internal/storage"
	"stemworker/internal/testsupport"
	"stemworker/internal/tracker"
	"stemworker/internal/transfer"
	"stemworker/internal/validator"
	"stemworker/internal/workflow"
)

type failingQueue struct {
	*queue.Memory
	pushErr error
}

func (f *failingQueue) Push(ctx context.Context, m queue.Message) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	return f.Memory.Push(ctx, m)
}

type fixture struct {
	cfg     *config.Config
	tracker *tracker.Memory
	queue   *failingQueue
	daemon  *Daemon
	source  string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	f := &fixture{
		cfg:     cfg,
		tracker: tracker.NewMemory(),
		queue:   &failingQueue{Memory: queue.NewMemory()},
		source:  filepath.Join(testsupport.BaseDir(cfg), "source"),
	}
	store := storage.Local{}
	manager := workflow.NewManager(cfg, workflow.Dependencies{
		Queue:   f.queue,
		Tracker: f.tracker,
		Pipeline: &transfer.Pipeline{
			Storage: store,
			Checker: integrity.Native{},
			Rule:    validator.DefaultRule,
			Root:    cfg.Paths.WorkspaceRoot,
		},
		Runner: &automation.Runner{
			Adapter: automation.AdapterFunc(func(context.Context, string, string) automation.Outcome {
				return automation.Outcome{Status: automation.OutcomeError, Error: "not wired in tests"}
			}),
			Shared: automation.SharedArea{Dir: cfg.Paths.SharedOutputDir},
		},
		Rule: validator.DefaultRule,
	}, logging.NewNop())

	d, err := New(cfg, Dependencies{
		Tracker:  f.tracker,
		Queue:    f.queue,
		Storage:  store,
		Rule:     validator.DefaultRule,
		Workflow: manager,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.daemon = d
	return f
}

// folder creates a source folder with a valid mix and optional extras.
func (f *fixture) folder(t *testing.T, name string, extra ...string) string {
	t.Helper()
	dir := filepath.Join(f.source, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteMixFolder(t, dir, name+"_mix.wav", extra...)
	return dir
}

func (f *fixture) popMessage(t *testing.T) (queue.Message, bool) {
	t.Helper()
	payload, ok, err := f.queue.Pop(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if !ok {
		return queue.Message{}, false
	}
	msg, err := queue.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msg, true
}

var errQueueDown = errors.New("queue unavailable")
