package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stemworker/internal/config"
	"stemworker/internal/logging"
	"stemworker/internal/queue"
	"stemworker/internal/storage"
	"stemworker/internal/tracker"
	"stemworker/internal/validator"
	"stemworker/internal/workflow"
)

// Dependencies are the collaborators a Daemon coordinates.
type Dependencies struct {
	Tracker  tracker.Tracker
	Queue    queue.Queue
	Storage  storage.Storage
	Rule     validator.Rule
	Workflow *workflow.Manager
}

// Daemon coordinates the background dispatcher and admission surface, and
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	TrackerPath  string
	QueueBackend string
	Counts       map[tracker.Status]int
	Workflow     workflow.StatusSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Tracker == nil || deps.Queue == nil || deps.Storage == nil || deps.Workflow == nil {
		return nil, errors.New("daemon requires config, tracker, queue, storage, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     deps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and, when
// configured, the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stemworker daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.deps.Workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.deps.Workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("stemworker daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddress()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts dispatching after the current job and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.deps.Workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("stemworker daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the tracker and queue.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.deps.Queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close queue: %w", err))
	}
	if err := d.deps.Tracker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tracker: %w", err))
	}
	return errors.Join(errs...)
}

// APIAddress returns the bound API address, or "" when the server is off.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		QueueBackend: d.cfg.Queue.Backend,
		Counts:       make(map[tracker.Status]int),
		Workflow:     d.deps.Workflow.Status(),
	}
	if store, ok := d.deps.Tracker.(*tracker.Store); ok {
		status.TrackerPath = store.Path()
	}
	jobs, err := d.deps.Tracker.List(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to count jobs", "job_count_failed", logging.Error(err))
		return status
	}
	for _, job := range jobs {
		status.Counts[job.Status]++
	}
	return status
}

// Health runs the dispatcher dependency checks.
func (d *Daemon) Health(ctx context.Context) []workflow.StageHealth {
	return d.deps.Workflow.Health(ctx)
}
