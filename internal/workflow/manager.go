package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stemworker/internal/automation"
	"stemworker/internal/callback"
	"stemworker/internal/config"
	"stemworker/internal/events"
	"stemworker/internal/logging"
	"stemworker/internal/queue"
	"stemworker/internal/tracker"
	"stemworker/internal/transfer"
	"stemworker/internal/validator"
)

// Dependencies are the collaborators a Manager drives.
type Dependencies struct {
	Queue     queue.Queue
	Tracker   tracker.Tracker
	Pipeline  *transfer.Pipeline
	Runner    *automation.Runner
	Rule      validator.Rule
	Notifier  callback.Notifier
	Publisher events.Publisher
}

// Manager consumes queue messages and runs one pass per job.
type Manager struct {
	cfg          *config.Config
	deps         Dependencies
	logger       *slog.Logger
	pollTimeout  time.Duration
	errorBackoff time.Duration

	passMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJob   *tracker.Job
	processed int
	started   time.Time
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = callback.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	pollTimeout := cfg.PollTimeout()
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Manager{
		cfg:          cfg,
		deps:         deps,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollTimeout:  pollTimeout,
		errorBackoff: cfg.ErrorBackoff(),
	}
}
