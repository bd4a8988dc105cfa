// Package daemonrun assembles the stemworker daemon from configuration and
// runs it until the process is signalled.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stemworker/internal/automation"
	"stemworker/internal/callback"
	"stemworker/internal/config"
	"stemworker/internal/daemon"
	"stemworker/internal/events"
	"stemworker/internal/logging"
	"stemworker/internal/media/integrity"
	"stemworker/internal/preflight"
	"stemworker/internal/queue"
	"stemworker/internal/storage"
	"stemworker/internal/tracker"
	"stemworker/internal/transfer"
	"stemworker/internal/validator"
	"stemworker/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the stemworker daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("stemworker-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update stemworker.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "stemworker-*.log", Exclude: []string{logPath}},
	)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "stemworker.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	swept := transfer.CleanStale(signalCtx, cfg.Paths.WorkspaceRoot, cfg.WorkspaceMaxAge(), logger)
	if len(swept.Removed) > 0 {
		logger.Info("removed stale workspaces",
			logging.Int("count", len(swept.Removed)),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}

	jobs, err := openTracker(cfg)
	if err != nil {
		logger.Error("open job tracker", logging.Error(err))
		return err
	}

	q, err := queue.Open(signalCtx, cfg)
	if err != nil {
		_ = jobs.Close()
		logger.Error("open queue", logging.Error(err), logging.String("backend", cfg.Queue.Backend))
		return err
	}

	store, err := storage.NewFromConfig(cfg)
	if err != nil {
		_ = jobs.Close()
		_ = q.Close()
		return fmt.Errorf("configure storage: %w", err)
	}
	checker, err := integrity.New(cfg.Validation.Probe, cfg.Validation.FFprobeBinary, cfg.Validation.PrefixFrames)
	if err != nil {
		_ = jobs.Close()
		_ = q.Close()
		return err
	}

	rule := validator.Rule{MixSuffix: cfg.Validation.MixSuffix, AudioExtension: cfg.Validation.AudioExtension}
	publisher := openPublisher(logger, cfg)
	defer publisher.Close()

	manager := workflow.NewManager(cfg, workflow.Dependencies{
		Queue:   q,
		Tracker: jobs,
		Pipeline: &transfer.Pipeline{
			Storage: store,
			Checker: checker,
			Rule:    rule,
			Root:    cfg.Paths.WorkspaceRoot,
			Logger:  logger,
		},
		Runner: &automation.Runner{
			Adapter: automation.NewCommandAdapter(cfg, logger),
			Guard:   automation.NewGuard(cfg.Automation.LockPath),
			Shared:  automation.SharedArea{Dir: cfg.Paths.SharedOutputDir, Extension: rule.AudioExtension},
			Logger:  logger,
		},
		Rule:      rule,
		Notifier:  callback.NewHTTP(cfg.CallbackTimeout()),
		Publisher: publisher,
	}, logger)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Tracker:  jobs,
		Queue:    q,
		Storage:  store,
		Rule:     rule,
		Workflow: manager,
	}, logger)
	if err != nil {
		_ = jobs.Close()
		_ = q.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running instance and queue connectivity"),
		)
		return err
	}
	logger.Debug("runtime backends",
		logging.String("queue_backend", cfg.Queue.Backend),
		logging.String("tracker_backend", cfg.Tracker.Backend),
		logging.String("integrity_probe", cfg.Validation.Probe),
	)

	<-signalCtx.Done()
	logger.Info("stemworker daemon shutting down")
	d.Stop()
	return nil
}

func openTracker(cfg *config.Config) (tracker.Tracker, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Tracker.Backend), "memory") {
		return tracker.NewMemory(), nil
	}
	store, err := tracker.Open(cfg.TrackerDBPath())
	if err != nil {
		return nil, fmt.Errorf("open tracker %s: %w", cfg.TrackerDBPath(), err)
	}
	return store, nil
}

func openPublisher(logger *slog.Logger, cfg *config.Config) events.Publisher {
	url := strings.TrimSpace(cfg.Events.NATSURL)
	if url == "" {
		return events.Noop{}
	}
	pub, err := events.Connect(url, cfg.Events.SubjectPrefix)
	if err != nil {
		logging.WarnWithContext(logger, "event publisher unavailable", "events_unavailable",
			logging.Error(err),
			logging.String("nats_url", url),
			logging.String(logging.FieldImpact, "lifecycle events will not be published"),
		)
		return events.Noop{}
	}
	return pub
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "stemworker.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
