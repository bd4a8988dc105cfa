package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemworker/internal/automation"
	"stemworker/internal/config"
	"stemworker/internal/daemon"
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

type cliTestEnv struct {
	cfg     *config.Config
	daemon  *daemon.Daemon
	tracker *tracker.Memory
	api     string
	source  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	jobs := tracker.NewMemory()
	q := queue.NewMemory()
	store := storage.Local{}
	logger := logging.NewNop()

	mgr := workflow.NewManager(cfg, workflow.Dependencies{
		Queue:   q,
		Tracker: jobs,
		Pipeline: &transfer.Pipeline{
			Storage: store,
			Checker: integrity.Native{},
			Rule:    validator.DefaultRule,
			Root:    cfg.Paths.WorkspaceRoot,
		},
		Runner: &automation.Runner{
			Adapter: automation.AdapterFunc(func(context.Context, string, string) automation.Outcome {
				return automation.Outcome{Status: automation.OutcomeError, Error: "automation offline"}
			}),
			Guard:  automation.NewGuard(cfg.Automation.LockPath),
			Shared: automation.SharedArea{Dir: cfg.Paths.SharedOutputDir},
		},
		Rule: validator.DefaultRule,
	}, logger)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Tracker:  jobs,
		Queue:    q,
		Storage:  store,
		Rule:     validator.DefaultRule,
		Workflow: mgr,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:     cfg,
		daemon:  d,
		tracker: jobs,
		api:     d.APIAddress(),
		source:  filepath.Join(testsupport.BaseDir(cfg), "source"),
	}
}

func (e *cliTestEnv) folder(t *testing.T, name string, extra ...string) string {
	t.Helper()
	dir := filepath.Join(e.source, name)
	testsupport.WriteMixFolder(t, dir, name+"_mix.wav", extra...)
	return dir
}

func runCLI(t *testing.T, args []string, apiAddr string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
