package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"stemworker/internal/storage"
)

// StageHealth summarizes the readiness of one dependency.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthyStage constructs a ready StageHealth record.
func HealthyStage(name string) StageHealth {
	return StageHealth{Name: name, Ready: true}
}

// UnhealthyStage constructs an unhealthy StageHealth record with context detail.
func UnhealthyStage(name, detail string) StageHealth {
	return StageHealth{Name: name, Ready: false, Detail: detail}
}

const healthPingTimeout = 2 * time.Second

// Health checks the queue, storage, automation and workspace dependencies.
func (m *Manager) Health(ctx context.Context) []StageHealth {
	checks := []StageHealth{
		m.queueHealth(ctx),
		m.storageHealth(),
		m.automationHealth(),
		dirHealth("workspace", m.cfg.Paths.WorkspaceRoot),
		dirHealth("shared_output", m.cfg.Paths.SharedOutputDir),
	}
	return checks
}

// Healthy reports whether every check passed.
func Healthy(checks []StageHealth) bool {
	for _, c := range checks {
		if !c.Ready {
			return false
		}
	}
	return true
}

func (m *Manager) queueHealth(ctx context.Context) StageHealth {
	if m.deps.Queue == nil {
		return UnhealthyStage("queue", "not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := m.deps.Queue.Ping(pingCtx); err != nil {
		return UnhealthyStage("queue", err.Error())
	}
	return HealthyStage("queue")
}

func (m *Manager) storageHealth() StageHealth {
	if m.deps.Pipeline == nil || m.deps.Pipeline.Storage == nil {
		return UnhealthyStage("storage", "not configured")
	}
	health := HealthyStage("storage")
	if router, ok := m.deps.Pipeline.Storage.(interface{ Schemes() []storage.Scheme }); ok {
		schemes := router.Schemes()
		names := make([]string, 0, len(schemes))
		for _, s := range schemes {
			names = append(names, string(s))
		}
		sort.Strings(names)
		health.Detail = "schemes: " + strings.Join(names, ", ")
	}
	return health
}

func (m *Manager) automationHealth() StageHealth {
	command := strings.TrimSpace(m.cfg.Automation.Command)
	if command == "" {
		return UnhealthyStage("automation", "automation.command not configured")
	}
	if _, err := exec.LookPath(command); err != nil {
		return UnhealthyStage("automation", fmt.Sprintf("command unavailable: %v", err))
	}
	return HealthyStage("automation")
}

func dirHealth(name, dir string) StageHealth {
	if strings.TrimSpace(dir) == "" {
		return UnhealthyStage(name, "path not configured")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return UnhealthyStage(name, err.Error())
	}
	if !info.IsDir() {
		return UnhealthyStage(name, dir+" is not a directory")
	}
	return HealthyStage(name)
}
