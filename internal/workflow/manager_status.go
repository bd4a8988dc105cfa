package workflow

import (
	"time"

	"stemworker/internal/tracker"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool         `json:"running"`
	Uptime    string       `json:"uptime,omitempty"`
	Processed int          `json:"processed"`
	LastError string       `json:"last_error,omitempty"`
	LastJob   *tracker.Job `json:"last_job,omitempty"`
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{Running: m.running, Processed: m.processed}
	if m.running && !m.started.IsZero() {
		summary.Uptime = time.Since(m.started).Round(time.Second).String()
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		job := m.lastJob.Clone()
		summary.LastJob = &job
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job tracker.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ExecutionID == "" {
		return
	}
	snapshot := job.Clone()
	m.lastJob = &snapshot
	m.processed++
}
