package api

import (
	"fmt"
	"strings"
	"time"

	"stemworker/internal/tracker"
	"stemworker/internal/workflow"
)

// FromJob converts a tracker snapshot into its transport form.
func FromJob(job tracker.Job) JobView {
	view := JobView{
		ExecutionID:             job.ExecutionID,
		Status:                  string(job.Status),
		SourceLocation:          job.SourceLocation,
		DestinationLocation:     job.DestinationLocation,
		CallbackURL:             job.CallbackURL,
		FolderName:              job.FolderName,
		Errors:                  make([]ErrorEntry, 0, len(job.Errors)),
		Results:                 make([]Result, 0, len(job.Results)),
		ProcessedOutputLocation: job.ProcessedOutputLocation,
		CreatedAt:               formatTime(job.CreatedAt),
		UpdatedAt:               formatTime(job.UpdatedAt),
	}
	if job.CompletedAt != nil {
		view.CompletedAt = formatTime(*job.CompletedAt)
	}
	for _, e := range job.Errors {
		view.Errors = append(view.Errors, ErrorEntry{
			Message:   e.Message,
			Timestamp: formatTime(e.Timestamp),
			Context:   e.Context,
			Kind:      string(e.Kind),
		})
	}
	for _, r := range job.Results {
		view.Results = append(view.Results, Result{
			Stage:          r.Stage,
			Status:         r.Status,
			Message:        r.Message,
			Error:          r.Error,
			File:           r.File,
			Files:          append([]string(nil), r.Files...),
			ExportVerified: r.ExportVerified,
			Timestamp:      formatTime(r.Timestamp),
		})
	}
	return view
}

// FromJobs converts a slice of snapshots.
func FromJobs(jobs []tracker.Job) []JobView {
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:   summary.Running,
		Uptime:    summary.Uptime,
		Processed: summary.Processed,
		LastError: summary.LastError,
	}
	if summary.LastJob != nil {
		view := FromJob(*summary.LastJob)
		status.LastJob = &view
	}
	return status
}

// FromHealth converts dependency checks.
func FromHealth(checks []workflow.StageHealth) HealthResponse {
	resp := HealthResponse{Status: "ok", Checks: make([]HealthCheck, 0, len(checks))}
	for _, c := range checks {
		resp.Checks = append(resp.Checks, HealthCheck{Name: c.Name, Ready: c.Ready, Detail: c.Detail})
		if !c.Ready {
			resp.Status = "unhealthy"
		}
	}
	return resp
}

// ParseStatuses validates status filter values. Blank values are skipped and
// comma-separated lists are accepted.
func ParseStatuses(values []string) ([]tracker.Status, error) {
	var out []tracker.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status, ok := tracker.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
