package api

import "stemworker/internal/validator"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	SourceLocation      string `json:"source_location"`
	DestinationLocation string `json:"destination_location"`
	CallbackURL         string `json:"callback_url,omitempty"`
}

// CreateJobResponse acknowledges an admitted job.
type CreateJobResponse struct {
	ExecutionID         string `json:"execution_id"`
	Status              string `json:"status"`
	FolderName          string `json:"folder_name"`
	SourceLocation      string `json:"source_location"`
	DestinationLocation string `json:"destination_location"`
}

// ErrorEntry mirrors one job error record.
type ErrorEntry struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Context   string `json:"context,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Result mirrors one per-stage outcome record.
type Result struct {
	Stage          string   `json:"stage"`
	Status         string   `json:"status"`
	Message        string   `json:"message,omitempty"`
	Error          string   `json:"error,omitempty"`
	File           string   `json:"file,omitempty"`
	Files          []string `json:"files,omitempty"`
	ExportVerified *bool    `json:"export_verified,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

// JobView is the transport representation of a job snapshot.
type JobView struct {
	ExecutionID             string       `json:"execution_id"`
	Status                  string       `json:"status"`
	SourceLocation          string       `json:"source_location"`
	DestinationLocation     string       `json:"destination_location"`
	CallbackURL             string       `json:"callback_url,omitempty"`
	FolderName              string       `json:"folder_name"`
	Errors                  []ErrorEntry `json:"errors"`
	Results                 []Result     `json:"results"`
	ProcessedOutputLocation string       `json:"processed_output_location,omitempty"`
	CreatedAt               string       `json:"created_at"`
	UpdatedAt               string       `json:"updated_at,omitempty"`
	CompletedAt             string       `json:"completed_at,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// ScanResponse is the folder validator verdict.
type ScanResponse = validator.Result

// RejectionResponse is returned when admission refuses a source folder.
type RejectionResponse struct {
	Error string            `json:"error"`
	Scan  *validator.Result `json:"scan,omitempty"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck mirrors one dependency check.
type HealthCheck struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// WorkflowStatus summarizes dispatcher execution state.
type WorkflowStatus struct {
	Running   bool     `json:"running"`
	Uptime    string   `json:"uptime,omitempty"`
	Processed int      `json:"processed"`
	LastError string   `json:"last_error,omitempty"`
	LastJob   *JobView `json:"last_job,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LockFilePath string         `json:"lock_file_path"`
	TrackerPath  string         `json:"tracker_path,omitempty"`
	QueueBackend string         `json:"queue_backend"`
	Counts       map[string]int `json:"counts"`
	Workflow     WorkflowStatus `json:"workflow"`
}
