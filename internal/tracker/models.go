package tracker

import (
	"time"

	"stemworker/internal/services"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusError               Status = "error"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusCompletedWithErrors,
	StatusError,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus maps a string to a known status.
func ParseStatus(value string) (Status, bool) {
	for _, s := range allStatuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusError:
		return true
	default:
		return false
	}
}

// ErrorEntry is one append-only error record.
type ErrorEntry struct {
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Context   string        `json:"context,omitempty"`
	Kind      services.Kind `json:"kind,omitempty"`
}

// Result is one append-only per-stage outcome record.
type Result struct {
	Stage          string    `json:"stage"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	Error          string    `json:"error,omitempty"`
	File           string    `json:"file,omitempty"`
	Files          []string  `json:"files,omitempty"`
	ExportVerified *bool     `json:"export_verified,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Job is the tracked unit of work.
type Job struct {
	ExecutionID             string       `json:"execution_id"`
	SourceLocation          string       `json:"source_location"`
	DestinationLocation     string       `json:"destination_location"`
	CallbackURL             string       `json:"callback_url,omitempty"`
	Status                  Status       `json:"status"`
	FolderName              string       `json:"folder_name"`
	Errors                  []ErrorEntry `json:"errors"`
	Results                 []Result     `json:"results"`
	ProcessedOutputLocation string       `json:"processed_output_location,omitempty"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
	CompletedAt             *time.Time   `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (j Job) Clone() Job {
	out := j
	if j.Errors != nil {
		out.Errors = append([]ErrorEntry(nil), j.Errors...)
	} else {
		out.Errors = []ErrorEntry{}
	}
	out.Results = make([]Result, len(j.Results))
	for i, r := range j.Results {
		if r.Files != nil {
			r.Files = append([]string(nil), r.Files...)
		}
		if r.ExportVerified != nil {
			v := *r.ExportVerified
			r.ExportVerified = &v
		}
		out.Results[i] = r
	}
	if j.CompletedAt != nil {
		ts := *j.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// AddError appends an error entry stamped with the current time.
func (j *Job) AddError(kind services.Kind, message, context string) {
	j.Errors = append(j.Errors, ErrorEntry{
		Message:   message,
		Timestamp: time.Now().UTC(),
		Context:   context,
		Kind:      kind,
	})
}

// AddResult appends a stage outcome, stamping it when the caller did not.
func (j *Job) AddResult(r Result) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	j.Results = append(j.Results, r)
}

// IsTerminal reports whether the job reached a terminal status.
func (j Job) IsTerminal() bool {
	return j.Status.Terminal()
}
