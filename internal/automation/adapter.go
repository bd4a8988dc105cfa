package automation

import (
	"context"

	"stemworker/internal/services"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Outcome is the result of one automation invocation.
type Outcome struct {
	Status         string        `json:"status"`
	Message        string        `json:"message"`
	Error          string        `json:"error,omitempty"`
	File           string        `json:"file,omitempty"`
	ExportVerified *bool         `json:"export_verified,omitempty"`
	Exports        []string      `json:"exports,omitempty"`
	Kind           services.Kind `json:"-"`
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool { return o.Status == OutcomeSuccess }

// Adapter is the automation capability. Implementations are not reentrant;
// callers serialize invocations through a Guard.
type Adapter interface {
	Process(ctx context.Context, mixFilePath, folderName string) Outcome
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, mixFilePath, folderName string) Outcome

func (f AdapterFunc) Process(ctx context.Context, mixFilePath, folderName string) Outcome {
	return f(ctx, mixFilePath, folderName)
}

func failed(kind services.Kind, file, message, detail string) Outcome {
	return Outcome{Status: OutcomeError, Message: message, Error: detail, File: file, Kind: kind}
}
