package automation

import (
	"context"
	"log/slog"

	"stemworker/internal/logging"
	"stemworker/internal/services"
)

// processGuard serializes runners built without a Guard.
var processGuard = NewGuard("")

// Runner pairs an Adapter with its guard and shared output area.
type Runner struct {
	Adapter Adapter
	Guard   *Guard
	Shared  SharedArea
	Logger  *slog.Logger
}

// Run invokes the adapter for one mix file while holding the guard, or a
// process-wide guard shared by every Runner that has none. A
// success is only trusted once Verify finds a matching export; verified
// exports are copied into collectDir. The shared area is reset before the
// guard is released on every path, including a panic inside the adapter.
func (r *Runner) Run(ctx context.Context, mixFilePath, folderName, collectDir string) Outcome {
	logger := logging.WithContext(ctx, r.logger())
	guard := r.Guard
	if guard == nil {
		guard = processGuard
	}

	var out Outcome
	err := guard.Run(ctx, func() {
		defer r.reset(logger)
		out = r.invoke(ctx, logger, mixFilePath, folderName, collectDir)
	})
	if err != nil {
		return failed(services.KindAutomation, mixFilePath, "Automation unavailable", err.Error())
	}
	return out
}

func (r *Runner) invoke(ctx context.Context, logger *slog.Logger, mixFilePath, folderName, collectDir string) Outcome {
	out := r.Adapter.Process(ctx, mixFilePath, folderName)
	if out.File == "" {
		out.File = mixFilePath
	}
	if !out.OK() {
		out.Status = OutcomeError
		if out.Kind == "" {
			out.Kind = services.KindAutomation
		}
		if out.Error == "" {
			out.Error = "Unknown error"
		}
		return out
	}

	verified := r.Shared.Verify(folderName)
	out.ExportVerified = &verified
	if !verified {
		logging.WarnWithContext(logger, "export verification failed", "export_verification_failed",
			logging.String(logging.FieldFolder, folderName),
			logging.String("shared_dir", r.Shared.Dir),
			logging.String(logging.FieldErrorHint, "confirm the automation exports into shared_output_dir"),
			logging.String(logging.FieldImpact, "job marked as error"),
		)
		out.Status = OutcomeError
		out.Kind = services.KindVerification
		out.Error = "export verification failed"
		out.Message = "Processing completed but export verification failed"
		return out
	}

	exports, err := r.Shared.Collect(folderName, collectDir)
	if err != nil {
		out.Status = OutcomeError
		out.Kind = services.KindTransfer
		out.Error = err.Error()
		out.Message = "Exports could not be collected"
		return out
	}
	out.Exports = exports
	out.Message = "Processing and export completed successfully"
	logger.Info("exports collected",
		logging.String(logging.FieldFolder, folderName),
		logging.Strings("exports", exports),
		logging.String(logging.FieldEventType, "exports_collected"),
	)
	return out
}

func (r *Runner) reset(logger *slog.Logger) {
	if err := r.Shared.Reset(); err != nil {
		logging.WarnWithContext(logger, "shared output reset failed", "shared_output_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check shared_output_dir permissions"),
			logging.String(logging.FieldImpact, "next job may see stale exports"),
		)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}
