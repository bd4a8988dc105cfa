package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stemworker/internal/logging"
	"stemworker/internal/queue"
	"stemworker/internal/services"
	"stemworker/internal/storage"
	"stemworker/internal/tracker"
	"stemworker/internal/validator"
)

const stageAdmission = "admission"

// CreateRequest describes a job submission.
type CreateRequest struct {
	SourceLocation      string
	DestinationLocation string
	CallbackURL         string
}

// Rejection is returned by Create when the source folder is not processable.
type Rejection struct {
	Scan validator.Result
}

func (r *Rejection) Error() string {
	if r.Scan.Error != "" {
		return r.Scan.Error
	}
	if info := r.Scan.FolderInfo; info != nil {
		return fmt.Sprintf("Folder is not processable: %d mix files among %d audio files", len(info.MixFiles), info.TotalWavFiles)
	}
	return "Folder is not processable"
}

// Unwrap tags the rejection as a validation failure.
func (r *Rejection) Unwrap() error {
	return services.Wrap(services.KindValidation, stageAdmission, "scan", r.Error(), nil)
}

// Create scans the source folder and, when processable, records a queued job
// and pushes its queue message.
func (d *Daemon) Create(ctx context.Context, req CreateRequest) (tracker.Job, error) {
	req.SourceLocation = strings.TrimSpace(req.SourceLocation)
	req.DestinationLocation = strings.TrimSpace(req.DestinationLocation)
	req.CallbackURL = strings.TrimSpace(req.CallbackURL)

	var missing []string
	if req.SourceLocation == "" {
		missing = append(missing, "source_location")
	}
	if req.DestinationLocation == "" {
		missing = append(missing, "destination_location")
	}
	if len(missing) > 0 {
		msg := fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
		return tracker.Job{}, services.Wrap(services.KindValidation, stageAdmission, "request", msg, nil)
	}
	if _, err := storage.Parse(req.DestinationLocation); err != nil {
		return tracker.Job{}, services.Wrap(services.KindValidation, stageAdmission, "request", "Invalid destination_location", err)
	}

	scan := d.Scan(ctx, req.SourceLocation)
	if scan.Status != validator.StatusOK || !scan.Processable {
		rejection := &Rejection{Scan: scan}
		d.logger.Info("job rejected",
			logging.String("source", req.SourceLocation),
			logging.String("reason", rejection.Error()),
			logging.String(logging.FieldEventType, "job_rejected"),
		)
		return tracker.Job{}, rejection
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	job := tracker.Job{
		ExecutionID:         id,
		SourceLocation:      req.SourceLocation,
		DestinationLocation: req.DestinationLocation,
		CallbackURL:         req.CallbackURL,
		Status:              tracker.StatusQueued,
		FolderName:          scan.FolderInfo.Name,
		CreatedAt:           now,
	}
	if _, err := d.deps.Tracker.Create(ctx, job); err != nil {
		return tracker.Job{}, services.Wrap(services.KindInternal, stageAdmission, "record job", "", err)
	}

	msg := queue.Message{
		ExecutionID:         id,
		SourceLocation:      req.SourceLocation,
		DestinationLocation: req.DestinationLocation,
		CallbackURL:         req.CallbackURL,
		CreatedAt:           now,
	}
	if err := d.deps.Queue.Push(ctx, msg); err != nil {
		d.abandon(ctx, id, err)
		return tracker.Job{}, services.Wrap(services.KindTransfer, stageAdmission, "enqueue", "Failed to enqueue job", err)
	}

	stored, err := d.deps.Tracker.Get(ctx, id)
	if err != nil {
		stored = job
	}
	d.logger.Info("job queued",
		logging.String(logging.FieldExecutionID, id),
		logging.String(logging.FieldFolder, job.FolderName),
		logging.String("source", req.SourceLocation),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return stored, nil
}

// abandon moves a job whose message never reached the queue to error, so it
// does not sit in queued forever.
func (d *Daemon) abandon(ctx context.Context, id string, cause error) {
	_, err := d.deps.Tracker.Update(ctx, id, func(j *tracker.Job) error {
		j.Status = tracker.StatusProcessing
		return nil
	})
	if err == nil {
		_, err = d.deps.Tracker.Update(ctx, id, func(j *tracker.Job) error {
			j.AddError(services.KindTransfer, "Failed to enqueue job: "+cause.Error(), stageAdmission)
			j.Status = tracker.StatusError
			now := time.Now().UTC()
			j.CompletedAt = &now
			return nil
		})
	}
	if err != nil {
		logging.ErrorWithContext(d.logger, "failed to mark unqueued job", "job_abandon_failed",
			logging.String(logging.FieldExecutionID, id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job stays queued without a queue message"),
		)
	}
}

// Get returns the latest snapshot of a job.
func (d *Daemon) Get(ctx context.Context, id string) (tracker.Job, error) {
	return d.deps.Tracker.Get(ctx, strings.TrimSpace(id))
}

// List returns jobs filtered by optional statuses, oldest first.
func (d *Daemon) List(ctx context.Context, statuses ...tracker.Status) ([]tracker.Job, error) {
	return d.deps.Tracker.List(ctx, statuses...)
}

// Scan lists the source folder through storage and applies the folder rule.
// It has no side effects.
func (d *Daemon) Scan(ctx context.Context, sourceLocation string) validator.Result {
	names, err := d.deps.Storage.List(ctx, sourceLocation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return validator.MissingFolder()
		}
		return validator.Failure(err.Error())
	}
	return d.deps.Rule.Evaluate(sourceLocation, names)
}
