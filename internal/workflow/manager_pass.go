package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"stemworker/internal/logging"
	"stemworker/internal/queue"
	"stemworker/internal/services"
	"stemworker/internal/tracker"
	"stemworker/internal/validator"
)

const (
	stageDequeue    = "dequeue"
	stageFetch      = "fetch"
	stageValidate   = "validate"
	stageAutomation = "automation"
	stageUpload     = "upload"
)

const (
	terminalCommitAttempts   = 2
	terminalCommitRetryDelay = 100 * time.Millisecond
)

// pass accumulates the outcome of one job until the terminal commit.
type pass struct {
	msg            queue.Message
	stage          string
	folderName     string
	outputLocation string
	errors         []tracker.ErrorEntry
	fatal          bool
}

func (p *pass) addError(kind services.Kind, message string) {
	if kind == "" {
		kind = services.KindInternal
	}
	p.errors = append(p.errors, tracker.ErrorEntry{
		Message:   message,
		Timestamp: time.Now().UTC(),
		Context:   p.stage,
		Kind:      kind,
	})
}

func (p *pass) fail(kind services.Kind, message string) {
	p.addError(kind, message)
	p.fatal = true
}

func (p *pass) status() tracker.Status {
	switch {
	case p.fatal:
		return tracker.StatusError
	case len(p.errors) > 0:
		return tracker.StatusCompletedWithErrors
	default:
		return tracker.StatusCompleted
	}
}

// ProcessPayload decodes one queue payload and runs it to a terminal state.
// Undecodable payloads are logged and dropped. The returned job is the
// terminal snapshot, or the zero Job when nothing was tracked.
func (m *Manager) ProcessPayload(ctx context.Context, payload []byte) tracker.Job {
	msg, err := queue.Decode(payload)
	if err != nil {
		logging.WarnWithContext(m.logger, "dropping undecodable queue message", "queue_message_undecodable",
			logging.Error(err),
			logging.Int("payload_bytes", len(payload)),
			logging.String(logging.FieldErrorKind, string(services.KindMalformed)),
			logging.String(logging.FieldImpact, "message discarded"),
		)
		return tracker.Job{}
	}
	return m.ProcessMessage(ctx, msg)
}

// ProcessMessage runs one job pass. Passes are serialized.
func (m *Manager) ProcessMessage(ctx context.Context, msg queue.Message) tracker.Job {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	msg.ExecutionID = strings.TrimSpace(msg.ExecutionID)
	if msg.ExecutionID == "" {
		logging.WarnWithContext(m.logger, "dropping queue message without execution id", "queue_message_malformed",
			logging.String("source", msg.SourceLocation),
			logging.String(logging.FieldErrorKind, string(services.KindMalformed)),
			logging.String(logging.FieldImpact, "message discarded"),
		)
		return tracker.Job{}
	}

	ctx = withPassContext(ctx, msg.ExecutionID, uuid.NewString())
	logger := m.passLogger(ctx)

	if _, err := m.begin(ctx, msg); err != nil {
		if errors.Is(err, tracker.ErrInvalidTransition) {
			logger.Info("job already handled; dropping redelivery",
				logging.Error(err),
				logging.String(logging.FieldEventType, "redelivery_dropped"),
			)
			return tracker.Job{}
		}
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to start job", "job_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check tracker storage"),
		)
		return tracker.Job{}
	}

	p := &pass{msg: msg, stage: stageDequeue}
	return m.runPass(ctx, p)
}

// begin upserts the tracker record and moves it to processing.
func (m *Manager) begin(ctx context.Context, msg queue.Message) (tracker.Job, error) {
	if _, err := m.deps.Tracker.Get(ctx, msg.ExecutionID); err != nil {
		if !errors.Is(err, tracker.ErrNotFound) {
			return tracker.Job{}, err
		}
		_, err = m.deps.Tracker.Create(ctx, tracker.Job{
			ExecutionID:         msg.ExecutionID,
			SourceLocation:      msg.SourceLocation,
			DestinationLocation: msg.DestinationLocation,
			CallbackURL:         msg.CallbackURL,
			Status:              tracker.StatusQueued,
			CreatedAt:           msg.CreatedAt,
		})
		if err != nil && !errors.Is(err, tracker.ErrDuplicate) {
			return tracker.Job{}, err
		}
	}

	job, err := m.deps.Tracker.Update(ctx, msg.ExecutionID, func(j *tracker.Job) error {
		j.Status = tracker.StatusProcessing
		if j.SourceLocation == "" {
			j.SourceLocation = msg.SourceLocation
		}
		if j.DestinationLocation == "" {
			j.DestinationLocation = msg.DestinationLocation
		}
		if j.CallbackURL == "" {
			j.CallbackURL = msg.CallbackURL
		}
		return nil
	})
	if err != nil {
		return tracker.Job{}, err
	}
	m.publish(ctx, job, stageDequeue)
	return job, nil
}

func (m *Manager) runPass(ctx context.Context, p *pass) (final tracker.Job) {
	logger := m.passLogger(ctx)
	started := time.Now()
	logger.Info("job started",
		logging.String("source", p.msg.SourceLocation),
		logging.String("destination", p.msg.DestinationLocation),
		logging.String(logging.FieldEventType, "job_started"),
	)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "job pass panicked", "job_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldStage, p.stage),
				logging.String(logging.FieldImpact, "job marked as error"),
			)
			p.fail(services.KindInternal, fmt.Sprintf("internal error: %v", r))
		}
		final = m.finish(ctx, p)
		logger.Info("job finished",
			logging.String("status", string(final.Status)),
			logging.Int("errors", len(final.Errors)),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "job_finished"),
		)
		m.notifyTerminal(ctx, final)
	}()

	if missing := p.msg.Missing(); len(missing) > 0 {
		p.fail(services.KindMalformed, fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
		return
	}
	m.execute(ctx, p)
	return
}

// execute runs the stages in order, stopping at the first fatal error. The
// workspace is released before execute returns.
func (m *Manager) execute(ctx context.Context, p *pass) {
	pipeline := m.deps.Pipeline

	p.stage = stageFetch
	stageCtx := services.WithStage(ctx, stageFetch)
	ws, folderName, err := pipeline.Fetch(stageCtx, p.msg.SourceLocation)
	if err != nil {
		p.fail(services.KindOf(err), services.MessageOf(err))
		m.record(ctx, p, tracker.Result{Stage: stageFetch, Status: "error", Error: services.MessageOf(err)})
		return
	}
	defer pipeline.Release(ctx, ws)
	p.folderName = folderName
	m.record(ctx, p, tracker.Result{Stage: stageFetch, Status: "success", Message: "Source downloaded and verified"})

	p.stage = stageValidate
	scan := m.deps.Rule.Scan(ws.Input)
	if scan.Status != validator.StatusOK {
		p.fail(services.KindValidation, scan.Error)
		m.record(ctx, p, tracker.Result{Stage: stageValidate, Status: "error", Error: scan.Error})
		return
	}
	if !scan.Processable {
		msg := fmt.Sprintf("Folder is not processable: %d mix files among %d audio files",
			len(scan.FolderInfo.MixFiles), scan.FolderInfo.TotalWavFiles)
		p.fail(services.KindValidation, msg)
		m.record(ctx, p, tracker.Result{Stage: stageValidate, Status: "error", Error: msg})
		return
	}

	p.stage = stageAutomation
	stageCtx = services.WithStage(ctx, stageAutomation)
	for _, mix := range scan.FolderInfo.MixFiles {
		out := m.deps.Runner.Run(stageCtx, filepath.Join(ws.Input, mix), folderName, ws.Output)
		m.record(ctx, p, tracker.Result{
			Stage:          stageAutomation,
			Status:         out.Status,
			Message:        out.Message,
			Error:          out.Error,
			File:           mix,
			Files:          out.Exports,
			ExportVerified: out.ExportVerified,
		})
		if !out.OK() {
			msg := out.Error
			if msg == "" {
				msg = out.Message
			}
			p.fail(out.Kind, msg)
			return
		}
	}

	p.stage = stageUpload
	stageCtx = services.WithStage(ctx, stageUpload)
	upload := pipeline.Upload(stageCtx, ws.Output, p.msg.DestinationLocation, folderName)
	m.record(ctx, p, tracker.Result{
		Stage:   stageUpload,
		Status:  upload.Status,
		Message: upload.Message,
		Files:   upload.UploadedFiles,
	})
	if !upload.OK() {
		p.addError(services.KindTransfer, upload.Message)
		return
	}
	p.outputLocation = upload.Destination
}

// record appends a stage result while the job is still processing.
func (m *Manager) record(ctx context.Context, p *pass, result tracker.Result) {
	folderName := p.folderName
	_, err := m.deps.Tracker.Update(ctx, p.msg.ExecutionID, func(j *tracker.Job) error {
		j.AddResult(result)
		if folderName != "" {
			j.FolderName = folderName
		}
		return nil
	})
	if err != nil {
		logging.WarnWithContext(m.passLogger(ctx), "failed to record stage result", "result_record_failed",
			logging.Error(err),
			logging.String(logging.FieldStage, result.Stage),
			logging.String(logging.FieldImpact, "status queries miss this stage"),
		)
	}
}

// finish commits the accumulated errors together with the terminal status.
// A failed commit is retried once before the job is left as stored.
func (m *Manager) finish(ctx context.Context, p *pass) tracker.Job {
	logger := m.passLogger(ctx)
	status := p.status()
	commit := func(j *tracker.Job) error {
		j.Errors = append(j.Errors, p.errors...)
		j.Status = status
		if p.folderName != "" {
			j.FolderName = p.folderName
		}
		if p.outputLocation != "" {
			j.ProcessedOutputLocation = p.outputLocation
		}
		now := time.Now().UTC()
		j.CompletedAt = &now
		return nil
	}

	var (
		job tracker.Job
		err error
	)
	for attempt := 1; attempt <= terminalCommitAttempts; attempt++ {
		job, err = m.deps.Tracker.Update(ctx, p.msg.ExecutionID, commit)
		if err == nil {
			break
		}
		logging.WarnWithContext(logger, "terminal status commit failed", "terminal_commit_retry",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.String("status", string(status)),
		)
		if attempt < terminalCommitAttempts {
			time.Sleep(terminalCommitRetryDelay)
		}
	}
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to commit terminal status", "terminal_commit_failed",
			logging.Error(err),
			logging.String("status", string(status)),
			logging.String(logging.FieldErrorHint, "check tracker storage"),
			logging.String(logging.FieldImpact, "job stays processing and no callback is sent"),
		)
		job, _ = m.deps.Tracker.Get(ctx, p.msg.ExecutionID)
	}

	if len(p.errors) > 0 {
		last := p.errors[len(p.errors)-1]
		m.setLastError(errors.New(last.Message))
		logging.WarnWithContext(logger, "job ended with errors", "job_errors",
			logging.String("status", string(status)),
			logging.String(logging.FieldStage, last.Context),
			logging.String(logging.FieldErrorKind, string(last.Kind)),
			logging.String(logging.FieldErrorHint, last.Message),
			logging.Bool("retryable", services.Retryable(last.Kind)),
		)
	}
	m.setLastJob(job)
	return job
}
