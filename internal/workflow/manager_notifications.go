package workflow

import (
	"context"

	"stemworker/internal/callback"
	"stemworker/internal/events"
	"stemworker/internal/logging"
	"stemworker/internal/tracker"
)

// notifyTerminal emits the callback and the terminal lifecycle event. Both
// are best effort; failures are logged and never retried.
func (m *Manager) notifyTerminal(ctx context.Context, job tracker.Job) {
	if !job.IsTerminal() {
		return
	}
	m.publish(ctx, job, "terminal")

	if job.CallbackURL == "" {
		return
	}
	logger := m.passLogger(ctx)
	if err := m.deps.Notifier.Notify(ctx, job.CallbackURL, callback.FromJob(job)); err != nil {
		logging.WarnWithContext(logger, "callback delivery failed", "callback_failed",
			logging.Error(err),
			logging.String("callback_url", job.CallbackURL),
			logging.String(logging.FieldErrorHint, "confirm the callback endpoint answers 200"),
			logging.String(logging.FieldImpact, "caller not notified; status remains queryable"),
		)
		return
	}
	logger.Info("callback delivered",
		logging.String("callback_url", job.CallbackURL),
		logging.String("status", string(job.Status)),
		logging.String(logging.FieldEventType, "callback_delivered"),
	)
}

func (m *Manager) publish(ctx context.Context, job tracker.Job, stage string) {
	if err := m.deps.Publisher.Publish(ctx, events.FromJob(job, stage)); err != nil {
		m.passLogger(ctx).Debug("lifecycle event publish failed",
			logging.Error(err),
			logging.String("status", string(job.Status)),
		)
	}
}
