package workflow

import (
	"context"
	"errors"
	"time"

	"stemworker/internal/logging"
)

// Start begins background queue consumption.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.deps.Queue == nil || m.deps.Tracker == nil || m.deps.Pipeline == nil || m.deps.Runner == nil {
		m.mu.Unlock()
		return errors.New("workflow dependencies not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.started = time.Now()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates queue consumption and waits for any in-flight pass.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("queue consumer started",
		logging.Duration("poll_timeout", m.pollTimeout),
		logging.String(logging.FieldEventType, "consumer_started"),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("queue consumer stopped", logging.String(logging.FieldEventType, "consumer_stopped"))
			return
		default:
		}

		payload, ok, err := m.deps.Queue.Pop(ctx, m.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			m.handleQueueError(ctx, err)
			continue
		}
		if !ok {
			continue
		}

		m.ProcessPayload(context.WithoutCancel(ctx), payload)
	}
}

func (m *Manager) handleQueueError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to pop queue message", "queue_pop_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue connectivity"),
		logging.Duration("backoff", m.errorBackoff),
	)
	m.waitOrShutdown(ctx, m.errorBackoff)
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
