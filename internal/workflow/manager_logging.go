package workflow

import (
	"context"
	"log/slog"

	"stemworker/internal/logging"
	"stemworker/internal/services"
)

func (m *Manager) passLogger(ctx context.Context) *slog.Logger {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}

func withPassContext(ctx context.Context, executionID, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if executionID != "" {
		ctx = services.WithExecutionID(ctx, executionID)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
