// Package telemetry records best-effort timing and success telemetry for
// every instrumented operation. Recorder failures are logged and swallowed;
// telemetry must never cause the wrapped operation to fail.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"go.uber.org/zap"
)

// Recorder wraps operations and persists one ToolCallRecord per invocation.
type Recorder struct {
	repo   repository.ToolUsageRepository
	logger *logger.Logger
	clock  func() time.Time
}

// NewRecorder creates a Recorder over the given repository.
func NewRecorder(repo repository.ToolUsageRepository, log *logger.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: log,
		clock:  time.Now,
	}
}

// Instrument runs fn, measuring elapsed time and capturing success/failure
// and payload size, then persists the record. The returned payload and error
// are fn's own, untouched by telemetry.
func (r *Recorder) Instrument(ctx context.Context, sessionID, tool, args string, fn func() ([]byte, error)) ([]byte, error) {
	start := r.clock()
	payload, err := fn()
	elapsed := r.clock().Sub(start)

	record := types.ToolCallRecord{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Tool:         tool,
		Args:         args,
		ResponseSize: len(payload),
		Elapsed:      elapsed,
		Success:      err == nil,
		Error:        "",
		CreatedAt:    start,
	}

	if err != nil {
		record.Error = err.Error()
	}

	// Persist detached from the caller's context so a cancelled operation
	// still gets its failure recorded.
	if persistErr := r.repo.InsertToolCall(context.WithoutCancel(ctx), record); persistErr != nil {
		r.logger.Warn("failed to persist tool call record",
			zap.String("tool", tool),
			zap.String("session_id", sessionID),
			zap.Error(persistErr),
		)
	}

	return payload, err
}
