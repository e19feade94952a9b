package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AlertFunc is invoked when a job has used its last attempt.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// AlertingErrorHandler logs every failure and forwards exhausted jobs.
type AlertingErrorHandler struct {
	Logger *slog.Logger
	Notify AlertFunc
}

func NewAlertingErrorHandler(logger *slog.Logger, notify AlertFunc) *AlertingErrorHandler {
	return &AlertingErrorHandler{
		Logger: logger,
		Notify: notify,
	}
}

func (h *AlertingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.handle(ctx, job, err, "job failed")
	return nil
}

func (h *AlertingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	panicErr := fmt.Errorf("panic: %v", panicVal)
	if h.Logger != nil {
		h.Logger.Error("job panicked", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "trace", trace)
	}
	h.handle(ctx, job, panicErr, "")
	return nil
}

func (h *AlertingErrorHandler) handle(ctx context.Context, job *rivertype.JobRow, err error, msg string) {
	exhausted := job.Attempt >= job.MaxAttempts
	if h.Logger != nil && msg != "" {
		level := slog.LevelWarn
		if exhausted {
			level = slog.LevelError
		}
		h.Logger.Log(ctx, level, msg,
			"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt,
			"max_attempts", job.MaxAttempts, "error", err)
	}
	if exhausted && h.Notify != nil {
		h.Notify(ctx, job, err)
	}
}
