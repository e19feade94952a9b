package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// NotificationEmailArgs carries one notification mail. The email service
// renders the HTML body when the job runs.
type NotificationEmailArgs struct {
	NotificationID int64  `json:"notification_id"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

func (NotificationEmailArgs) Kind() string { return JobKindNotificationEmail }

func (a NotificationEmailArgs) email() notifications.Email {
	return notifications.Email{
		NotificationID: a.NotificationID,
		To:             a.To,
		Subject:        a.Subject,
		Title:          a.Title,
		Body:           a.Body,
	}
}

// NotificationEmailWorker hands queued mail to the email service. Send
// errors are returned so River retries with backoff.
type NotificationEmailWorker struct {
	river.WorkerDefaults[NotificationEmailArgs]
	Sender notifications.EmailSender
	Logger zerolog.Logger
}

func (NotificationEmailWorker) Kind() string { return JobKindNotificationEmail }

func (w NotificationEmailWorker) Timeout(*river.Job[NotificationEmailArgs]) time.Duration {
	return 30 * time.Second
}

func (w NotificationEmailWorker) Work(ctx context.Context, job *river.Job[NotificationEmailArgs]) error {
	if w.Sender == nil {
		return fmt.Errorf("email sender not configured")
	}
	if job == nil {
		return fmt.Errorf("notification email job missing")
	}
	if job.Args.To == "" {
		return river.JobCancel(errors.New("notification email without recipient"))
	}

	if err := w.Sender.SendNotification(ctx, job.Args.email()); err != nil {
		w.Logger.Warn().
			Err(err).
			Int64("job_id", job.ID).
			Int("attempt", job.Attempt).
			Int64("notification_id", job.Args.NotificationID).
			Msg("notification email failed")
		return err
	}
	return nil
}

// NotificationCleanupArgs triggers the retention purge.
type NotificationCleanupArgs struct{}

func (NotificationCleanupArgs) Kind() string { return JobKindNotificationCleanup }

// Purger is satisfied by notifications.Dispatcher.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// NotificationCleanupWorker removes read notifications past retention.
type NotificationCleanupWorker struct {
	river.WorkerDefaults[NotificationCleanupArgs]
	Purger    Purger
	Retention time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (NotificationCleanupWorker) Kind() string { return JobKindNotificationCleanup }

func (w NotificationCleanupWorker) Work(ctx context.Context, job *river.Job[NotificationCleanupArgs]) error {
	if w.Purger == nil {
		return fmt.Errorf("notification purger not configured")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	n, err := w.Purger.Purge(ctx, w.Retention, now())
	if err != nil {
		return fmt.Errorf("purge notifications: %w", err)
	}
	if n > 0 {
		w.Logger.Info().Int64("deleted", n).Dur("retention", w.Retention).Msg("old notifications purged")
	}
	return nil
}

// WorkerDeps wires the workers to their collaborators.
type WorkerDeps struct {
	Sender    notifications.EmailSender
	Purger    Purger
	Retention time.Duration
	Logger    zerolog.Logger
}

func NewWorkers(deps WorkerDeps) *river.Workers {
	logger := deps.Logger.With().Str("component", "jobs").Logger()
	workers := river.NewWorkers()
	river.AddWorker[NotificationEmailArgs](workers, NotificationEmailWorker{Sender: deps.Sender, Logger: logger})
	river.AddWorker[NotificationCleanupArgs](workers, NotificationCleanupWorker{
		Purger:    deps.Purger,
		Retention: deps.Retention,
		Logger:    logger,
	})
	return workers
}
