package jobs

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/tablon/internal/config"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

type inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

var _ notifications.EmailEnqueuer = (*Enqueuer)(nil)

// Enqueuer puts notification mail on the River email queue.
type Enqueuer struct {
	client inserter
	queue  string
	policy *RetryPolicy
}

func NewEnqueuer(client inserter, cfg config.JobsConfig) *Enqueuer {
	return &Enqueuer{
		client: client,
		queue:  emailQueue(cfg.NotificationEmailQueue),
		policy: NewRetryPolicy(cfg.RetryNotificationEmail),
	}
}

func (e *Enqueuer) EnqueueNotificationEmail(ctx context.Context, email notifications.Email) error {
	opts := e.policy.InsertOpts(JobKindNotificationEmail)
	opts.Queue = e.queue

	_, err := e.client.Insert(ctx, NotificationEmailArgs{
		NotificationID: email.NotificationID,
		To:             email.To,
		Subject:        email.Subject,
		Title:          email.Title,
		Body:           email.Body,
	}, &opts)
	if err != nil {
		return fmt.Errorf("enqueue notification email: %w", err)
	}
	return nil
}
