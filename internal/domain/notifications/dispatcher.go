package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	defaultSubject   = "Notificación"
)

// Outcome reports what Notify managed to do. Err is set only when the
// notification row could not be stored; email problems are logged.
type Outcome struct {
	NotificationID int64
	EmailQueued    bool
	EmailSent      bool
	Err            error
}

// Dispatcher stores in-app notifications and forwards them by email.
type Dispatcher struct {
	repo     Repository
	enqueuer EmailEnqueuer
	sender   EmailSender
	logger   zerolog.Logger
}

// NewDispatcher builds a dispatcher. With a nil enqueuer mail is sent
// inline through sender; with both nil mail is skipped.
func NewDispatcher(repo Repository, enqueuer EmailEnqueuer, sender EmailSender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		enqueuer: enqueuer,
		sender:   sender,
		logger:   logger.With().Str("component", "notifications").Logger(),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, userID int64, msg Message) Outcome {
	if !msg.Type.Valid() {
		msg.Type = TypeInfo
	}

	created, err := d.repo.Create(ctx, userID, msg)
	if err != nil {
		d.logger.Warn().Err(err).Int64("user_id", userID).Msg("notification not stored")
		return Outcome{Err: fmt.Errorf("store notification: %w", err)}
	}
	metrics.NotificationsCreated.WithLabelValues(string(msg.Type)).Inc()

	outcome := Outcome{NotificationID: created.ID}
	to := strings.TrimSpace(msg.Email)
	if to == "" {
		return outcome
	}

	subject := msg.Title
	if strings.TrimSpace(subject) == "" {
		subject = defaultSubject
	}
	mail := Email{
		NotificationID: created.ID,
		To:             to,
		Subject:        subject,
		Title:          msg.Title,
		Body:           msg.Message,
	}

	if d.enqueuer != nil {
		err := d.enqueuer.EnqueueNotificationEmail(ctx, mail)
		if err == nil {
			outcome.EmailQueued = true
			return outcome
		}
		d.logger.Warn().Err(err).Int64("notification_id", created.ID).Msg("email enqueue failed, sending inline")
	}

	if d.sender != nil {
		if err := d.sender.SendNotification(ctx, mail); err != nil {
			d.logger.Warn().Err(err).Int64("notification_id", created.ID).Msg("notification email failed")
		} else {
			outcome.EmailSent = true
		}
	}
	return outcome
}

// List returns the user's notifications newest first.
func (d *Dispatcher) List(ctx context.Context, userID int64, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, err := d.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead is idempotent. Notifications of other users look missing.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, id int64) error {
	return d.repo.MarkRead(ctx, userID, id)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := d.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID int64) (int, error) {
	n, err := d.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

// Purge deletes read notifications older than retention.
func (d *Dispatcher) Purge(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := d.repo.DeleteReadBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	metrics.NotificationsPurged.Add(float64(n))
	return n, nil
}
