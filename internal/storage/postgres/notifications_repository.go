package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ notifications.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	conn
}

const notificationColumns = `id, user_id, type, title, message, metadata, is_read, created_at`

func scanNotification(row pgx.Row) (*notifications.Notification, error) {
	var (
		n        notifications.Notification
		kind     string
		metadata any
	)
	if err := row.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &metadata, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = notifications.Type(kind)
	raw, err := rawJSON(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	n.Metadata = raw
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, userID int64, msg notifications.Message) (_ *notifications.Notification, err error) {
	defer metrics.RecordQuery("notifications.create", time.Now(), &err)

	var metadata *string
	if len(msg.Metadata) > 0 {
		encoded, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		s := string(encoded)
		metadata = &s
	}

	n, err := scanNotification(r.queryer().QueryRow(ctx, `
INSERT INTO notifications (user_id, type, title, message, metadata)
VALUES ($1, $2, $3, $4, $5::jsonb)
RETURNING `+notificationColumns,
		userID, string(msg.Type), msg.Title, msg.Message, metadata))
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) (_ []notifications.Notification, err error) {
	defer metrics.RecordQuery("notifications.list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `
SELECT `+notificationColumns+`
  FROM notifications
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkRead matches already-read rows too, so repeating it succeeds.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) (err error) {
	defer metrics.RecordQuery("notifications.mark_read", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (_ int64, err error) {
	defer metrics.RecordQuery("notifications.mark_all_read", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (_ int, err error) {
	defer metrics.RecordQuery("notifications.unread_count", time.Now(), &err)

	var count int
	if err := r.queryer().QueryRow(ctx, `
SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	defer metrics.RecordQuery("notifications.purge", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
