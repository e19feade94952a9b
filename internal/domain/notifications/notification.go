package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
)

var ErrNotFound = domain.NewError(domain.ErrNotFound, "Notificación no encontrada")

type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message is what a caller wants delivered. Email, when set, also sends
// the message by mail.
type Message struct {
	Type     Type
	Title    string
	Message  string
	Metadata map[string]any
	Email    string
}

// Email is one outbound notification mail.
type Email struct {
	NotificationID int64  `json:"notification_id"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// Repository stores notifications. MarkRead only touches rows owned by
// userID and returns ErrNotFound otherwise.
type Repository interface {
	Create(ctx context.Context, userID int64, msg Message) (*Notification, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EmailEnqueuer hands a mail to the background job queue.
type EmailEnqueuer interface {
	EnqueueNotificationEmail(ctx context.Context, email Email) error
}

// EmailSender delivers a mail immediately.
type EmailSender interface {
	SendNotification(ctx context.Context, email Email) error
}
