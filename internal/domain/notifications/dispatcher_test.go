package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*Notification
	failWrite bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]*Notification{}}
}

func (r *memoryRepo) Create(_ context.Context, userID int64, msg Message) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite {
		return nil, errors.New("insert failed")
	}
	r.nextID++
	n := &Notification{
		ID:        r.nextID,
		UserID:    userID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Message,
		CreatedAt: time.Unix(r.nextID, 0),
	}
	r.items[n.ID] = n
	copied := *n
	return &copied, nil
}

func (r *memoryRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) MarkRead(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (r *memoryRepo) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) UnreadCount(_ context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.items, id)
			count++
		}
	}
	return count, nil
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueNotificationEmail(ctx context.Context, email Email) error {
	return m.Called(ctx, email).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendNotification(ctx context.Context, email Email) error {
	return m.Called(ctx, email).Error(0)
}

func TestNotify_PersistsWithoutEmail(t *testing.T) {
	repo := newMemoryRepo()
	sender := &mockSender{}
	d := NewDispatcher(repo, nil, sender, zerolog.Nop())

	out := d.Notify(context.Background(), 4, Message{Type: TypeSuccess, Title: "Hola", Message: "mundo"})
	require.NoError(t, out.Err)
	assert.Equal(t, int64(1), out.NotificationID)
	assert.False(t, out.EmailQueued)
	assert.False(t, out.EmailSent)
	sender.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything)
}

func TestNotify_UnknownTypeBecomesInfo(t *testing.T) {
	repo := newMemoryRepo()
	d := NewDispatcher(repo, nil, nil, zerolog.Nop())

	out := d.Notify(context.Background(), 4, Message{Type: "shout", Title: "x"})
	require.NoError(t, out.Err)
	assert.Equal(t, TypeInfo, repo.items[out.NotificationID].Type)
}

func TestNotify_EnqueuesEmail(t *testing.T) {
	repo := newMemoryRepo()
	enqueuer := &mockEnqueuer{}
	sender := &mockSender{}
	d := NewDispatcher(repo, enqueuer, sender, zerolog.Nop())

	enqueuer.On("EnqueueNotificationEmail", mock.Anything, Email{
		NotificationID: 1,
		To:             "ana@example.com",
		Subject:        "Notificación",
		Body:           "cuerpo",
	}).Return(nil).Once()

	out := d.Notify(context.Background(), 4, Message{Type: TypeInfo, Message: "cuerpo", Email: " ana@example.com "})
	require.NoError(t, out.Err)
	assert.True(t, out.EmailQueued)
	enqueuer.AssertExpectations(t)
	sender.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything)
}

func TestNotify_EnqueueFailureFallsBackToInlineSend(t *testing.T) {
	repo := newMemoryRepo()
	enqueuer := &mockEnqueuer{}
	sender := &mockSender{}
	d := NewDispatcher(repo, enqueuer, sender, zerolog.Nop())

	enqueuer.On("EnqueueNotificationEmail", mock.Anything, mock.Anything).Return(errors.New("queue down")).Once()
	sender.On("SendNotification", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return e.Subject == "Solicitud aprobada" && e.To == "ana@example.com"
	})).Return(nil).Once()

	out := d.Notify(context.Background(), 4, Message{Type: TypeSuccess, Title: "Solicitud aprobada", Email: "ana@example.com"})
	require.NoError(t, out.Err)
	assert.False(t, out.EmailQueued)
	assert.True(t, out.EmailSent)
	sender.AssertExpectations(t)
}

func TestNotify_EmailFailureIsNotAnError(t *testing.T) {
	repo := newMemoryRepo()
	sender := &mockSender{}
	d := NewDispatcher(repo, nil, sender, zerolog.Nop())
	sender.On("SendNotification", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	out := d.Notify(context.Background(), 4, Message{Title: "x", Email: "ana@example.com"})
	require.NoError(t, out.Err)
	assert.False(t, out.EmailSent)
	assert.Len(t, repo.items, 1)
}

func TestNotify_StoreFailureSkipsEmail(t *testing.T) {
	repo := newMemoryRepo()
	repo.failWrite = true
	sender := &mockSender{}
	d := NewDispatcher(repo, nil, sender, zerolog.Nop())

	out := d.Notify(context.Background(), 4, Message{Title: "x", Email: "ana@example.com"})
	require.Error(t, out.Err)
	sender.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything)
}

func TestMarkRead_IdempotentAndOwnerOnly(t *testing.T) {
	repo := newMemoryRepo()
	d := NewDispatcher(repo, nil, nil, zerolog.Nop())
	ctx := context.Background()

	out := d.Notify(ctx, 4, Message{Title: "x"})
	require.NoError(t, out.Err)

	require.NoError(t, d.MarkRead(ctx, 4, out.NotificationID))
	require.NoError(t, d.MarkRead(ctx, 4, out.NotificationID))

	count, err := d.UnreadCount(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, repo.items[out.NotificationID].IsRead)

	err = d.MarkRead(ctx, 5, out.NotificationID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndMarkAllRead(t *testing.T) {
	repo := newMemoryRepo()
	d := NewDispatcher(repo, nil, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.Notify(ctx, 4, Message{Title: "n"})
	}
	d.Notify(ctx, 5, Message{Title: "other"})

	items, err := d.List(ctx, 4, 0, -1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int64(3), items[0].ID)

	n, err := d.MarkAllRead(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := d.UnreadCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurge(t *testing.T) {
	repo := newMemoryRepo()
	d := NewDispatcher(repo, nil, nil, zerolog.Nop())
	ctx := context.Background()

	out := d.Notify(ctx, 4, Message{Title: "old"})
	d.Notify(ctx, 4, Message{Title: "unread"})
	require.NoError(t, d.MarkRead(ctx, 4, out.NotificationID))

	n, err := d.Purge(ctx, time.Hour, time.Unix(10_000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.items, 1)

	n, err = d.Purge(ctx, 0, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
