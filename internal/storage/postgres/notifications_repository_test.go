package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationMessage(title string) notifications.Message {
	return notifications.Message{Type: notifications.TypeInfo, Title: title, Message: "cuerpo"}
}

func auditEntry(userID int64, action string) audit.Entry {
	return audit.Entry{UserID: &userID, UserName: "Ana", UserEmail: "ana@example.com", Action: action, Details: "d"}
}

func TestNotificationRepository_ReadState(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	store := repo.Notifications()

	ana := insertUser(t, ctx, pool, "Ana", "ana@example.com")
	bea := insertUser(t, ctx, pool, "Bea", "bea@example.com")

	first, err := store.Create(ctx, ana, notifications.Message{
		Type:     notifications.TypeSuccess,
		Title:    "Solicitud aprobada",
		Message:  "ok",
		Metadata: map[string]any{"request_id": 3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":3}`, string(first.Metadata))
	assert.False(t, first.IsRead)

	_, err = store.Create(ctx, ana, notificationMessage("dos"))
	require.NoError(t, err)

	require.NoError(t, store.MarkRead(ctx, ana, first.ID))
	require.NoError(t, store.MarkRead(ctx, ana, first.ID))
	require.ErrorIs(t, store.MarkRead(ctx, bea, first.ID), domain.ErrNotFound)

	unread, err := store.UnreadCount(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	list, err := store.ListByUser(ctx, ana, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dos", list[0].Title)
	assert.Nil(t, list[0].Metadata)

	n, err := store.MarkAllRead(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	none, err := store.ListByUser(ctx, bea, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNotificationRepository_DeleteReadBefore(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	store := repo.Notifications()

	ana := insertUser(t, ctx, pool, "Ana", "ana@example.com")
	old, err := store.Create(ctx, ana, notificationMessage("vieja"))
	require.NoError(t, err)
	oldUnread, err := store.Create(ctx, ana, notificationMessage("vieja sin leer"))
	require.NoError(t, err)
	fresh, err := store.Create(ctx, ana, notificationMessage("nueva"))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE notifications SET created_at = now() - interval '100 days' WHERE id = ANY($1)`, []int64{old.ID, oldUnread.ID})
	require.NoError(t, err)
	require.NoError(t, store.MarkRead(ctx, ana, old.ID))
	require.NoError(t, store.MarkRead(ctx, ana, fresh.ID))

	n, err := store.DeleteReadBefore(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := store.ListByUser(ctx, ana, 10, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestAuditRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	ana := insertUser(t, ctx, pool, "Ana", "ana@example.com")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{audit.ActionLogin, audit.ActionCreateAnuncio, audit.ActionDeleteAnuncio} {
		entry := auditEntry(ana, action)
		entry.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Audit().Insert(ctx, entry))
	}
	require.NoError(t, repo.Audit().Insert(ctx, audit.Entry{Action: "SISTEMA", Timestamp: base.Add(-time.Hour)}))

	page, err := repo.Audit().List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, audit.ActionDeleteAnuncio, page[0].Action)
	assert.Equal(t, audit.ActionCreateAnuncio, page[1].Action)

	rest, err := repo.Audit().List(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Nil(t, rest[1].UserID)
}
