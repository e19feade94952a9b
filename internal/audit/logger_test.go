package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, entry Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Entry), args.Error(1)
}

func TestLogger_RecordPersistsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{}
	logger := NewLogger(store, zerolog.New(&buf))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	store.On("Insert", mock.Anything, mock.MatchedBy(func(e Entry) bool {
		return e.UserID != nil && *e.UserID == 7 &&
			e.UserName == "Ana" &&
			e.UserEmail == "ana@example.com" &&
			e.Action == ActionCreateAnuncio &&
			e.Details == "Título: Jam" &&
			e.Timestamp.Equal(fixed)
	})).Return(nil).Once()

	logger.Record(context.Background(), Actor{ID: 7, Name: "Ana", Email: "ana@example.com"}, ActionCreateAnuncio, "Título: Jam")

	store.AssertExpectations(t)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["message"])
	assert.Equal(t, ActionCreateAnuncio, line["action"])
	assert.Equal(t, "audit", line["component"])
}

func TestLogger_RecordAnonymousActor(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, zerolog.Nop())

	store.On("Insert", mock.Anything, mock.MatchedBy(func(e Entry) bool {
		return e.UserID == nil
	})).Return(nil).Once()

	logger.Record(context.Background(), Actor{}, ActionLogin, "Email: x@example.com")
	store.AssertExpectations(t)
}

func TestLogger_RecordSwallowsStoreErrors(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{}
	logger := NewLogger(store, zerolog.New(&buf))

	store.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	assert.NotPanics(t, func() {
		logger.Record(context.Background(), Actor{ID: 1}, ActionLogin, "")
	})
	assert.Contains(t, buf.String(), "audit entry not persisted")
}

func TestLogger_NilSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Record(context.Background(), Actor{ID: 1}, ActionLogin, "")
	})
}

func TestLogger_ListClampsPaging(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, zerolog.Nop())

	store.On("List", mock.Anything, DefaultListLimit, 0).Return([]Entry{{ID: 1}}, nil).Once()
	store.On("List", mock.Anything, MaxListLimit, 10).Return([]Entry{}, nil).Once()

	entries, err := logger.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = logger.List(context.Background(), 10_000, 10)
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestActorFromIdentity(t *testing.T) {
	actor := ActorFromIdentity(auth.Identity{ID: 3, Name: "Bo", Email: "bo@example.com", IsAdmin: true})
	assert.Equal(t, Actor{ID: 3, Name: "Bo", Email: "bo@example.com"}, actor)
}
