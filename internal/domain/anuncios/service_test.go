package anuncios

import (
	"context"
	"testing"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) List(ctx context.Context, filters Filters) ([]Anuncio, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Anuncio), args.Error(1)
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*Anuncio, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Anuncio), args.Error(1)
}

func (m *mockRepository) Create(ctx context.Context, userID int64, input Input) (*Anuncio, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Anuncio), args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, id int64, input Input) (*Anuncio, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Anuncio), args.Error(1)
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) ListByArtist(ctx context.Context, artistID int64) ([]Anuncio, error) {
	args := m.Called(ctx, artistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Anuncio), args.Error(1)
}

func (m *mockRepository) ListByParticipant(ctx context.Context, name string) ([]Anuncio, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Anuncio), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Record(ctx context.Context, actor audit.Actor, action, details string) {
	m.Called(ctx, actor, action, details)
}

var (
	owner    = auth.Identity{ID: 1, Name: "Ana", Email: "ana@example.com"}
	stranger = auth.Identity{ID: 2, Name: "Bo", Email: "bo@example.com"}
	admin    = auth.Identity{ID: 3, Name: "Root", Email: "root@example.com", IsAdmin: true}
)

func validDraft() Draft {
	precio := 1500.0
	return Draft{
		Titulo:        "Jam en el parque",
		Descripcion:   "Sesión abierta",
		Fecha:         "2026-03-15 20:00:00",
		Lugar:         "Parque Central",
		Precio:        &precio,
		Categoria:     "Concierto",
		Participantes: "Alice, Bob",
	}
}

func TestCreate(t *testing.T) {
	repo := &mockRepository{}
	recorder := &mockAudit{}
	svc := NewService(repo, recorder, zerolog.Nop())

	want := Input{
		Titulo:        "Jam en el parque",
		Descripcion:   "Sesión abierta",
		Fecha:         time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC),
		Lugar:         "Parque Central",
		Precio:        1500,
		Categoria:     CategoriaConcierto,
		Participantes: "Alice, Bob",
	}
	repo.On("Create", mock.Anything, int64(1), want).Return(&Anuncio{ID: 10, Titulo: want.Titulo, UserID: 1}, nil).Once()
	recorder.On("Record", mock.Anything, audit.ActorFromIdentity(owner), audit.ActionCreateAnuncio, "Título: Jam en el parque").Return().Once()

	created, err := svc.Create(context.Background(), owner, validDraft())
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)

	repo.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestCreate_PrecioDefaultsToZero(t *testing.T) {
	repo := &mockRepository{}
	recorder := &mockAudit{}
	svc := NewService(repo, recorder, zerolog.Nop())

	draft := validDraft()
	draft.Precio = nil
	repo.On("Create", mock.Anything, int64(1), mock.MatchedBy(func(in Input) bool { return in.Precio == 0 })).
		Return(&Anuncio{ID: 11}, nil).Once()
	recorder.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.Create(context.Background(), owner, draft)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(&mockRepository{}, &mockAudit{}, zerolog.Nop())
	negative := -1.0

	tests := []struct {
		name   string
		mutate func(*Draft)
		field  string
	}{
		{"missing titulo", func(d *Draft) { d.Titulo = "  " }, ""},
		{"markup only lugar", func(d *Draft) { d.Lugar = "<script>x</script>" }, ""},
		{"missing categoria", func(d *Draft) { d.Categoria = "" }, ""},
		{"bad categoria", func(d *Draft) { d.Categoria = "Circo" }, "categoria"},
		{"bad fecha", func(d *Draft) { d.Fecha = "xyzzy" }, "fecha"},
		{"negative precio", func(d *Draft) { d.Precio = &negative }, "precio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(&draft)
			_, err := svc.Create(context.Background(), owner, draft)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			if tt.field == "" {
				assert.Equal(t, msgRequiredFields, verr.Message)
			}
		})
	}
}

func TestUpdate_OwnershipRules(t *testing.T) {
	tests := []struct {
		name     string
		identity auth.Identity
		allowed  bool
	}{
		{"owner", owner, true},
		{"admin", admin, true},
		{"stranger", stranger, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			recorder := &mockAudit{}
			svc := NewService(repo, recorder, zerolog.Nop())

			repo.On("GetByID", mock.Anything, int64(5)).Return(&Anuncio{ID: 5, UserID: owner.ID, Titulo: "Viejo"}, nil).Once()
			if tt.allowed {
				repo.On("Update", mock.Anything, int64(5), mock.Anything).Return(&Anuncio{ID: 5, UserID: owner.ID, Titulo: "Jam en el parque"}, nil).Once()
				recorder.On("Record", mock.Anything, audit.ActorFromIdentity(tt.identity), audit.ActionEditAnuncio, "ID: 5, Título: Jam en el parque").Return().Once()
			}

			_, err := svc.Update(context.Background(), tt.identity, 5, validDraft())
			if tt.allowed {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, domain.ErrForbidden)
				assert.Equal(t, "No tienes permiso para editar este anuncio.", err.Error())
				repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
			recorder.AssertExpectations(t)
		})
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(repo, &mockAudit{}, zerolog.Nop())
	repo.On("GetByID", mock.Anything, int64(404)).Return(nil, ErrNotFound).Once()

	_, err := svc.Update(context.Background(), admin, 404, validDraft())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Run("stranger forbidden", func(t *testing.T) {
		repo := &mockRepository{}
		svc := NewService(repo, &mockAudit{}, zerolog.Nop())
		repo.On("GetByID", mock.Anything, int64(5)).Return(&Anuncio{ID: 5, UserID: owner.ID}, nil).Once()

		err := svc.Delete(context.Background(), stranger, 5)
		require.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, "No tienes permiso para eliminar este anuncio.", err.Error())
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("admin deletes", func(t *testing.T) {
		repo := &mockRepository{}
		recorder := &mockAudit{}
		svc := NewService(repo, recorder, zerolog.Nop())
		repo.On("GetByID", mock.Anything, int64(5)).Return(&Anuncio{ID: 5, UserID: owner.ID, Titulo: "Jam"}, nil).Once()
		repo.On("Delete", mock.Anything, int64(5)).Return(nil).Once()
		recorder.On("Record", mock.Anything, mock.Anything, audit.ActionDeleteAnuncio, "ID: 5, Título: Jam").Return().Once()

		require.NoError(t, svc.Delete(context.Background(), admin, 5))
		repo.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})

	t.Run("missing", func(t *testing.T) {
		repo := &mockRepository{}
		svc := NewService(repo, &mockAudit{}, zerolog.Nop())
		repo.On("GetByID", mock.Anything, int64(9)).Return(nil, ErrNotFound).Once()

		err := svc.Delete(context.Background(), owner, 9)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
