package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Togather-Foundation/tablon/internal/api/middleware"
	"github.com/Togather-Foundation/tablon/internal/api/problem"
	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/auth"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	member = auth.Identity{ID: 7, Name: "Ana", Email: "ana@example.com"}
	admin  = auth.Identity{ID: 1, Name: "Admin", Email: "admin@example.com", IsAdmin: true}
)

// newRequest builds a request carrying identity, with PathValues set from
// the trailing key/value pairs.
func newRequest(method, target, body string, identity *auth.Identity, path ...string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(middleware.ContextWithIdentity(req.Context(), *identity))
	}
	for i := 0; i+1 < len(path); i += 2 {
		req.SetPathValue(path[i], path[i+1])
	}
	return req
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem.ProblemDetails {
	t.Helper()
	var p problem.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Register(ctx context.Context, in users.RegisterInput) (users.Session, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(users.Session), args.Error(1)
}

func (m *mockAccounts) Login(ctx context.Context, email, password string) (users.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(users.Session), args.Error(1)
}

func (m *mockAccounts) Verify(ctx context.Context, id int64) (*users.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAnuncios struct{ mock.Mock }

func (m *mockAnuncios) List(ctx context.Context, filters anuncios.Filters) ([]anuncios.Anuncio, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]anuncios.Anuncio), args.Error(1)
}

func (m *mockAnuncios) Get(ctx context.Context, id int64) (*anuncios.Anuncio, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*anuncios.Anuncio), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAnuncios) Create(ctx context.Context, identity auth.Identity, draft anuncios.Draft) (*anuncios.Anuncio, error) {
	args := m.Called(ctx, identity, draft)
	if a := args.Get(0); a != nil {
		return a.(*anuncios.Anuncio), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAnuncios) Update(ctx context.Context, identity auth.Identity, id int64, draft anuncios.Draft) (*anuncios.Anuncio, error) {
	args := m.Called(ctx, identity, id, draft)
	if a := args.Get(0); a != nil {
		return a.(*anuncios.Anuncio), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAnuncios) Delete(ctx context.Context, identity auth.Identity, id int64) error {
	return m.Called(ctx, identity, id).Error(0)
}

type mockArtists struct{ mock.Mock }

func (m *mockArtists) Lookup(ctx context.Context, name string) (artists.LookupResult, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(artists.LookupResult), args.Error(1)
}

func (m *mockArtists) List(ctx context.Context) ([]artists.Artist, error) {
	args := m.Called(ctx)
	return args.Get(0).([]artists.Artist), args.Error(1)
}

func (m *mockArtists) Create(ctx context.Context, actor audit.Actor, in artists.Input) (*artists.Artist, error) {
	args := m.Called(ctx, actor, in)
	if a := args.Get(0); a != nil {
		return a.(*artists.Artist), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockArtists) Update(ctx context.Context, actor audit.Actor, id int64, in artists.Input) (*artists.Artist, error) {
	args := m.Called(ctx, actor, id, in)
	if a := args.Get(0); a != nil {
		return a.(*artists.Artist), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockArtists) Delete(ctx context.Context, actor audit.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockRequests struct{ mock.Mock }

func (m *mockRequests) Submit(ctx context.Context, requester auth.Identity, in artistrequests.SubmitInput) (artistrequests.SubmitResult, error) {
	args := m.Called(ctx, requester, in)
	return args.Get(0).(artistrequests.SubmitResult), args.Error(1)
}

func (m *mockRequests) List(ctx context.Context, filters artistrequests.Filters) (artistrequests.ListResult, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).(artistrequests.ListResult), args.Error(1)
}

func (m *mockRequests) Get(ctx context.Context, id int64) (*artistrequests.ArtistRequest, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*artistrequests.ArtistRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequests) Approve(ctx context.Context, admin auth.Identity, id int64, notes string) (artistrequests.ApproveResult, error) {
	args := m.Called(ctx, admin, id, notes)
	return args.Get(0).(artistrequests.ApproveResult), args.Error(1)
}

func (m *mockRequests) Reject(ctx context.Context, admin auth.Identity, id int64, reason string) (artistrequests.RejectResult, error) {
	args := m.Called(ctx, admin, id, reason)
	return args.Get(0).(artistrequests.RejectResult), args.Error(1)
}

func (m *mockRequests) Delete(ctx context.Context, admin auth.Identity, id int64) error {
	return m.Called(ctx, admin, id).Error(0)
}

type mockNotifications struct{ mock.Mock }

func (m *mockNotifications) List(ctx context.Context, userID int64, limit, offset int) ([]notifications.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]notifications.Notification), args.Error(1)
}

func (m *mockNotifications) MarkRead(ctx context.Context, userID, id int64) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotifications) UnreadCount(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) List(ctx context.Context) ([]users.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *mockUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) Create(ctx context.Context, actor audit.Actor, in users.AdminInput) (*users.User, error) {
	args := m.Called(ctx, actor, in)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) Update(ctx context.Context, actor audit.Actor, id int64, in users.AdminInput) (*users.User, error) {
	args := m.Called(ctx, actor, id, in)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) SetAdmin(ctx context.Context, actor audit.Actor, id int64, isAdmin bool) (*users.User, error) {
	args := m.Called(ctx, actor, id, isAdmin)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) Delete(ctx context.Context, actor audit.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) List(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]audit.Entry), args.Error(1)
}
