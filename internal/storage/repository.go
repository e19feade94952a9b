package storage

import (
	"context"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Anuncios() anuncios.Repository
	Artists() artists.Repository
	ArtistRequests() artistrequests.Repository
	Notifications() notifications.Repository
	Audit() audit.Store

	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
