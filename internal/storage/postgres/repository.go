package postgres

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/domain/users"
	"github.com/Togather-Foundation/tablon/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ storage.Repository        = (*Repository)(nil)
	_ artistrequests.Transactor = (*Repository)(nil)
)

// Repository implements storage.Repository with a PostgreSQL backend.
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) base() conn {
	return conn{pool: r.pool, tx: r.tx}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{conn: r.base()}
}

func (r *Repository) Anuncios() anuncios.Repository {
	return &AnuncioRepository{conn: r.base()}
}

func (r *Repository) Artists() artists.Repository {
	return &ArtistRepository{conn: r.base()}
}

func (r *Repository) ArtistRequests() artistrequests.Repository {
	return &ArtistRequestRepository{conn: r.base()}
}

func (r *Repository) Notifications() notifications.Repository {
	return &NotificationRepository{conn: r.base()}
}

func (r *Repository) Audit() audit.Store {
	return &AuditRepository{conn: r.base()}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx runs fn inside a transaction. Nested calls reuse the open one.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{pool: r.pool, tx: tx})
	})
}

// WithModerationTx runs fn with the request and artist stores bound to one
// transaction.
func (r *Repository) WithModerationTx(ctx context.Context, fn func(context.Context, artistrequests.TxStores) error) error {
	return r.WithTx(ctx, func(ctx context.Context, tx storage.Repository) error {
		return fn(ctx, artistrequests.TxStores{
			Requests: tx.ArtistRequests(),
			Artists:  tx.Artists(),
		})
	})
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
