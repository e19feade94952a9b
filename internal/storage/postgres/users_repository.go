package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/users"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	conn
}

const userColumns = `id, name, email, is_admin, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (_ *users.User, err error) {
	defer metrics.RecordQuery("users.create", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (name, email, password_hash, is_admin)
VALUES ($1, $2, $3, $4)
RETURNING `+userColumns,
		params.Name, params.Email, params.PasswordHash, params.IsAdmin)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (_ *users.User, err error) {
	defer metrics.RecordQuery("users.get", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	defer metrics.RecordQuery("users.get_by_email", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, err
}

func (r *UserRepository) List(ctx context.Context) (_ []users.User, err error) {
	defer metrics.RecordQuery("users.list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, params users.UpdateParams) (_ *users.User, err error) {
	defer metrics.RecordQuery("users.update", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `
UPDATE users
   SET name = $2,
       email = $3,
       password_hash = COALESCE($4, password_hash),
       is_admin = $5,
       updated_at = now()
 WHERE id = $1
RETURNING `+userColumns,
		id, params.Name, params.Email, params.PasswordHash, params.IsAdmin)
	u, err := scanUser(row)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, users.ErrNotFound):
		return nil, err
	case isUniqueViolation(err):
		return nil, users.ErrEmailTaken
	default:
		return nil, fmt.Errorf("update user: %w", err)
	}
}

func (r *UserRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) (_ *users.User, err error) {
	defer metrics.RecordQuery("users.set_admin", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, `
UPDATE users SET is_admin = $2, updated_at = now()
 WHERE id = $1
RETURNING `+userColumns, id, isAdmin))
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("set admin: %w", err)
	}
	return u, err
}

func (r *UserRepository) Delete(ctx context.Context, id int64) (err error) {
	defer metrics.RecordQuery("users.delete", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}
