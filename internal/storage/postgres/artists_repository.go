package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ artists.Repository = (*ArtistRepository)(nil)

type ArtistRepository struct {
	conn
}

const artistColumns = `id, name, bio, photo, spotify, youtube, whatsapp, instagram, facebook,
       threads, tiktok, bandcamp, website, email, phone, created_at`

func scanArtist(row pgx.Row) (*artists.Artist, error) {
	var a artists.Artist
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Bio,
		&a.Photo,
		&a.Spotify,
		&a.YouTube,
		&a.WhatsApp,
		&a.Instagram,
		&a.Facebook,
		&a.Threads,
		&a.TikTok,
		&a.Bandcamp,
		&a.Website,
		&a.Email,
		&a.Phone,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, artists.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func artistArgs(in artists.Input) []any {
	return []any{
		in.Name, in.Bio, in.Photo,
		in.Spotify, in.YouTube, in.WhatsApp, in.Instagram, in.Facebook,
		in.Threads, in.TikTok, in.Bandcamp, in.Website,
		in.Email, in.Phone,
	}
}

func collectArtists(rows pgx.Rows) ([]artists.Artist, error) {
	defer rows.Close()
	out := []artists.Artist{}
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artists: %w", err)
	}
	return out, nil
}

// Create returns ErrNameTaken when the unique name constraint fires.
func (r *ArtistRepository) Create(ctx context.Context, input artists.Input) (_ *artists.Artist, err error) {
	defer metrics.RecordQuery("artists.create", time.Now(), &err)

	a, err := scanArtist(r.queryer().QueryRow(ctx, `
INSERT INTO artists (name, bio, photo, spotify, youtube, whatsapp, instagram, facebook,
                     threads, tiktok, bandcamp, website, email, phone)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING `+artistColumns, artistArgs(input)...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, artists.ErrNameTaken
		}
		return nil, fmt.Errorf("create artist: %w", err)
	}
	return a, nil
}

func (r *ArtistRepository) Update(ctx context.Context, id int64, input artists.Input) (_ *artists.Artist, err error) {
	defer metrics.RecordQuery("artists.update", time.Now(), &err)

	args := append([]any{id}, artistArgs(input)...)
	a, err := scanArtist(r.queryer().QueryRow(ctx, `
UPDATE artists
   SET name = $2, bio = $3, photo = $4, spotify = $5, youtube = $6, whatsapp = $7,
       instagram = $8, facebook = $9, threads = $10, tiktok = $11, bandcamp = $12,
       website = $13, email = $14, phone = $15
 WHERE id = $1
RETURNING `+artistColumns, args...))
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, artists.ErrNotFound):
		return nil, err
	case isUniqueViolation(err):
		return nil, artists.ErrNameTaken
	default:
		return nil, fmt.Errorf("update artist: %w", err)
	}
}

// Delete removes the artist. Anuncio links cascade; anuncios stay.
func (r *ArtistRepository) Delete(ctx context.Context, id int64) (err error) {
	defer metrics.RecordQuery("artists.delete", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM artists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete artist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return artists.ErrNotFound
	}
	return nil
}

func (r *ArtistRepository) GetByID(ctx context.Context, id int64) (_ *artists.Artist, err error) {
	defer metrics.RecordQuery("artists.get", time.Now(), &err)

	a, err := scanArtist(r.queryer().QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, id))
	if err != nil && !errors.Is(err, artists.ErrNotFound) {
		return nil, fmt.Errorf("get artist: %w", err)
	}
	return a, err
}

// FindByName is an exact, case-sensitive match.
func (r *ArtistRepository) FindByName(ctx context.Context, name string) (_ *artists.Artist, err error) {
	defer metrics.RecordQuery("artists.find_by_name", time.Now(), &err)

	a, err := scanArtist(r.queryer().QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE name = $1`, name))
	if err != nil && !errors.Is(err, artists.ErrNotFound) {
		return nil, fmt.Errorf("find artist: %w", err)
	}
	return a, err
}

// SearchByName matches fragment case-insensitively anywhere in the name.
func (r *ArtistRepository) SearchByName(ctx context.Context, fragment string) (_ []artists.Artist, err error) {
	defer metrics.RecordQuery("artists.search", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `
SELECT `+artistColumns+`
  FROM artists
 WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
 ORDER BY name ASC`, escapeLike(fragment))
	if err != nil {
		return nil, fmt.Errorf("search artists: %w", err)
	}
	return collectArtists(rows)
}

func (r *ArtistRepository) List(ctx context.Context) (_ []artists.Artist, err error) {
	defer metrics.RecordQuery("artists.list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	return collectArtists(rows)
}
