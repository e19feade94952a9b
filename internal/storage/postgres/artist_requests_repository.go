package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/artistrequests"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ artistrequests.Repository = (*ArtistRequestRepository)(nil)

type ArtistRequestRepository struct {
	conn
}

type artistRequestRow struct {
	ID           int64
	UserID       int64
	Nombre       string
	Bio          *string
	Genero       *string
	SocialLinks  any
	ImageURLs    any
	Muestras     any
	NotasUsuario *string
	Status       string
	AdminID      *int64
	AdminNotes   *string
	ReviewedAt   pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
}

const artistRequestColumns = `id, user_id, nombre, bio, genero, social_links, image_urls, muestras,
       notas_usuario, status, admin_id, admin_notes, reviewed_at, created_at`

func scanArtistRequest(row pgx.Row) (*artistrequests.ArtistRequest, error) {
	var data artistRequestRow
	if err := row.Scan(
		&data.ID,
		&data.UserID,
		&data.Nombre,
		&data.Bio,
		&data.Genero,
		&data.SocialLinks,
		&data.ImageURLs,
		&data.Muestras,
		&data.NotasUsuario,
		&data.Status,
		&data.AdminID,
		&data.AdminNotes,
		&data.ReviewedAt,
		&data.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, artistrequests.ErrNotFound
		}
		return nil, err
	}

	req := &artistrequests.ArtistRequest{
		ID:           data.ID,
		UserID:       data.UserID,
		Nombre:       data.Nombre,
		Bio:          data.Bio,
		Genero:       data.Genero,
		NotasUsuario: data.NotasUsuario,
		Status:       artistrequests.Status(data.Status),
		AdminID:      data.AdminID,
		AdminNotes:   data.AdminNotes,
		CreatedAt:    data.CreatedAt.Time,
	}
	if data.ReviewedAt.Valid {
		reviewed := data.ReviewedAt.Time
		req.ReviewedAt = &reviewed
	}

	var err error
	if req.SocialLinks, err = decodeSocialLinks(data.SocialLinks); err != nil {
		return nil, fmt.Errorf("decode social_links: %w", err)
	}
	if req.ImageURLs, err = decodeStringList(data.ImageURLs); err != nil {
		return nil, fmt.Errorf("decode image_urls: %w", err)
	}
	if req.Muestras, err = rawJSON(data.Muestras); err != nil {
		return nil, fmt.Errorf("decode muestras: %w", err)
	}
	return req, nil
}

// rawJSON normalizes a JSONB value as returned by the driver. Depending on
// the scan target and protocol that is raw bytes, a string or an already
// decoded Go value.
func rawJSON(src any) (json.RawMessage, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return json.RawMessage(append([]byte(nil), v...)), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if json.Valid([]byte(v)) {
			return json.RawMessage(v), nil
		}
		// A bare string that is not itself JSON was decoded from a JSON string.
		return json.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

func decodeSocialLinks(src any) ([]artistrequests.SocialLink, error) {
	raw, err := rawJSON(src)
	if err != nil || raw == nil {
		return []artistrequests.SocialLink{}, err
	}
	var input artistrequests.SocialLinksInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	links := input.Links()
	if links == nil {
		links = []artistrequests.SocialLink{}
	}
	return links, nil
}

// decodeStringList also accepts a lone string, as written by older clients.
func decodeStringList(src any) ([]string, error) {
	raw, err := rawJSON(src)
	if err != nil || raw == nil {
		return []string{}, err
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}, nil
		}
		return []string{single}, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func encodeJSONB(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case []artistrequests.SocialLink:
		if v == nil {
			v = []artistrequests.SocialLink{}
		}
		return json.Marshal(v)
	case []string:
		if v == nil {
			v = []string{}
		}
		return json.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

func (r *ArtistRequestRepository) Create(ctx context.Context, p artistrequests.CreateParams) (_ int64, err error) {
	defer metrics.RecordQuery("artist_requests.create", time.Now(), &err)

	links, err := encodeJSONB(p.SocialLinks)
	if err != nil {
		return 0, fmt.Errorf("encode social_links: %w", err)
	}
	images, err := encodeJSONB(p.ImageURLs)
	if err != nil {
		return 0, fmt.Errorf("encode image_urls: %w", err)
	}
	muestras, err := encodeJSONB(p.Muestras)
	if err != nil {
		return 0, fmt.Errorf("encode muestras: %w", err)
	}

	var id int64
	err = r.queryer().QueryRow(ctx, `
INSERT INTO artist_requests (user_id, nombre, bio, genero, social_links, image_urls, muestras, notas_usuario)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8)
RETURNING id`,
		p.UserID, p.Nombre, p.Bio, p.Genero, string(links), string(images), nullableJSON(muestras), p.NotasUsuario,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create artist request: %w", err)
	}
	return id, nil
}

func nullableJSON(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func (r *ArtistRequestRepository) CountRecentByUser(ctx context.Context, userID int64, since time.Time) (_ int, err error) {
	defer metrics.RecordQuery("artist_requests.count_recent", time.Now(), &err)

	var count int
	err = r.queryer().QueryRow(ctx, `
SELECT count(*) FROM artist_requests WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent artist requests: %w", err)
	}
	return count, nil
}

// FindPendingByUserAndName compares names case-insensitively.
func (r *ArtistRequestRepository) FindPendingByUserAndName(ctx context.Context, userID int64, nombre string) (_ *artistrequests.ArtistRequest, err error) {
	defer metrics.RecordQuery("artist_requests.find_pending", time.Now(), &err)

	req, err := scanArtistRequest(r.queryer().QueryRow(ctx, `
SELECT `+artistRequestColumns+`
  FROM artist_requests
 WHERE user_id = $1 AND lower(nombre) = lower($2) AND status = 'pending'
 ORDER BY created_at DESC
 LIMIT 1`, userID, nombre))
	if err != nil && !errors.Is(err, artistrequests.ErrNotFound) {
		return nil, fmt.Errorf("find pending artist request: %w", err)
	}
	return req, err
}

// List returns one page newest first plus the total for the filter.
func (r *ArtistRequestRepository) List(ctx context.Context, filters artistrequests.Filters) (_ []artistrequests.ArtistRequest, _ int, err error) {
	defer metrics.RecordQuery("artist_requests.list", time.Now(), &err)

	q := r.queryer()
	status := string(filters.Status)

	var total int
	if err := q.QueryRow(ctx, `
SELECT count(*) FROM artist_requests WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artist requests: %w", err)
	}

	offset := (filters.Page - 1) * filters.PerPage
	rows, err := q.Query(ctx, `
SELECT `+artistRequestColumns+`
  FROM artist_requests
 WHERE ($1 = '' OR status = $1)
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3`, status, filters.PerPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list artist requests: %w", err)
	}
	defer rows.Close()

	items := []artistrequests.ArtistRequest{}
	for rows.Next() {
		req, err := scanArtistRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan artist request: %w", err)
		}
		items = append(items, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate artist requests: %w", err)
	}
	return items, total, nil
}

func (r *ArtistRequestRepository) Get(ctx context.Context, id int64) (_ *artistrequests.ArtistRequest, err error) {
	defer metrics.RecordQuery("artist_requests.get", time.Now(), &err)

	req, err := scanArtistRequest(r.queryer().QueryRow(ctx, `
SELECT `+artistRequestColumns+` FROM artist_requests WHERE id = $1`, id))
	if err != nil && !errors.Is(err, artistrequests.ErrNotFound) {
		return nil, fmt.Errorf("get artist request: %w", err)
	}
	return req, err
}

// UpdateStatus only moves pending rows. A terminal row yields
// ErrNotPending and a missing one ErrNotFound.
func (r *ArtistRequestRepository) UpdateStatus(ctx context.Context, id int64, u artistrequests.StatusUpdate) (err error) {
	defer metrics.RecordQuery("artist_requests.update_status", time.Now(), &err)

	q := r.queryer()
	tag, err := q.Exec(ctx, `
UPDATE artist_requests
   SET status = $2, admin_id = $3, admin_notes = $4, reviewed_at = $5
 WHERE id = $1 AND status = 'pending'`,
		id, string(u.Status), u.AdminID, u.AdminNotes, u.ReviewedAt)
	if err != nil {
		return fmt.Errorf("update artist request status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM artist_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check artist request: %w", err)
	}
	if !exists {
		return artistrequests.ErrNotFound
	}
	return artistrequests.ErrNotPending
}

func (r *ArtistRequestRepository) Delete(ctx context.Context, id int64) (err error) {
	defer metrics.RecordQuery("artist_requests.delete", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM artist_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete artist request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return artistrequests.ErrNotFound
	}
	return nil
}
