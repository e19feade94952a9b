package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain/anuncios"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ anuncios.Repository = (*AnuncioRepository)(nil)

type AnuncioRepository struct {
	conn
}

type anuncioRow struct {
	ID            int64
	Titulo        string
	Descripcion   string
	Fecha         pgtype.Timestamptz
	Lugar         string
	Precio        float64
	Categoria     string
	Participantes string
	UserID        int64
	Autor         pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

const anuncioSelect = `
SELECT a.id, a.titulo, a.descripcion, a.fecha, a.lugar, a.precio::float8, a.categoria,
       a.participantes, a.user_id, u.name, a.created_at, a.updated_at
  FROM anuncios a
  LEFT JOIN users u ON u.id = a.user_id
`

func scanAnuncio(row pgx.Row) (*anuncios.Anuncio, error) {
	var data anuncioRow
	if err := row.Scan(
		&data.ID,
		&data.Titulo,
		&data.Descripcion,
		&data.Fecha,
		&data.Lugar,
		&data.Precio,
		&data.Categoria,
		&data.Participantes,
		&data.UserID,
		&data.Autor,
		&data.CreatedAt,
		&data.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, anuncios.ErrNotFound
		}
		return nil, err
	}
	return &anuncios.Anuncio{
		ID:            data.ID,
		Titulo:        data.Titulo,
		Descripcion:   data.Descripcion,
		Fecha:         data.Fecha.Time.UTC(),
		Lugar:         data.Lugar,
		Precio:        data.Precio,
		Categoria:     anuncios.Categoria(data.Categoria),
		Participantes: data.Participantes,
		UserID:        data.UserID,
		Autor:         data.Autor.String,
		CreatedAt:     data.CreatedAt.Time,
		UpdatedAt:     data.UpdatedAt.Time,
	}, nil
}

func collectAnuncios(rows pgx.Rows) ([]anuncios.Anuncio, error) {
	defer rows.Close()
	out := []anuncios.Anuncio{}
	for rows.Next() {
		a, err := scanAnuncio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anuncio: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anuncios: %w", err)
	}
	return out, nil
}

// List applies the optional filters and orders by fecha ascending.
func (r *AnuncioRepository) List(ctx context.Context, filters anuncios.Filters) (_ []anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, anuncioSelect+`
 WHERE ($1::timestamptz IS NULL OR a.fecha = $1::timestamptz)
   AND ($2::timestamptz IS NULL OR a.fecha >= $2::timestamptz)
   AND ($3::timestamptz IS NULL OR a.fecha <= $3::timestamptz)
   AND ($4 = '' OR a.categoria = $4)
   AND ($5 = '' OR a.participantes ILIKE '%' || $5 || '%' ESCAPE '\')
 ORDER BY a.fecha ASC, a.id ASC
`,
		filters.Fecha,
		filters.Desde,
		filters.Hasta,
		string(filters.Categoria),
		escapeLike(filters.Artista),
	)
	if err != nil {
		return nil, fmt.Errorf("list anuncios: %w", err)
	}
	return collectAnuncios(rows)
}

func (r *AnuncioRepository) GetByID(ctx context.Context, id int64) (_ *anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.get", time.Now(), &err)
	return getAnuncio(ctx, r.queryer(), id)
}

func getAnuncio(ctx context.Context, q queryer, id int64) (*anuncios.Anuncio, error) {
	a, err := scanAnuncio(q.QueryRow(ctx, anuncioSelect+` WHERE a.id = $1`, id))
	if err != nil && !errors.Is(err, anuncios.ErrNotFound) {
		return nil, fmt.Errorf("get anuncio: %w", err)
	}
	return a, err
}

// Create inserts the anuncio and links the named participants that match
// an artist exactly, in one transaction.
func (r *AnuncioRepository) Create(ctx context.Context, userID int64, input anuncios.Input) (_ *anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.create", time.Now(), &err)

	var created *anuncios.Anuncio
	err = r.inTx(ctx, func(q queryer) error {
		var id int64
		if err := q.QueryRow(ctx, `
INSERT INTO anuncios (titulo, descripcion, fecha, lugar, precio, categoria, participantes, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
			input.Titulo, input.Descripcion, input.Fecha, input.Lugar, input.Precio,
			string(input.Categoria), input.Participantes, userID,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert anuncio: %w", err)
		}
		if err := relinkArtists(ctx, q, id, input.Participantes); err != nil {
			return err
		}
		a, err := getAnuncio(ctx, q, id)
		created = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *AnuncioRepository) Update(ctx context.Context, id int64, input anuncios.Input) (_ *anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.update", time.Now(), &err)

	var updated *anuncios.Anuncio
	err = r.inTx(ctx, func(q queryer) error {
		tag, err := q.Exec(ctx, `
UPDATE anuncios
   SET titulo = $2, descripcion = $3, fecha = $4, lugar = $5, precio = $6,
       categoria = $7, participantes = $8, updated_at = now()
 WHERE id = $1`,
			id, input.Titulo, input.Descripcion, input.Fecha, input.Lugar, input.Precio,
			string(input.Categoria), input.Participantes)
		if err != nil {
			return fmt.Errorf("update anuncio: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return anuncios.ErrNotFound
		}
		if err := relinkArtists(ctx, q, id, input.Participantes); err != nil {
			return err
		}
		a, err := getAnuncio(ctx, q, id)
		updated = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the anuncio. Link rows cascade; artists stay.
func (r *AnuncioRepository) Delete(ctx context.Context, id int64) (err error) {
	defer metrics.RecordQuery("anuncios.delete", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM anuncios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete anuncio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return anuncios.ErrNotFound
	}
	return nil
}

func (r *AnuncioRepository) ListByArtist(ctx context.Context, artistID int64) (_ []anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.list_by_artist", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, anuncioSelect+`
  JOIN anuncio_artists aa ON aa.anuncio_id = a.id
 WHERE aa.artist_id = $1
 ORDER BY a.fecha ASC, a.id ASC`, artistID)
	if err != nil {
		return nil, fmt.Errorf("list anuncios by artist: %w", err)
	}
	return collectAnuncios(rows)
}

// ListByParticipant matches name as a case-insensitive substring of the
// participant text.
func (r *AnuncioRepository) ListByParticipant(ctx context.Context, name string) (_ []anuncios.Anuncio, err error) {
	defer metrics.RecordQuery("anuncios.list_by_participant", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, anuncioSelect+`
 WHERE a.participantes ILIKE '%' || $1 || '%' ESCAPE '\'
 ORDER BY a.fecha ASC, a.id ASC`, escapeLike(name))
	if err != nil {
		return nil, fmt.Errorf("list anuncios by participant: %w", err)
	}
	return collectAnuncios(rows)
}

// relinkArtists replaces the anuncio's artist links with the participants
// that name an existing artist exactly. Artists are never created here.
func relinkArtists(ctx context.Context, q queryer, anuncioID int64, participantes string) error {
	if _, err := q.Exec(ctx, `DELETE FROM anuncio_artists WHERE anuncio_id = $1`, anuncioID); err != nil {
		return fmt.Errorf("clear artist links: %w", err)
	}
	names := anuncios.ParticipantNames(participantes)
	if len(names) == 0 {
		return nil
	}
	if _, err := q.Exec(ctx, `
INSERT INTO anuncio_artists (anuncio_id, artist_id)
SELECT $1, ar.id FROM artists ar WHERE ar.name = ANY($2::text[])
ON CONFLICT DO NOTHING`, anuncioID, names); err != nil {
		return fmt.Errorf("link artists: %w", err)
	}
	return nil
}
