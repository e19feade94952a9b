package artistrequests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrNotFound     = domain.NewError(domain.ErrNotFound, "Solicitud no encontrada")
	ErrNotPending   = domain.NewError(domain.ErrInvalidState, "Solicitud no está pendiente")
	ErrDuplicate    = domain.NewError(domain.ErrConflict, "Ya existe una solicitud pendiente con ese nombre")
	ErrArtistExists = domain.NewError(domain.ErrConflict, "Artista ya existe")
)

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// ArtistRequest is a user's suggestion for a new registry entry.
type ArtistRequest struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Nombre       string          `json:"nombre"`
	Bio          *string         `json:"bio"`
	Genero       *string         `json:"genero"`
	SocialLinks  []SocialLink    `json:"social_links"`
	ImageURLs    []string        `json:"image_urls"`
	Muestras     json.RawMessage `json:"muestras"`
	NotasUsuario *string         `json:"notas_usuario"`
	Status       Status          `json:"status"`
	AdminID      *int64          `json:"admin_id"`
	AdminNotes   *string         `json:"admin_notes"`
	ReviewedAt   *time.Time      `json:"reviewed_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SubmitInput is the submission payload as the client sent it. Shape
// checks on the loosely typed fields happen in Submit so they surface as
// validation errors rather than decode errors.
type SubmitInput struct {
	Nombre       string           `json:"nombre"`
	Bio          string           `json:"bio"`
	Genero       string           `json:"genero"`
	SocialLinks  SocialLinksInput `json:"social_links"`
	ImageURLs    json.RawMessage  `json:"image_urls"`
	Muestras     json.RawMessage  `json:"muestras"`
	NotasUsuario string           `json:"notas_usuario"`
}

type socialShape int

const (
	socialAbsent socialShape = iota
	socialList
	socialMapping
	socialMalformed
)

type mappingEntry struct {
	Key   string
	Value any
}

// SocialLinksInput accepts either a list of {platform, url} objects or a
// flat {platform: url} object. Mapping keys keep their document order.
type SocialLinksInput struct {
	shape   socialShape
	items   []map[string]any
	entries []mappingEntry
}

func (s *SocialLinksInput) UnmarshalJSON(data []byte) error {
	*s = SocialLinksInput{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("social_links: %w", err)
		}
		s.shape = socialList
		s.items = make([]map[string]any, len(raw))
		for i, item := range raw {
			// Non-object items stay nil and are rejected as missing a url.
			var obj map[string]any
			if err := json.Unmarshal(item, &obj); err == nil {
				s.items[i] = obj
			}
		}
	case '{':
		entries, err := decodeOrdered(trimmed)
		if err != nil {
			return fmt.Errorf("social_links: %w", err)
		}
		s.shape = socialMapping
		s.entries = entries
	default:
		s.shape = socialMalformed
	}
	return nil
}

// Links returns the entries that carry a string url, in input order,
// without validating them.
func (s SocialLinksInput) Links() []SocialLink {
	var out []SocialLink
	switch s.shape {
	case socialList:
		for _, item := range s.items {
			u, _ := item["url"].(string)
			if u == "" {
				continue
			}
			platform, _ := item["platform"].(string)
			out = append(out, SocialLink{Platform: platform, URL: u})
		}
	case socialMapping:
		for _, entry := range s.entries {
			if u, ok := entry.Value.(string); ok && u != "" {
				out = append(out, SocialLink{Platform: entry.Key, URL: u})
			}
		}
	}
	return out
}

func decodeOrdered(data []byte) ([]mappingEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var entries []mappingEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		entries = append(entries, mappingEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateParams is a validated submission ready to store.
type CreateParams struct {
	UserID       int64
	Nombre       string
	Bio          *string
	Genero       *string
	SocialLinks  []SocialLink
	ImageURLs    []string
	Muestras     json.RawMessage
	NotasUsuario *string
}

// StatusUpdate moves a pending request to a terminal state.
type StatusUpdate struct {
	Status     Status
	AdminID    int64
	AdminNotes *string
	ReviewedAt time.Time
}

type Filters struct {
	Status  Status
	Page    int
	PerPage int
}

// Repository stores artist requests. UpdateStatus only applies to pending
// rows and returns ErrNotPending for terminal ones.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (int64, error)
	CountRecentByUser(ctx context.Context, userID int64, since time.Time) (int, error)
	FindPendingByUserAndName(ctx context.Context, userID int64, nombre string) (*ArtistRequest, error)
	List(ctx context.Context, filters Filters) ([]ArtistRequest, int, error)
	Get(ctx context.Context, id int64) (*ArtistRequest, error)
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) error
	Delete(ctx context.Context, id int64) error
}
