package artists

import (
	"context"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
)

var (
	ErrNotFound  = domain.NewError(domain.ErrNotFound, "Artista no encontrado")
	ErrNameTaken = domain.NewError(domain.ErrConflict, "Artista ya existe")
)

// Platforms that have a dedicated column, in column order.
const (
	PlatformSpotify   = "spotify"
	PlatformYouTube   = "youtube"
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformThreads   = "threads"
	PlatformTikTok    = "tiktok"
	PlatformBandcamp  = "bandcamp"
	PlatformWebsite   = "website"
)

// Socials holds one link per supported platform.
type Socials struct {
	Spotify   *string `json:"spotify"`
	YouTube   *string `json:"youtube"`
	WhatsApp  *string `json:"whatsapp"`
	Instagram *string `json:"instagram"`
	Facebook  *string `json:"facebook"`
	Threads   *string `json:"threads"`
	TikTok    *string `json:"tiktok"`
	Bandcamp  *string `json:"bandcamp"`
	Website   *string `json:"website"`
}

func (s *Socials) field(platform string) **string {
	switch strings.ToLower(platform) {
	case PlatformSpotify:
		return &s.Spotify
	case PlatformYouTube:
		return &s.YouTube
	case PlatformWhatsApp:
		return &s.WhatsApp
	case PlatformInstagram:
		return &s.Instagram
	case PlatformFacebook:
		return &s.Facebook
	case PlatformThreads:
		return &s.Threads
	case PlatformTikTok:
		return &s.TikTok
	case PlatformBandcamp:
		return &s.Bandcamp
	case PlatformWebsite:
		return &s.Website
	}
	return nil
}

// SetIfEmpty stores url under platform when the platform is known and
// not already set. It reports whether the value was stored.
func (s *Socials) SetIfEmpty(platform, url string) bool {
	dst := s.field(platform)
	if dst == nil || *dst != nil {
		return false
	}
	v := url
	*dst = &v
	return true
}

// Get returns the link stored for platform, or "".
func (s Socials) Get(platform string) string {
	dst := s.field(platform)
	if dst == nil || *dst == nil {
		return ""
	}
	return **dst
}

// Links returns every set platform link keyed by platform name.
func (s Socials) Links() map[string]string {
	out := map[string]string{}
	for _, p := range []string{PlatformSpotify, PlatformYouTube, PlatformWhatsApp, PlatformInstagram,
		PlatformFacebook, PlatformThreads, PlatformTikTok, PlatformBandcamp, PlatformWebsite} {
		if v := s.Get(p); v != "" {
			out[p] = v
		}
	}
	return out
}

type Artist struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Bio   string  `json:"bio"`
	Photo *string `json:"photo"`
	Socials
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Input carries the writable artist fields.
type Input struct {
	Name  string
	Bio   string
	Photo *string
	Socials
	Email *string
	Phone *string
}

// Repository stores artists. Create and Update return ErrNameTaken on a
// unique name violation.
type Repository interface {
	Create(ctx context.Context, input Input) (*Artist, error)
	Update(ctx context.Context, id int64, input Input) (*Artist, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Artist, error)
	FindByName(ctx context.Context, name string) (*Artist, error)
	SearchByName(ctx context.Context, fragment string) ([]Artist, error)
	List(ctx context.Context) ([]Artist, error)
}
