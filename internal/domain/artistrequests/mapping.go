package artistrequests

import (
	"strings"

	"github.com/Togather-Foundation/tablon/internal/domain/artists"
)

// platformColumns maps lower-cased platform labels to artist columns.
var platformColumns = map[string]string{
	"instagram": artists.PlatformInstagram,
	"facebook":  artists.PlatformFacebook,
	"spotify":   artists.PlatformSpotify,
	"youtube":   artists.PlatformYouTube,
	"whatsapp":  artists.PlatformWhatsApp,
	"threads":   artists.PlatformThreads,
	"tiktok":    artists.PlatformTikTok,
	"bandcamp":  artists.PlatformBandcamp,
	"website":   artists.PlatformWebsite,
	"web":       artists.PlatformWebsite,
	"sitio":     artists.PlatformWebsite,
}

// ArtistInput builds the registry entry for an approved request. The
// first link for a platform wins; unknown platforms are dropped.
func ArtistInput(req ArtistRequest) artists.Input {
	input := artists.Input{Name: req.Nombre}
	if req.Bio != nil {
		input.Bio = *req.Bio
	}
	if len(req.ImageURLs) > 0 && req.ImageURLs[0] != "" {
		photo := req.ImageURLs[0]
		input.Photo = &photo
	}
	for _, link := range req.SocialLinks {
		if link.Platform == "" || link.URL == "" {
			continue
		}
		column, ok := platformColumns[strings.ToLower(strings.TrimSpace(link.Platform))]
		if !ok {
			continue
		}
		input.Socials.SetIfEmpty(column, link.URL)
	}
	return input
}
