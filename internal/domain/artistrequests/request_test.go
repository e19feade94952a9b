package artistrequests

import (
	"encoding/json"
	"testing"

	"github.com/Togather-Foundation/tablon/internal/domain/artists"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialLinksInput_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape socialShape
	}{
		{"absent", `{}`, socialAbsent},
		{"null", `{"social_links": null}`, socialAbsent},
		{"list", `{"social_links": [{"platform": "x", "url": "https://x.com"}]}`, socialList},
		{"mapping", `{"social_links": {"x": "https://x.com"}}`, socialMapping},
		{"string", `{"social_links": "https://x.com"}`, socialMalformed},
		{"number", `{"social_links": 12}`, socialMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in SubmitInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, tt.shape, in.SocialLinks.shape)
		})
	}
}

func TestSocialLinksInput_MappingPreservesOrder(t *testing.T) {
	var in SocialLinksInput
	require.NoError(t, json.Unmarshal([]byte(`{"zeta": "https://z.com", "alfa": "https://a.com", "nested": {"k": 1}}`), &in))

	require.Len(t, in.entries, 3)
	assert.Equal(t, "zeta", in.entries[0].Key)
	assert.Equal(t, "alfa", in.entries[1].Key)
	assert.Equal(t, "nested", in.entries[2].Key)
	assert.Equal(t, map[string]any{"k": float64(1)}, in.entries[2].Value)
}

func TestSocialLinksInput_ListKeepsNonObjectsAsNil(t *testing.T) {
	var in SocialLinksInput
	require.NoError(t, json.Unmarshal([]byte(`[{"url": "https://a.com"}, "b", 3]`), &in))

	require.Len(t, in.items, 3)
	assert.Equal(t, "https://a.com", in.items[0]["url"])
	assert.Nil(t, in.items[1])
	assert.Nil(t, in.items[2])
}

func TestArtistInput(t *testing.T) {
	bio := "Dúo acústico"
	req := ArtistRequest{
		Nombre: "Brisa",
		Bio:    &bio,
		SocialLinks: []SocialLink{
			{Platform: "Spotify", URL: "https://open.spotify.com/a"},
			{Platform: "spotify", URL: "https://open.spotify.com/b"},
			{Platform: "web", URL: "https://brisa.example"},
			{Platform: "", URL: "https://nothing.example"},
			{Platform: "soundcloud", URL: "https://soundcloud.com/brisa"},
		},
		ImageURLs: []string{"https://img.example/b.png"},
	}

	input := ArtistInput(req)
	assert.Equal(t, "Brisa", input.Name)
	assert.Equal(t, "Dúo acústico", input.Bio)
	require.NotNil(t, input.Photo)
	assert.Equal(t, "https://img.example/b.png", *input.Photo)
	assert.Equal(t, "https://open.spotify.com/a", input.Socials.Get(artists.PlatformSpotify))
	assert.Equal(t, "https://brisa.example", input.Socials.Get(artists.PlatformWebsite))
	assert.Len(t, input.Socials.Links(), 2)
}

func TestArtistInput_Empty(t *testing.T) {
	input := ArtistInput(ArtistRequest{Nombre: "Solo"})
	assert.Empty(t, input.Bio)
	assert.Nil(t, input.Photo)
	assert.Empty(t, input.Socials.Links())
}

func TestSocialLinksInput_Links(t *testing.T) {
	var list SocialLinksInput
	require.NoError(t, json.Unmarshal([]byte(`[{"platform": "x", "url": "https://x.com"}, {"platform": "y"}, 4]`), &list))
	assert.Equal(t, []SocialLink{{Platform: "x", URL: "https://x.com"}}, list.Links())

	var mapping SocialLinksInput
	require.NoError(t, json.Unmarshal([]byte(`{"b": "https://b.com", "a": "https://a.com", "n": null}`), &mapping))
	assert.Equal(t, []SocialLink{
		{Platform: "b", URL: "https://b.com"},
		{Platform: "a", URL: "https://a.com"},
	}, mapping.Links())

	assert.Nil(t, SocialLinksInput{}.Links())
}
