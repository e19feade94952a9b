package anuncios

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/domain"
	dps "github.com/markusmobius/go-dateparser"
)

// Filters narrows List. Nil dates are not applied.
type Filters struct {
	Fecha     *time.Time
	Desde     *time.Time
	Hasta     *time.Time
	Categoria Categoria
	Artista   string
}

// ParseFilters reads the public list query string.
func ParseFilters(values url.Values) (Filters, error) {
	var filters Filters

	for _, field := range []struct {
		key string
		dst **time.Time
	}{
		{"fecha", &filters.Fecha},
		{"desde", &filters.Desde},
		{"hasta", &filters.Hasta},
	} {
		raw := strings.TrimSpace(values.Get(field.key))
		if raw == "" {
			continue
		}
		parsed, err := ParseFecha(raw)
		if err != nil {
			return Filters{}, domain.Invalid(field.key, "Fecha inválida: "+raw)
		}
		*field.dst = &parsed
	}

	if raw := strings.TrimSpace(values.Get("categoria")); raw != "" {
		categoria, ok := ParseCategoria(raw)
		if !ok {
			return Filters{}, domain.Invalid("categoria", "Categoría inválida: "+raw)
		}
		filters.Categoria = categoria
	}

	filters.Artista = strings.TrimSpace(values.Get("artista"))

	if filters.Desde != nil && filters.Hasta != nil && filters.Hasta.Before(*filters.Desde) {
		return Filters{}, domain.Invalid("hasta", "La fecha 'hasta' es anterior a 'desde'")
	}
	return filters, nil
}

var fechaLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// now is swapped in tests so relative dates are stable.
var now = time.Now

// ParseFecha accepts ISO dates, RFC 3339 timestamps and free-form Spanish
// or English dates. Values are wall-clock times in UTC; a value without a
// time of day is midnight.
func ParseFecha(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range fechaLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}

	parsed, err := dps.Parse(&dps.Configuration{
		Languages:       []string{"es", "en"},
		DefaultTimezone: time.UTC,
		CurrentTime:     now().UTC(),
	}, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	if parsed.Time.IsZero() {
		return time.Time{}, fmt.Errorf("parse date %q: no date found", raw)
	}

	t := parsed.Time
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	if !strings.Contains(raw, ":") {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t, nil
}
