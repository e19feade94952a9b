package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticHandler(t *testing.T) {
	handler := StaticHandler()

	tests := []struct {
		name            string
		method          string
		path            string
		wantStatus      int
		wantContentType string
		wantBody        string
	}{
		{"root", http.MethodGet, "/", http.StatusOK, "text/html", "<title>Tablón</title>"},
		{"head root", http.MethodHead, "/", http.StatusOK, "text/html", ""},
		{"script", http.MethodGet, "/app.js", http.StatusOK, "javascript", "cargarAnuncios"},
		{"stylesheet", http.MethodGet, "/app.css", http.StatusOK, "text/css", ""},
		{"client route", http.MethodGet, "/artistas/brisa", http.StatusOK, "text/html", "<title>Tablón</title>"},
		{"missing asset", http.MethodGet, "/logo.png", http.StatusNotFound, "", ""},
		{"post", http.MethodPost, "/", http.StatusMethodNotAllowed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); tt.wantContentType != "" && !strings.Contains(ct, tt.wantContentType) {
				t.Errorf("Content-Type = %q, want to contain %q", ct, tt.wantContentType)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Errorf("HEAD wrote %d body bytes", rec.Body.Len())
			}
		})
	}
}

func TestRobotsTxtHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	RobotsTxtHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Disallow: /api/") {
		t.Errorf("robots.txt missing api rule: %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=86400") {
		t.Errorf("Cache-Control = %q", cc)
	}
}
