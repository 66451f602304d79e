package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		Addr:       ":0",
		Auth:       AuthConfig{SessionSecret: "test-secret", SessionTTL: time.Hour},
		BaseURL:    "http://localhost:8080",
		LinkSecret: []byte("test-link-secret"),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

// New parses the embedded templates; a broken template fails here rather
// than at request time.
func TestNewParsesTemplates(t *testing.T) {
	newTestServer(t)
}

func TestIndexRedirects(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.indexHandler(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous: got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	tok, exp, err := s.cfg.Auth.makeToken("user-1")
	if err != nil {
		t.Fatalf("makeToken error: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	s.cfg.Auth.setSessionCookie(w, tok, exp)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}

	rec = httptest.NewRecorder()
	s.indexHandler(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("authenticated: got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequirePageRedirectsAnonymous(t *testing.T) {
	s := newTestServer(t)

	called := false
	h := s.requirePage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))

	if called {
		t.Fatalf("handler should not run for anonymous request")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	// The redirect carries a flash explaining why.
	flashed := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookieName && c.Value != "" {
			flashed = true
		}
	}
	if !flashed {
		t.Fatalf("expected a flash cookie on the redirect")
	}
}

func TestRequireAuthReturns401(t *testing.T) {
	s := newTestServer(t)

	h := s.cfg.Auth.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/links", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rec.Code)
	}
}

func TestMaxUploadBytesFromEnv(t *testing.T) {
	t.Setenv("SDROP_MAX_UPLOAD_BYTES", "")
	if got := MaxUploadBytesFromEnv(); got != 16<<20 {
		t.Fatalf("default: %d", got)
	}
	t.Setenv("SDROP_MAX_UPLOAD_BYTES", "1048576")
	if got := MaxUploadBytesFromEnv(); got != 1048576 {
		t.Fatalf("override: %d", got)
	}
	t.Setenv("SDROP_MAX_UPLOAD_BYTES", "not-a-number")
	if got := MaxUploadBytesFromEnv(); got != 16<<20 {
		t.Fatalf("invalid falls back: %d", got)
	}
}
