// Package server implements the HTTP server and handlers for Share-Drop.
// It wires together the routes, dependencies (Postgres, MinIO) and the
// server-rendered UI, and provides lifecycle helpers used by tests and
// the production binary.
package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
)

// BuildInfo identifies the running binary in logs and /health.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries everything the server needs. Unit tests construct it
// directly with only the fields the handler under test touches.
type Config struct {
	Addr    string // e.g. ":8080"
	Build   BuildInfo
	Auth    AuthConfig
	DB      *sql.DB
	Minio   *minio.Client
	Bucket  string
	BaseURL string

	// LinkSecret signs expiring download links (JWT HS256).
	LinkSecret []byte

	// MaxUploadBytes caps multipart upload bodies. Zero means no cap.
	MaxUploadBytes int64
}

// Server is the HTTP front of the application.
type Server struct {
	cfg        Config
	tmpl       *templateSet
	httpServer *http.Server
}

// MaxUploadBytesFromEnv reads SDROP_MAX_UPLOAD_BYTES, defaulting to 16 MiB
// as the original deployment did. Invalid values fall back to the default.
func MaxUploadBytesFromEnv() int64 {
	raw := os.Getenv("SDROP_MAX_UPLOAD_BYTES")
	if raw == "" {
		return 16 << 20
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 16 << 20
	}
	return n
}

// New builds the server: parses templates, registers routes, and wraps the
// mux in the middleware chain (request id -> logging -> security headers).
func New(cfg Config) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, tmpl: tmpl}

	mux := http.NewServeMux()

	// Auth endpoints get a per-IP limiter; everything else is unthrottled
	// here and left to the proxy.
	authLimiter := newRateLimiter(20, time.Minute)

	mux.Handle("GET /{$}", http.HandlerFunc(s.indexHandler))
	mux.Handle("GET /login", http.HandlerFunc(s.loginPageHandler))
	mux.Handle("POST /login", authLimiter.middleware(http.HandlerFunc(s.loginHandler)))
	mux.Handle("GET /register", http.HandlerFunc(s.registerPageHandler))
	mux.Handle("POST /register", authLimiter.middleware(http.HandlerFunc(s.registerHandler)))
	mux.Handle("POST /logout", http.HandlerFunc(s.logoutHandler))

	mux.Handle("GET /dashboard", s.requirePage(http.HandlerFunc(s.dashboardHandler)))

	mux.Handle("GET /upload", s.requirePage(http.HandlerFunc(s.uploadPageHandler)))
	mux.Handle("POST /upload", s.requirePage(http.HandlerFunc(s.uploadHandler)))

	mux.Handle("GET /file/{token}", http.HandlerFunc(s.sharedFileHandler))
	mux.Handle("GET /download/{token}", http.HandlerFunc(s.downloadHandler))
	mux.Handle("GET /view/{token}", http.HandlerFunc(s.viewFileHandler))

	mux.Handle("GET /files/{id}/rename", s.requirePage(http.HandlerFunc(s.renameFilePageHandler)))
	mux.Handle("POST /files/{id}/rename", s.requirePage(http.HandlerFunc(s.renameFileHandler)))
	mux.Handle("POST /files/{id}/delete", s.requirePage(http.HandlerFunc(s.deleteFileHandler)))
	mux.Handle("POST /files/{id}/toggle", s.requirePage(http.HandlerFunc(s.toggleFileHandler)))

	// JSON endpoints for the dashboard's "temporary link" button.
	mux.Handle("POST /links", s.cfg.Auth.requireAuth(http.HandlerFunc(s.createTempLinkHandler)))
	mux.Handle("GET /dl", http.HandlerFunc(s.tempDownloadHandler))

	mux.Handle("GET /bundles/new", s.requirePage(http.HandlerFunc(s.newBundlePageHandler)))
	mux.Handle("POST /bundles/new", s.requirePage(http.HandlerFunc(s.createBundleHandler)))
	mux.Handle("GET /bundle/{token}", http.HandlerFunc(s.sharedBundleHandler))
	mux.Handle("GET /download-bundle/{token}", http.HandlerFunc(s.downloadBundleHandler))
	mux.Handle("GET /bundles/{id}/edit", s.requirePage(http.HandlerFunc(s.editBundlePageHandler)))
	mux.Handle("POST /bundles/{id}/edit", s.requirePage(http.HandlerFunc(s.editBundleHandler)))
	mux.Handle("POST /bundles/{id}/toggle", s.requirePage(http.HandlerFunc(s.toggleBundleHandler)))
	mux.Handle("POST /bundles/{id}/delete", s.requirePage(http.HandlerFunc(s.deleteBundleHandler)))

	mux.Handle("GET /settings", s.requirePage(http.HandlerFunc(s.settingsPageHandler)))
	mux.Handle("POST /settings", s.requirePage(http.HandlerFunc(s.updateLogoHandler)))
	mux.Handle("GET /password", s.requirePage(http.HandlerFunc(s.changePasswordPageHandler)))
	mux.Handle("POST /password", s.requirePage(http.HandlerFunc(s.changePasswordHandler)))
	mux.Handle("GET /logo", http.HandlerFunc(s.serveLogoHandler))

	mux.Handle("GET /health", http.HandlerFunc(s.healthHandler))
	mux.Handle("GET /metricz", http.HandlerFunc(s.metricsHandler))

	mux.Handle("GET /static/", http.StripPrefix("/static/", staticHandler()))

	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// indexHandler sends authenticated users to the dashboard and everyone
// else to the login page, matching the original application's root route.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Auth.currentUser(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// requirePage is the browser-facing auth gate: unauthenticated requests
// are redirected to the login page with a flash instead of getting a 401.
func (s *Server) requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.cfg.Auth.currentUser(r); err != nil {
			s.flash(w, r, flashError, "Please log in to continue")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
