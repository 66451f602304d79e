// templates.go - Embedded server-rendered pages and static assets.
package server

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"
)

//go:embed web/templates/*.html
var templateFiles embed.FS

//go:embed web/static
var staticFiles embed.FS

// templateSet holds one parsed template tree per page, each cloned from
// the shared base layout.
type templateSet struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"mib": FormatMiB,
	"date": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
}

func parseTemplates() (*templateSet, error) {
	entries, err := fs.ReadDir(templateFiles, "web/templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	set := &templateSet{pages: make(map[string]*template.Template)}
	for _, e := range entries {
		name := e.Name()
		if name == "base.html" {
			continue
		}
		t, err := template.New("base.html").Funcs(templateFuncs).ParseFS(
			templateFiles,
			"web/templates/base.html",
			"web/templates/"+name,
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		set.pages[name] = t
	}
	return set, nil
}

// pageData is what every template receives. Data carries the page-specific
// payload; the rest feeds the shared layout.
type pageData struct {
	Username string
	LoggedIn bool
	Flashes  []Flash
	HasLogo  bool
	BaseURL  string
	Data     any
}

// render draws a page inside the base layout, draining queued flashes into
// the notification host.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, ok := s.tmpl.pages[name]
	if !ok {
		Error("template_missing", map[string]interface{}{"name": name}, nil)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Flashes: s.takeFlashes(w, r),
		BaseURL: s.cfg.BaseURL,
		Data:    data,
	}
	if userID, err := s.cfg.Auth.currentUser(r); err == nil {
		pd.LoggedIn = true
		pd.Username = s.lookupUsername(userID)
	}
	pd.HasLogo = s.logoKey() != ""

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base.html", pd); err != nil {
		Error("template_render_failed", map[string]interface{}{"name": name}, err)
	}
}

func (s *Server) lookupUsername(userID string) string {
	var username string
	err := s.cfg.DB.QueryRow(`SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if err != nil && err != sql.ErrNoRows {
		Error("username_lookup_failed", nil, err)
	}
	return username
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "web/static")
	if err != nil {
		// Embed path is fixed at compile time; this cannot happen at runtime.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
