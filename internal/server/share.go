// share.go - Public share pages and downloads addressed by permanent token.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// sharedFile carries everything the share page and download path need.
type sharedFile struct {
	ID            string
	OwnerID       string
	ObjectKey     string
	Name          string
	ContentType   string
	FileType      string
	SizeBytes     int64
	TxNumber      string
	IsPublic      bool
	ShareToken    string
	DownloadCount int64
	CreatedAt     time.Time
}

func (s *Server) fileByToken(token string) (sharedFile, error) {
	var f sharedFile
	err := s.cfg.DB.QueryRow(`
		SELECT id, owner_id, object_key, orig_name, content_type, file_type,
		       size_bytes, transaction_number, is_public, share_token,
		       download_count, created_at
		FROM files WHERE share_token = $1
	`, token).Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.Name, &f.ContentType,
		&f.FileType, &f.SizeBytes, &f.TxNumber, &f.IsPublic, &f.ShareToken,
		&f.DownloadCount, &f.CreatedAt)
	return f, err
}

// canAccess applies the visibility rule: public files for everyone,
// private files for the owner only.
func (s *Server) canAccess(r *http.Request, ownerID string, isPublic bool) bool {
	if isPublic {
		return true
	}
	userID, err := s.cfg.Auth.currentUser(r)
	return err == nil && userID == ownerID
}

type sharePageData struct {
	File       sharedFile
	ShareURL   string
	BundleName string
}

func (s *Server) sharedFileHandler(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	f, err := s.fileByToken(token)
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		Error("share_query_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if !s.canAccess(r, f.OwnerID, f.IsPublic) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	data := sharePageData{
		File:     f,
		ShareURL: s.cfg.BaseURL + "/file/" + f.ShareToken,
	}

	// Optional bundle context; only honoured when the file is actually a
	// member of that bundle.
	if bundleToken := r.URL.Query().Get("from_bundle"); bundleToken != "" {
		var name string
		err := s.cfg.DB.QueryRow(`
			SELECT b.name
			FROM bundles b
			JOIN bundle_files bf ON bf.bundle_id = b.id
			WHERE b.share_token = $1 AND bf.file_id = $2
		`, bundleToken, f.ID).Scan(&name)
		if err == nil {
			data.BundleName = name
		}
	}

	s.render(w, r, "file.html", data)
}

// streamObject copies the stored object to the response with the given
// disposition. Headers must be final before the first byte is written.
func (s *Server) streamObject(w http.ResponseWriter, r *http.Request, f sharedFile, disposition string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	obj, err := s.cfg.Minio.GetObject(ctx, s.cfg.Bucket, f.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		getMetrics().recordDownloadError()
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}
	defer func() { _ = obj.Close() }()

	// Force an early error for missing object / auth issues.
	if _, statErr := obj.Stat(); statErr != nil {
		getMetrics().recordDownloadError()
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}

	if f.ContentType != "" {
		w.Header().Set("Content-Type", f.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if f.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, f.Name))

	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj)
}

func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	f, err := s.fileByToken(r.PathValue("token"))
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if !s.canAccess(r, f.OwnerID, f.IsPublic) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// Count only real downloads, not share-page views.
	if _, err := s.cfg.DB.Exec(
		`UPDATE files SET download_count = download_count + 1 WHERE id = $1`, f.ID); err != nil {
		Warn("download_count_failed", map[string]interface{}{"file_id": f.ID})
	}
	getMetrics().recordDownload()

	s.streamObject(w, r, f, "attachment")
}

// viewFileHandler shows images and PDFs inline; anything else falls back
// to the download route.
func (s *Server) viewFileHandler(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	f, err := s.fileByToken(token)
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if !s.canAccess(r, f.OwnerID, f.IsPublic) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch strings.ToLower(f.FileType) {
	case "pdf":
		// Same-origin framing so the share page can embed the viewer.
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.streamObject(w, r, f, "inline")
	case "jpg", "jpeg", "png", "gif":
		s.streamObject(w, r, f, "inline")
	default:
		http.Redirect(w, r, "/download/"+token, http.StatusSeeOther)
	}
}
