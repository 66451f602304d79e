package server

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// fileRow is one dashboard entry.
type fileRow struct {
	ID            string
	Name          string
	FileType      string
	SizeBytes     int64
	TxNumber      string
	IsPublic      bool
	ShareToken    string
	DownloadCount int64
	CreatedAt     time.Time
}

// bundleRow is one dashboard bundle entry.
type bundleRow struct {
	ID            string
	Name          string
	TxNumber      string
	IsPublic      bool
	ShareToken    string
	DownloadCount int64
	FileCount     int64
	CreatedAt     time.Time
}

// userStats backs the dashboard sidebar.
type userStats struct {
	FileCount  int64
	TotalBytes int64
}

type dashboardData struct {
	Files   []fileRow
	Bundles []bundleRow
	Stats   userStats
}

func (s *Server) userFiles(userID string) ([]fileRow, error) {
	rows, err := s.cfg.DB.Query(`
		SELECT id, orig_name, file_type, size_bytes, transaction_number,
		       is_public, share_token, download_count, created_at
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fileRow
	for rows.Next() {
		var f fileRow
		if err := rows.Scan(&f.ID, &f.Name, &f.FileType, &f.SizeBytes, &f.TxNumber,
			&f.IsPublic, &f.ShareToken, &f.DownloadCount, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Server) userBundles(userID string) ([]bundleRow, error) {
	rows, err := s.cfg.DB.Query(`
		SELECT b.id, b.name, b.transaction_number, b.is_public, b.share_token,
		       b.download_count, b.created_at, COUNT(bf.file_id)
		FROM bundles b
		LEFT JOIN bundle_files bf ON bf.bundle_id = b.id
		WHERE b.owner_id = $1
		GROUP BY b.id
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bundleRow
	for rows.Next() {
		var b bundleRow
		if err := rows.Scan(&b.ID, &b.Name, &b.TxNumber, &b.IsPublic, &b.ShareToken,
			&b.DownloadCount, &b.CreatedAt, &b.FileCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Server) statsFor(userID string) (userStats, error) {
	var st userStats
	err := s.cfg.DB.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM files WHERE owner_id = $1
	`, userID).Scan(&st.FileCount, &st.TotalBytes)
	return st, err
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := s.userFiles(userID)
	if err != nil {
		Error("dashboard_files_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	bundles, err := s.userBundles(userID)
	if err != nil {
		Error("dashboard_bundles_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats, err := s.statsFor(userID)
	if err != nil {
		Error("dashboard_stats_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "dashboard.html", dashboardData{Files: files, Bundles: bundles, Stats: stats})
}

// ownedFile loads a file row and verifies ownership; writes the response
// itself on failure and reports success through the bool.
func (s *Server) ownedFile(w http.ResponseWriter, r *http.Request, userID string) (fileRow, string, bool) {
	idStr := r.PathValue("id")
	if _, err := uuid.Parse(idStr); err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return fileRow{}, "", false
	}

	var f fileRow
	var objectKey, ownerID string
	err := s.cfg.DB.QueryRow(`
		SELECT id, orig_name, is_public, object_key, owner_id
		FROM files WHERE id = $1
	`, idStr).Scan(&f.ID, &f.Name, &f.IsPublic, &objectKey, &ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return fileRow{}, "", false
		}
		Error("file_query_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return fileRow{}, "", false
	}
	if ownerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return fileRow{}, "", false
	}
	return f, objectKey, true
}

func (s *Server) renameFilePageHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	f, _, ok := s.ownedFile(w, r, userID)
	if !ok {
		return
	}
	s.render(w, r, "rename.html", f)
}

func (s *Server) renameFileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	f, _, ok := s.ownedFile(w, r, userID)
	if !ok {
		return
	}

	newName := strings.TrimSpace(r.FormValue("new_name"))
	if newName == "" {
		s.flash(w, r, flashError, "File name cannot be empty")
		http.Redirect(w, r, "/files/"+f.ID+"/rename", http.StatusSeeOther)
		return
	}
	newName = sanitizeFilename(newName)

	if _, err := s.cfg.DB.Exec(`UPDATE files SET orig_name = $1 WHERE id = $2`, newName, f.ID); err != nil {
		Error("rename_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.flash(w, r, flashSuccess, `File name updated to "`+newName+`"`)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	f, objectKey, ok := s.ownedFile(w, r, userID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// Remove the object first; an orphaned row is worse than an orphaned
	// object since the row is what users see.
	if err := s.cfg.Minio.RemoveObject(ctx, s.cfg.Bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		Warn("object_delete_failed", map[string]interface{}{"file_id": f.ID})
	}

	if _, err := s.cfg.DB.Exec(`DELETE FROM files WHERE id = $1`, f.ID); err != nil {
		Error("file_delete_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.flash(w, r, flashSuccess, "File deleted successfully")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) toggleFileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	f, _, ok := s.ownedFile(w, r, userID)
	if !ok {
		return
	}

	newStatus := !f.IsPublic
	if _, err := s.cfg.DB.Exec(`UPDATE files SET is_public = $1 WHERE id = $2`, newStatus, f.ID); err != nil {
		Error("toggle_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if newStatus {
		s.flash(w, r, flashSuccess, `File "`+f.Name+`" is now public and can be shared`)
	} else {
		s.flash(w, r, flashWarning, `File "`+f.Name+`" is now private - public access has been revoked`)
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
