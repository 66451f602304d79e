// bundles.go - Grouping files into shareable bundles with zip download.
package server

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

type bundleInfo struct {
	ID            string
	OwnerID       string
	Name          string
	TxNumber      string
	IsPublic      bool
	ShareToken    string
	DownloadCount int64
	CreatedAt     time.Time
}

// bundleFormData feeds the create/edit form: all of the user's files plus
// which ones are currently members.
type bundleFormData struct {
	Bundle    bundleInfo
	Files     []fileRow
	MemberIDs map[string]bool
	Editing   bool
}

type bundlePageData struct {
	Bundle   bundleInfo
	Files    []fileRow
	ShareURL string
}

func (s *Server) bundleByToken(token string) (bundleInfo, error) {
	var b bundleInfo
	err := s.cfg.DB.QueryRow(`
		SELECT id, owner_id, name, transaction_number, is_public, share_token,
		       download_count, created_at
		FROM bundles WHERE share_token = $1
	`, token).Scan(&b.ID, &b.OwnerID, &b.Name, &b.TxNumber, &b.IsPublic,
		&b.ShareToken, &b.DownloadCount, &b.CreatedAt)
	return b, err
}

func (s *Server) bundleFiles(bundleID string) ([]fileRow, error) {
	rows, err := s.cfg.DB.Query(`
		SELECT f.id, f.orig_name, f.file_type, f.size_bytes, f.transaction_number,
		       f.is_public, f.share_token, f.download_count, f.created_at
		FROM files f
		JOIN bundle_files bf ON bf.file_id = f.id
		WHERE bf.bundle_id = $1
		ORDER BY f.orig_name
	`, bundleID)
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

// ownedBundle loads a bundle by path id and verifies ownership.
func (s *Server) ownedBundle(w http.ResponseWriter, r *http.Request, userID string) (bundleInfo, bool) {
	idStr := r.PathValue("id")
	if _, err := uuid.Parse(idStr); err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return bundleInfo{}, false
	}

	var b bundleInfo
	err := s.cfg.DB.QueryRow(`
		SELECT id, owner_id, name, transaction_number, is_public, share_token,
		       download_count, created_at
		FROM bundles WHERE id = $1
	`, idStr).Scan(&b.ID, &b.OwnerID, &b.Name, &b.TxNumber, &b.IsPublic,
		&b.ShareToken, &b.DownloadCount, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return bundleInfo{}, false
		}
		Error("bundle_query_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return bundleInfo{}, false
	}
	if b.OwnerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return bundleInfo{}, false
	}
	return b, true
}

func (s *Server) newBundlePageHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	files, err := s.userFiles(userID)
	if err != nil {
		Error("bundle_form_files_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "bundle_form.html", bundleFormData{Files: files, MemberIDs: map[string]bool{}})
}

// replaceBundleMembers rewrites the membership set, keeping only files the
// user actually owns.
func (s *Server) replaceBundleMembers(bundleID, userID string, fileIDs []string) error {
	tx, err := s.cfg.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM bundle_files WHERE bundle_id = $1`, bundleID); err != nil {
		return err
	}
	for _, fid := range fileIDs {
		if _, err := uuid.Parse(fid); err != nil {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO bundle_files (bundle_id, file_id)
			SELECT $1, id FROM files WHERE id = $2 AND owner_id = $3
			ON CONFLICT DO NOTHING
		`, bundleID, fid, userID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Server) createBundleHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("bundle_name"))
	txNumber := strings.TrimSpace(r.FormValue("transaction_number"))
	selected := r.Form["selected_files"]
	isPublic := r.FormValue("is_public") == "on"

	if name == "" || txNumber == "" || len(selected) == 0 {
		s.flash(w, r, flashError, "Please fill all fields and select at least one file")
		http.Redirect(w, r, "/bundles/new", http.StatusSeeOther)
		return
	}

	shareToken, err := newShareToken()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	bundleID := uuid.New()
	_, err = s.cfg.DB.Exec(`
		INSERT INTO bundles (id, owner_id, name, transaction_number, is_public, share_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, bundleID, userID, name, txNumber, isPublic, shareToken)
	if err != nil {
		Error("bundle_insert_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if err := s.replaceBundleMembers(bundleID.String(), userID, selected); err != nil {
		Error("bundle_members_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	members, err := s.bundleFiles(bundleID.String())
	if err != nil {
		members = nil
	}
	plural := "s"
	if len(members) == 1 {
		plural = ""
	}
	s.flash(w, r, flashSuccess,
		fmt.Sprintf("Bundle %q created successfully with %d file%s!", txNumber, len(members), plural))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) sharedBundleHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.bundleByToken(r.PathValue("token"))
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if !s.canAccess(r, b.OwnerID, b.IsPublic) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	files, err := s.bundleFiles(b.ID)
	if err != nil {
		Error("bundle_files_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "bundle.html", bundlePageData{
		Bundle:   b,
		Files:    files,
		ShareURL: s.cfg.BaseURL + "/bundle/" + b.ShareToken,
	})
}

// downloadBundleHandler streams a zip of the bundle, named after the
// transaction number, without staging to disk.
func (s *Server) downloadBundleHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.bundleByToken(r.PathValue("token"))
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if !s.canAccess(r, b.OwnerID, b.IsPublic) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	files, err := s.bundleFiles(b.ID)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if _, err := s.cfg.DB.Exec(
		`UPDATE bundles SET download_count = download_count + 1 WHERE id = $1`, b.ID); err != nil {
		Warn("bundle_count_failed", map[string]interface{}{"bundle_id": b.ID})
	}
	getMetrics().recordDownload()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s.zip"`, sanitizeFilename(b.TxNumber)))
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	zw := zip.NewWriter(w)
	defer func() { _ = zw.Close() }()

	objectKeys := make(map[string]string, len(files))
	for _, f := range files {
		var key string
		if err := s.cfg.DB.QueryRow(`SELECT object_key FROM files WHERE id = $1`, f.ID).Scan(&key); err != nil {
			continue
		}
		objectKeys[f.ID] = key
	}

	seen := make(map[string]int)
	for _, f := range files {
		key, ok := objectKeys[f.ID]
		if !ok {
			continue
		}

		entryName := zipEntryName(f.Name, seen)
		entry, err := zw.Create(entryName)
		if err != nil {
			Error("zip_entry_failed", map[string]interface{}{"bundle_id": b.ID}, err)
			return
		}

		obj, err := s.cfg.Minio.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
		if err != nil {
			Warn("zip_object_failed", map[string]interface{}{"file_id": f.ID})
			continue
		}
		if _, err := io.Copy(entry, obj); err != nil {
			_ = obj.Close()
			// The response is already partially written; nothing to do but stop.
			Error("zip_copy_failed", map[string]interface{}{"file_id": f.ID}, err)
			return
		}
		_ = obj.Close()
	}
}

// zipEntryName deduplicates colliding original names inside one archive.
func zipEntryName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ""
	base := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i:]
	}
	return base + " (" + strconv.Itoa(n) + ")" + ext
}

func (s *Server) editBundlePageHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	b, ok := s.ownedBundle(w, r, userID)
	if !ok {
		return
	}

	files, err := s.userFiles(userID)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	members, err := s.bundleFiles(b.ID)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	memberIDs := make(map[string]bool, len(members))
	for _, m := range members {
		memberIDs[m.ID] = true
	}

	s.render(w, r, "bundle_form.html", bundleFormData{
		Bundle:    b,
		Files:     files,
		MemberIDs: memberIDs,
		Editing:   true,
	})
}

func (s *Server) editBundleHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	b, ok := s.ownedBundle(w, r, userID)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("bundle_name"))
	txNumber := strings.TrimSpace(r.FormValue("transaction_number"))
	selected := r.Form["selected_files"]
	isPublic := r.FormValue("is_public") == "on"

	if name == "" || txNumber == "" {
		s.flash(w, r, flashError, "Bundle name and transaction number are required")
		http.Redirect(w, r, "/bundles/"+b.ID+"/edit", http.StatusSeeOther)
		return
	}

	_, err := s.cfg.DB.Exec(`
		UPDATE bundles SET name = $1, transaction_number = $2, is_public = $3 WHERE id = $4
	`, name, txNumber, isPublic, b.ID)
	if err != nil {
		Error("bundle_update_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if err := s.replaceBundleMembers(b.ID, userID, selected); err != nil {
		Error("bundle_members_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.flash(w, r, flashSuccess, fmt.Sprintf("Bundle %q updated successfully!", txNumber))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) toggleBundleHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	b, ok := s.ownedBundle(w, r, userID)
	if !ok {
		return
	}

	newStatus := !b.IsPublic
	if _, err := s.cfg.DB.Exec(`UPDATE bundles SET is_public = $1 WHERE id = $2`, newStatus, b.ID); err != nil {
		Error("bundle_toggle_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if newStatus {
		s.flash(w, r, flashSuccess, fmt.Sprintf("Bundle %q is now public and can be shared", b.TxNumber))
	} else {
		s.flash(w, r, flashWarning, fmt.Sprintf("Bundle %q is now private - public access has been revoked", b.TxNumber))
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) deleteBundleHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := s.cfg.Auth.currentUser(r)
	b, ok := s.ownedBundle(w, r, userID)
	if !ok {
		return
	}

	// Membership rows go via ON DELETE CASCADE; the files themselves stay.
	if _, err := s.cfg.DB.Exec(`DELETE FROM bundles WHERE id = $1`, b.ID); err != nil {
		Error("bundle_delete_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.flash(w, r, flashSuccess, "Bundle deleted successfully")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
