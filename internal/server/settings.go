// settings.go - Site-wide settings, currently the custom logo.
package server

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

const logoSettingKey = "logo_object_key"

// 2MB is plenty for a header logo.
const maxLogoBytes = 2 << 20

var logoExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
}

// logoKey returns the object key of the uploaded logo, or "" when none is set.
func (s *Server) logoKey() string {
	var key string
	err := s.cfg.DB.QueryRow(`SELECT value FROM settings WHERE key = $1`, logoSettingKey).Scan(&key)
	if err != nil {
		if err != sql.ErrNoRows {
			Warn("settings_query_failed", map[string]interface{}{"key": logoSettingKey})
		}
		return ""
	}
	return key
}

func (s *Server) setSetting(key, value string) error {
	_, err := s.cfg.DB.Exec(`
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

type settingsData struct {
	HasLogo bool
}

func (s *Server) settingsPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "settings.html", settingsData{HasLogo: s.logoKey() != ""})
}

func (s *Server) updateLogoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)

	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		s.flash(w, r, flashError, "Logo must be smaller than 2 MB")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		s.flash(w, r, flashError, "No logo file was selected")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !logoExtensions[ext] {
		s.flash(w, r, flashError, "Logo must be an image (png, jpg, gif or svg)")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := "logos/" + uuid.New().String() + ext
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	_, err = s.cfg.Minio.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		Error("logo_store_failed", nil, err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	old := s.logoKey()
	if err := s.setSetting(logoSettingKey, key); err != nil {
		Error("settings_update_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if old != "" && old != key {
		if err := s.cfg.Minio.RemoveObject(ctx, s.cfg.Bucket, old, minio.RemoveObjectOptions{}); err != nil {
			Warn("logo_cleanup_failed", map[string]interface{}{"object_key": old})
		}
	}

	Info("logo_updated", map[string]interface{}{"object_key": key})
	s.flash(w, r, flashSuccess, "Logo updated successfully")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *Server) serveLogoHandler(w http.ResponseWriter, r *http.Request) {
	key := s.logoKey()
	if key == "" {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	obj, err := s.cfg.Minio.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else if stat.ContentType != "" {
		w.Header().Set("Content-Type", stat.ContentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = io.Copy(w, obj)
}
