package server

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

func (s *Server) uploadPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "upload.html", nil)
}

// uploadHandler accepts the multipart upload form: streams the file part to
// MinIO under uploads/<uuid>, then records the metadata row carrying the
// permanent share token. The browser is redirected back with a flash on
// every outcome, matching the original form flow.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "bad multipart", http.StatusBadRequest)
		return
	}

	// Walk the parts: form fields arrive before the file part in the
	// generated form, so values are collected as we go.
	var (
		filePart    io.Reader
		fileName    string
		contentType string
		isPublic    bool
		txNumber    string
		ttlHours    int
	)

	for filePart == nil {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "is_public":
			v, _ := io.ReadAll(io.LimitReader(part, 16))
			isPublic = string(v) == "on"
		case "transaction_number":
			v, _ := io.ReadAll(io.LimitReader(part, 256))
			txNumber = strings.TrimSpace(string(v))
		case "ttl_hours":
			v, _ := io.ReadAll(io.LimitReader(part, 16))
			ttlHours, _ = strconv.Atoi(strings.TrimSpace(string(v)))
		case "file":
			fileName = sanitizeFilename(part.FileName())
			contentType = part.Header.Get("Content-Type")
			filePart = part
		}
		if filePart == nil {
			_ = part.Close()
		}
	}

	if filePart == nil || fileName == "" || fileName == "unnamed" {
		s.flash(w, r, flashError, "No file was selected")
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
		return
	}
	if txNumber == "" {
		s.flash(w, r, flashError, "Transaction number is required")
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
		return
	}
	if !allowedFile(fileName) {
		s.flash(w, r, flashError, "File type not allowed")
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
		return
	}

	// Sniff the leading bytes, then stitch them back onto the stream.
	head := make([]byte, 512)
	n, rerr := io.ReadFull(filePart, head)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	head = head[:n]
	if err := validateUploadContent(fileName, head); err != nil {
		s.flash(w, r, flashError, "File type not allowed")
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
		return
	}
	body := io.MultiReader(bytes.NewReader(head), filePart)

	id := uuid.New()
	// Non-guessable object key; the original name only lives in the DB.
	objectKey := "uploads/" + id.String()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	info, err := s.cfg.Minio.PutObject(ctx, s.cfg.Bucket, objectKey, body, -1,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		getMetrics().recordUploadError()
		rid := RequestIDFromContext(r.Context())
		Error("putobject_failed", map[string]interface{}{"rid": rid}, err)

		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "upload failed", http.StatusBadGateway)
		return
	}

	shareToken, err := newShareToken()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var expiresAt sql.NullTime
	autoDelete := false
	if ttlHours > 0 {
		expiresAt = sql.NullTime{Time: time.Now().UTC().Add(time.Duration(ttlHours) * time.Hour), Valid: true}
		autoDelete = true
	}

	_, err = s.cfg.DB.Exec(`
		INSERT INTO files (id, owner_id, object_key, orig_name, content_type, file_type,
		                   size_bytes, transaction_number, is_public, share_token, expires_at, auto_delete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, userID, objectKey, fileName, contentType, fileTypeOf(fileName),
		info.Size, txNumber, isPublic, shareToken, expiresAt, autoDelete)
	if err != nil {
		// Orphaned object: the cleanup job cannot see it, remove it now.
		_ = s.cfg.Minio.RemoveObject(ctx, s.cfg.Bucket, objectKey, minio.RemoveObjectOptions{})
		Error("upload_insert_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	getMetrics().recordUpload(info.Size)
	Info("file_uploaded", map[string]interface{}{
		"file_id": id.String(),
		"bytes":   info.Size,
	})

	s.flash(w, r, flashSuccess, "File uploaded successfully!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
