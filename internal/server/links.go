// links.go - Expiring download links, independent of file visibility.
//
// A temporary link is a signed JWT carrying the file id and expiry; the
// /dl endpoint verifies it and streams the object even for private files,
// so owners can hand out short-lived access without flipping the flag.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errLinkSecretMissing = errors.New("link secret missing")
	errBadLinkToken      = errors.New("bad link token")
	errLinkExpired       = errors.New("link expired")
)

type createLinkReq struct {
	ID         string `json:"id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type createLinkResp struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func clampTTLSeconds(n int) int {
	// If omitted/invalid, default to 5 minutes.
	// Hard cap at 24h to avoid effectively permanent links.
	if n <= 0 {
		return 300
	}
	if n > 86400 {
		return 86400
	}
	return n
}

// signLinkToken issues an HS256 token whose subject is the file id.
func signLinkToken(secret []byte, fileID string, expiresAt time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errLinkSecretMissing
	}
	claims := jwt.RegisteredClaims{
		Subject:   fileID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		Issuer:    "share-drop",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verifyLinkToken validates signature and expiry and returns the file id.
func verifyLinkToken(secret []byte, token string) (string, error) {
	if len(secret) == 0 {
		return "", errLinkSecretMissing
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadLinkToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errLinkExpired
		}
		return "", errBadLinkToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errBadLinkToken
	}
	return claims.Subject, nil
}

// createTempLinkHandler handles POST /links: JSON in, JSON out. The caller
// must own the file.
func (s *Server) createTempLinkHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createLinkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	var ownerID string
	err = s.cfg.DB.QueryRow(`SELECT owner_id FROM files WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusGone)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if ownerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ttl := clampTTLSeconds(req.TTLSeconds)
	expiresAt := time.Now().UTC().Add(time.Duration(ttl) * time.Second)

	token, err := signLinkToken(s.cfg.LinkSecret, id.String(), expiresAt)
	if err != nil {
		if err == errLinkSecretMissing {
			http.Error(w, "server misconfigured", http.StatusInternalServerError)
			return
		}
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(createLinkResp{
		URL:       s.cfg.BaseURL + "/dl?token=" + token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// tempDownloadHandler streams a file addressed by a temporary link token.
func (s *Server) tempDownloadHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	fileID, err := verifyLinkToken(s.cfg.LinkSecret, token)
	if err != nil {
		if err == errLinkExpired {
			http.Error(w, "link expired", http.StatusGone)
			return
		}
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var f sharedFile
	err = s.cfg.DB.QueryRow(`
		SELECT id, owner_id, object_key, orig_name, content_type, file_type, size_bytes
		FROM files WHERE id = $1
	`, fileID).Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.Name, &f.ContentType, &f.FileType, &f.SizeBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if _, err := s.cfg.DB.Exec(
		`UPDATE files SET download_count = download_count + 1 WHERE id = $1`, f.ID); err != nil {
		Warn("download_count_failed", map[string]interface{}{"file_id": f.ID})
	}
	getMetrics().recordDownload()

	s.streamObject(w, r, f, "attachment")
}
