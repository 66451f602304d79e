// auth.go - Stateless session cookies and authentication helpers.
//
// Sessions are HMAC-signed cookies carrying the user id and expiry.
// Cross-site form posts do not carry them (SameSite=Lax), which is the
// CSRF story for the server-rendered forms.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds session configuration and the DB used to look up users.
// Unit tests construct it directly with just a secret.
type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	DB            *sql.DB
}

type sessionPayload struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "sdrop_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return a.SessionTTL
}

func (a AuthConfig) secretBytes() []byte {
	return []byte(a.SessionSecret)
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func encodeSession(p sessionPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeSession(token string) (sessionPayload, error) {
	var p sessionPayload
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// makeToken returns "payload.signature"
func (a AuthConfig) makeToken(sub string) (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	p := sessionPayload{Sub: sub, Exp: exp.Unix()}
	payload, err := encodeSession(p)
	if err != nil {
		return "", time.Time{}, err
	}
	sig := signPayload(a.secretBytes(), payload)
	return payload + "." + sig, exp, nil
}

func (a AuthConfig) verifyToken(tok string) (sessionPayload, error) {
	var p sessionPayload
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return p, errors.New("invalid token format")
	}
	payload := parts[0]
	sig := parts[1]
	want := signPayload(a.secretBytes(), payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	decoded, err := decodeSession(payload)
	if err != nil {
		return p, err
	}
	if decoded.Exp <= time.Now().Unix() {
		return p, errors.New("expired")
	}
	return decoded, nil
}

// currentUser extracts the user id from the session cookie.
func (a AuthConfig) currentUser(r *http.Request) (string, error) {
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return "", errors.New("no session cookie")
	}
	payload, err := a.verifyToken(c.Value)
	if err != nil {
		return "", err
	}
	return payload.Sub, nil
}

// requireAuth gates JSON endpoints with a plain 401.
func (a AuthConfig) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.cookieName())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := a.verifyToken(c.Value); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a AuthConfig) setSessionCookie(w http.ResponseWriter, tok string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
}

func (a AuthConfig) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
}

// authenticateUser checks credentials against the database. The login
// field matches either username or email, as in the original app.
func authenticateUser(db *sql.DB, login, password string) (id, username string, ok bool) {
	var passwordHash string

	err := db.QueryRow(
		`SELECT id, username, password_hash FROM users WHERE username = $1 OR email = $1`,
		login,
	).Scan(&id, &username, &passwordHash)
	if err != nil {
		if err != sql.ErrNoRows {
			Error("auth_query_failed", nil, err)
		}
		return "", "", false
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return "", "", false
	}

	_, _ = db.Exec(`UPDATE users SET last_login = now() WHERE id = $1`, id)

	return id, username, true
}

func (s *Server) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Auth.currentUser(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", nil)
}

// loginHandler authenticates a form post and issues the session cookie.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	getMetrics().recordLoginAttempt()

	id, username, ok := authenticateUser(s.cfg.DB, login, password)
	if !ok {
		getMetrics().recordLoginFailure()
		s.flash(w, r, flashError, "Invalid credentials")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	tok, exp, err := s.cfg.Auth.makeToken(id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	s.cfg.Auth.setSessionCookie(w, tok, exp)

	getMetrics().recordLoginSuccess()
	s.flash(w, r, flashSuccess, "Welcome "+username+"!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.cfg.Auth.clearSessionCookie(w)
	s.flash(w, r, flashInfo, "Logged out successfully")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
