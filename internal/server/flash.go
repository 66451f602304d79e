// flash.go - One-shot notification banners carried across redirects.
//
// Flashes live in an HMAC-signed cookie and are drained on the next page
// render. New flashes are pushed to the front so the newest banner is the
// first item in the page's notification host.
package server

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
)

const flashCookieName = "sdrop_flash"

const (
	flashSuccess = "success"
	flashError   = "error"
	flashWarning = "warning"
	flashInfo    = "info"
)

// Flash is a single transient notification shown once on the next page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// pushFlash prepends: the newest notification renders first.
func pushFlash(list []Flash, f Flash) []Flash {
	return append([]Flash{f}, list...)
}

// encodeFlashes serialises and signs the flash list for cookie transport,
// using the same payload.signature shape as session cookies.
func encodeFlashes(secret []byte, list []Flash) (string, error) {
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + "." + signPayload(secret, payload), nil
}

// decodeFlashes verifies the signature and returns the flash list.
// A tampered or malformed cookie yields an error; callers treat that as
// "no flashes" rather than failing the page.
func decodeFlashes(secret []byte, value string) ([]Flash, error) {
	dot := -1
	for i := 0; i < len(value); i++ {
		if value[i] == '.' {
			dot = i
			break
		}
	}
	if dot <= 0 || dot >= len(value)-1 {
		return nil, errors.New("bad flash cookie")
	}
	payload := value[:dot]
	sig := value[dot+1:]
	if !hmac.Equal([]byte(sig), []byte(signPayload(secret, payload))) {
		return nil, errors.New("bad flash signature")
	}
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New("bad flash cookie")
	}
	var list []Flash
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, errors.New("bad flash cookie")
	}
	return list, nil
}

// flash queues a notification for the next rendered page.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind, message string) {
	secret := s.cfg.Auth.secretBytes()

	var list []Flash
	if c, err := r.Cookie(flashCookieName); err == nil {
		if existing, err := decodeFlashes(secret, c.Value); err == nil {
			list = existing
		}
	}
	list = pushFlash(list, Flash{Kind: kind, Message: message})

	value, err := encodeFlashes(secret, list)
	if err != nil {
		Error("flash_encode_failed", nil, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
}

// takeFlashes drains the queued notifications and clears the cookie.
func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	list, err := decodeFlashes(s.cfg.Auth.secretBytes(), c.Value)
	if err != nil {
		list = nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
	return list
}
