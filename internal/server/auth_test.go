package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMakeAndVerifyToken(t *testing.T) {
	cfg := AuthConfig{SessionSecret: "test-secret", SessionTTL: 1 * time.Hour}
	tok, exp, err := cfg.makeToken("user-1")
	if err != nil {
		t.Fatalf("makeToken error: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expected exp in the future")
	}

	p, err := cfg.verifyToken(tok)
	if err != nil {
		t.Fatalf("verifyToken error: %v", err)
	}
	if p.Sub != "user-1" {
		t.Fatalf("unexpected sub: %s", p.Sub)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	// craft an expired token manually
	secret := []byte("s")
	sp := sessionPayload{Sub: "user-1", Exp: time.Now().Add(-1 * time.Hour).Unix()}
	b, _ := json.Marshal(sp)
	payload := base64.RawURLEncoding.EncodeToString(b)
	tok := payload + "." + signPayload(secret, payload)

	cfg := AuthConfig{SessionSecret: string(secret)}
	if _, err := cfg.verifyToken(tok); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestVerifyTokenBadSignature(t *testing.T) {
	cfg := AuthConfig{SessionSecret: "real-secret", SessionTTL: time.Hour}
	tok, _, err := cfg.makeToken("user-1")
	if err != nil {
		t.Fatalf("makeToken error: %v", err)
	}

	other := AuthConfig{SessionSecret: "other-secret"}
	if _, err := other.verifyToken(tok); err == nil {
		t.Fatalf("expected error for wrong secret")
	}

	if _, err := cfg.verifyToken("not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestCurrentUserFromCookie(t *testing.T) {
	cfg := AuthConfig{SessionSecret: "test-secret", SessionTTL: time.Hour}
	tok, exp, err := cfg.makeToken("user-42")
	if err != nil {
		t.Fatalf("makeToken error: %v", err)
	}

	w := httptest.NewRecorder()
	cfg.setSessionCookie(w, tok, exp)

	r := httptest.NewRequest("GET", "/dashboard", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	sub, err := cfg.currentUser(r)
	if err != nil {
		t.Fatalf("currentUser error: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("unexpected user: %s", sub)
	}
}

func TestCurrentUserNoCookie(t *testing.T) {
	cfg := AuthConfig{SessionSecret: "test-secret"}
	r := httptest.NewRequest("GET", "/dashboard", nil)
	if _, err := cfg.currentUser(r); err == nil {
		t.Fatalf("expected error without session cookie")
	}
}
