package server

import (
	"errors"
	"testing"
	"time"
)

func TestLinkTokenRoundtrip(t *testing.T) {
	secret := []byte("link-secret")
	fileID := "3f1c2e84-7a10-4a3f-9a0a-5b4f2f6a9c11"

	tok, err := signLinkToken(secret, fileID, time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("signLinkToken error: %v", err)
	}

	got, err := verifyLinkToken(secret, tok)
	if err != nil {
		t.Fatalf("verifyLinkToken error: %v", err)
	}
	if got != fileID {
		t.Fatalf("unexpected subject: %s", got)
	}
}

func TestLinkTokenExpired(t *testing.T) {
	secret := []byte("link-secret")
	tok, err := signLinkToken(secret, "file-1", time.Now().Add(-1*time.Minute))
	if err != nil {
		t.Fatalf("signLinkToken error: %v", err)
	}

	_, err = verifyLinkToken(secret, tok)
	if !errors.Is(err, errLinkExpired) {
		t.Fatalf("expected errLinkExpired, got %v", err)
	}
}

func TestLinkTokenTampered(t *testing.T) {
	secret := []byte("link-secret")
	tok, err := signLinkToken(secret, "file-1", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("signLinkToken error: %v", err)
	}

	if _, err := verifyLinkToken([]byte("other-secret"), tok); !errors.Is(err, errBadLinkToken) {
		t.Fatalf("expected errBadLinkToken for wrong secret, got %v", err)
	}
	if _, err := verifyLinkToken(secret, tok+"x"); !errors.Is(err, errBadLinkToken) {
		t.Fatalf("expected errBadLinkToken for mangled token, got %v", err)
	}
}

func TestClampTTLSeconds(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 300},
		{-5, 300},
		{60, 60},
		{86400, 86400},
		{999999, 86400},
	}
	for _, c := range cases {
		if got := clampTTLSeconds(c.in); got != c.want {
			t.Errorf("clampTTLSeconds(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
