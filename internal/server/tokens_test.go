package server

import "testing"

func TestNewShareToken(t *testing.T) {
	a, err := newShareToken()
	if err != nil {
		t.Fatalf("newShareToken error: %v", err)
	}
	b, err := newShareToken()
	if err != nil {
		t.Fatalf("newShareToken error: %v", err)
	}

	// 16 random bytes base64url-encode to 22 characters.
	if len(a) != 22 {
		t.Fatalf("unexpected token length %d: %q", len(a), a)
	}
	if a == b {
		t.Fatalf("tokens should not repeat")
	}
	for _, r := range a {
		if r == '/' || r == '+' || r == '=' {
			t.Fatalf("token not URL-safe: %q", a)
		}
	}
}
