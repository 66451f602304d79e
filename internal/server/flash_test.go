package server

import (
	"strings"
	"testing"
)

func TestPushFlashNewestFirst(t *testing.T) {
	var list []Flash
	list = pushFlash(list, Flash{Kind: flashSuccess, Message: "first"})
	list = pushFlash(list, Flash{Kind: flashError, Message: "second"})
	list = pushFlash(list, Flash{Kind: flashInfo, Message: "third"})

	if len(list) != 3 {
		t.Fatalf("expected 3 flashes, got %d", len(list))
	}
	if list[0].Message != "third" || list[1].Message != "second" || list[2].Message != "first" {
		t.Fatalf("wrong order: %+v", list)
	}
}

func TestFlashEncodeDecodeRoundtrip(t *testing.T) {
	secret := []byte("flash-secret")
	in := []Flash{
		{Kind: flashSuccess, Message: "File uploaded successfully!"},
		{Kind: flashWarning, Message: "quota nearly full"},
	}

	value, err := encodeFlashes(secret, in)
	if err != nil {
		t.Fatalf("encodeFlashes error: %v", err)
	}

	out, err := decodeFlashes(secret, value)
	if err != nil {
		t.Fatalf("decodeFlashes error: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestFlashDecodeRejectsTamper(t *testing.T) {
	secret := []byte("flash-secret")
	value, err := encodeFlashes(secret, []Flash{{Kind: flashInfo, Message: "hi"}})
	if err != nil {
		t.Fatalf("encodeFlashes error: %v", err)
	}

	// Flip a byte in the payload, keep the signature.
	dot := strings.IndexByte(value, '.')
	tampered := "x" + value[1:dot] + value[dot:]
	if _, err := decodeFlashes(secret, tampered); err == nil {
		t.Fatalf("expected error for tampered payload")
	}

	// Wrong secret.
	if _, err := decodeFlashes([]byte("other"), value); err == nil {
		t.Fatalf("expected error for wrong secret")
	}

	// No separator at all.
	if _, err := decodeFlashes(secret, "garbage"); err == nil {
		t.Fatalf("expected error for malformed cookie")
	}
}
