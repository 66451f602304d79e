package server

import (
	"crypto/rand"
	"encoding/base64"
)

// newShareToken returns a 16-byte URL-safe random token. These are the
// permanent share identifiers stored on files and bundles.
func newShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
