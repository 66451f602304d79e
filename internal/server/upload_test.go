package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

// authedUploadRequest builds a multipart POST /upload carrying a valid
// session cookie. Field order matches the real form: text fields first.
func authedUploadRequest(t *testing.T, s *Server, fields map[string]string, fileName string, fileBody []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(fileBody); err != nil {
			t.Fatalf("file write: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	tok, exp, err := s.cfg.Auth.makeToken("user-1")
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}
	w := httptest.NewRecorder()
	s.cfg.Auth.setSessionCookie(w, tok, exp)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestUploadHandler_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.uploadHandler(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rec.Code)
	}
}

func TestUploadHandler_NoFile(t *testing.T) {
	s := newTestServer(t)

	req := authedUploadRequest(t, s, map[string]string{"transaction_number": "TX-1"}, "", nil)
	rec := httptest.NewRecorder()
	s.uploadHandler(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/upload" {
		t.Fatalf("got %d -> %q, want redirect to /upload", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUploadHandler_MissingTransactionNumber(t *testing.T) {
	s := newTestServer(t)

	req := authedUploadRequest(t, s, nil, "notes.txt", []byte("hello"))
	rec := httptest.NewRecorder()
	s.uploadHandler(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/upload" {
		t.Fatalf("got %d -> %q, want redirect to /upload", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUploadHandler_DisallowedExtension(t *testing.T) {
	s := newTestServer(t)

	req := authedUploadRequest(t, s, map[string]string{"transaction_number": "TX-1"}, "tool.exe", []byte{0x4d, 0x5a})
	rec := httptest.NewRecorder()
	s.uploadHandler(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/upload" {
		t.Fatalf("got %d -> %q, want redirect to /upload", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUploadHandler_ContentMismatch(t *testing.T) {
	s := newTestServer(t)

	// PNG magic bytes behind a .pdf name must be rejected before storage.
	req := authedUploadRequest(t, s, map[string]string{"transaction_number": "TX-1"}, "fake.pdf", pngHead)
	rec := httptest.NewRecorder()
	s.uploadHandler(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/upload" {
		t.Fatalf("got %d -> %q, want redirect to /upload", rec.Code, rec.Header().Get("Location"))
	}
}
