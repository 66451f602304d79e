// validation.go - Upload input validation and filename sanitisation.
package server

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// allowedExtensions is the upload allowlist carried over from the original
// deployment. Everything else is rejected before any bytes reach storage.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".zip":  true,
}

// extAliases maps sniffed extensions to the allowlist spelling.
var extAliases = map[string]string{
	"jpg": ".jpg", "png": ".png", "gif": ".gif", "pdf": ".pdf",
	"doc": ".doc", "docx": ".docx", "zip": ".zip",
}

// allowedFile reports whether the filename carries an allowed extension.
func allowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// fileTypeOf returns the lowercase extension without the dot, the
// "file type" column the dashboard displays. Unknown when missing.
func fileTypeOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "unknown"
	}
	return ext[1:]
}

// validateUploadContent cross-checks the claimed extension against the
// file's magic bytes. Text formats (txt, and docx/zip members that sniff
// as zip) pass; a sniffed type that contradicts the extension is rejected.
func validateUploadContent(filename string, head []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("file type not allowed: %s", ext)
	}

	kind, _ := filetype.Match(head)
	if kind == filetype.Unknown {
		// Plain text and empty files have no magic bytes.
		return nil
	}

	sniffed, ok := extAliases[kind.Extension]
	if !ok {
		return fmt.Errorf("content type not allowed: %s", kind.MIME.Value)
	}
	if sniffed == ext {
		return nil
	}
	// docx is a zip container; jpeg spells itself two ways.
	if kind.Extension == "zip" && (ext == ".docx" || ext == ".zip") {
		return nil
	}
	if kind.Extension == "jpg" && ext == ".jpeg" {
		return nil
	}
	return fmt.Errorf("content does not match extension %s (detected %s)", ext, kind.Extension)
}

// sanitizeFilename strips path separators and control bytes and bounds the
// length, keeping the extension intact.
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		nameWithoutExt := filename[:len(filename)-len(ext)]
		filename = nameWithoutExt[:255-len(ext)] + ext
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}
