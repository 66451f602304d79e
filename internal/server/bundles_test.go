package server

import "testing"

func TestZipEntryName(t *testing.T) {
	seen := make(map[string]int)

	if got := zipEntryName("report.pdf", seen); got != "report.pdf" {
		t.Fatalf("first: %q", got)
	}
	if got := zipEntryName("report.pdf", seen); got != "report (1).pdf" {
		t.Fatalf("second: %q", got)
	}
	if got := zipEntryName("report.pdf", seen); got != "report (2).pdf" {
		t.Fatalf("third: %q", got)
	}
	if got := zipEntryName("noext", seen); got != "noext" {
		t.Fatalf("no extension first: %q", got)
	}
	if got := zipEntryName("noext", seen); got != "noext (1)" {
		t.Fatalf("no extension second: %q", got)
	}
	// other names are untouched by earlier collisions
	if got := zipEntryName("other.txt", seen); got != "other.txt" {
		t.Fatalf("independent name: %q", got)
	}
}
