package server

import "testing"

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		in       string
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://s3.example.com", "s3.example.com", true, false},
		{"https://s3.example.com/", "s3.example.com", true, false},
		{"https://s3.example.com/bucket", "", false, true},
		{"", "", false, true},
		{"   ", "", false, true},
	}
	for _, c := range cases {
		endpoint, secure, err := normaliseEndpoint(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("normaliseEndpoint(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("normaliseEndpoint(%q): %v", c.in, err)
			continue
		}
		if endpoint != c.endpoint || secure != c.secure {
			t.Errorf("normaliseEndpoint(%q) = (%q, %v), want (%q, %v)",
				c.in, endpoint, secure, c.endpoint, c.secure)
		}
	}
}
