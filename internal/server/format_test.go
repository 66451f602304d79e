package server

import "testing"

func TestFormatMiB(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{1048576, "1.00 MB"},
		{1572864, "1.50 MB"},
		{0, "0.00 MB"},
		{524288, "0.50 MB"},
		{16 << 20, "16.00 MB"},
		{1, "0.00 MB"},
	}
	for _, c := range cases {
		if got := FormatMiB(c.bytes); got != c.want {
			t.Errorf("FormatMiB(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
