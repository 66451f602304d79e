package server

import "strconv"

// FormatMiB renders a byte count in mebibytes with two decimals, matching
// what the upload preview shows client-side: 1048576 -> "1.00 MB".
func FormatMiB(sizeBytes int64) string {
	mib := float64(sizeBytes) / 1048576.0
	return strconv.FormatFloat(mib, 'f', 2, 64) + " MB"
}
