package textutil_test

import (
	"testing"

	"ferry/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.txt  ", "spaced.txt"},
		{"a/b\\c.txt", "a-b-c.txt"},
		{"clip: take*2.mov", "clip- take-2.mov"},
		{`"quoted" <tag> | pipe?`, "quoted tag  pipe"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := textutil.SanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
