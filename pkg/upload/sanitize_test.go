package upload

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean name kept", "report.pdf", "report.pdf"},
		{"spaces replaced", "q3 sales report.pdf", "q3_sales_report.pdf"},
		{"shell metacharacters replaced", "a;b&c|d.txt", "a_b_c_d.txt"},
		{"directory part stripped", "/etc/passwd", "passwd"},
		{"traversal collapsed to base", "../../secret.txt", "secret.txt"},
		{"unicode replaced", "résumé.pdf", "r_sum_.pdf"},
		{"empty falls back", "", "file"},
		{"dots only falls back", "...", "file"},
		{"whitespace trimmed", "  report.csv  ", "report.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500) + ".pdf"
	got := SanitizeFilename(long)
	if len(got) != maxFilenameLength {
		t.Errorf("sanitized length = %d, want %d", len(got), maxFilenameLength)
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()

	path, err := safeJoin(root, "abc__report.pdf")
	if err != nil {
		t.Fatalf("safeJoin with safe name failed: %v", err)
	}
	if !strings.HasPrefix(path, root) {
		t.Errorf("joined path %q escapes root %q", path, root)
	}

	if _, err := safeJoin(root, "../escape.txt"); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("safeJoin with traversal: got %v, want ErrUnsafePath", err)
	}
}
