package upload

import (
	"path/filepath"
	"regexp"
	"strings"
)

// maxFilenameLength bounds sanitized filenames.
const maxFilenameLength = 200

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename reduces a client-declared filename to a safe character
// set ([A-Za-z0-9._-]) and a bounded length. Path separators never survive.
// An empty or fully-unsafe name falls back to "file".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")

	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	if name == "" || strings.Trim(name, "._") == "" {
		return "file"
	}
	return name
}

// safeJoin joins name onto root and verifies the resolved absolute path
// stays inside root. Returns ErrUnsafePath for traversal attempts.
func safeJoin(root, name string) (string, error) {
	resolved := filepath.Join(root, name)

	rootPrefix := root
	if !strings.HasSuffix(rootPrefix, string(filepath.Separator)) {
		rootPrefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(resolved, rootPrefix) {
		return "", ErrUnsafePath
	}
	return resolved, nil
}
