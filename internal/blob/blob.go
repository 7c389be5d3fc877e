// Package blob stores evidence uploads for the compliance service.
package blob

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"auditflow/internal/compliance"
)

// ErrNotFound is returned by Get for a URL with no stored content.
var ErrNotFound = fmt.Errorf("blob %w", compliance.ErrNotFound)

// newKey returns a fresh storage key for an upload named name. Keys are
// "<uuid>/<sanitized name>" so repeated names never collide.
func newKey(name string) string {
	return uuid.NewString() + "/" + sanitizeName(name)
}

// sanitizeName reduces a client-supplied file name to a safe final path
// segment.
func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, base)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "upload"
	}
	return clean
}

// splitURL returns the key of a URL with the given scheme ("mem", "file").
func splitURL(url, scheme string) (string, error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: %q is not a %s URL", compliance.ErrValidation, url, scheme)
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: invalid blob key in %q", compliance.ErrValidation, url)
	}
	return key, nil
}
