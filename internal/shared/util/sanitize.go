package util

import (
	"errors"
	"strings"
)

// ErrInvalidFileName is returned for names that are empty or could escape a
// directory.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName maps name to a single path segment made of letters,
// digits, '.', '-' and '_'. Other runes become '_'.
func SanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, "._") == "" {
		return "", ErrInvalidFileName
	}
	return out, nil
}
