package util

import (
	"errors"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"backup_hojas_ruta_2026-03-01_10-00-00_ab12cd34.sql", "backup_hojas_ruta_2026-03-01_10-00-00_ab12cd34.sql"},
		{" informe final.sql ", "informe_final.sql"},
		{"a/b\\c.sql", "a_b_c.sql"},
		{"año.sql", "a_o.sql"},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "../x.sql", "a..b", "/", "._"} {
		if _, err := SanitizeFileName(in); !errors.Is(err, ErrInvalidFileName) {
			t.Fatalf("SanitizeFileName(%q): expected ErrInvalidFileName, got %v", in, err)
		}
	}
}
