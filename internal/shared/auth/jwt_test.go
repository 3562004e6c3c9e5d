package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(IssuerConfig{Secret: "test-secret", AccessTTL: time.Hour, Now: now})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestSignAndVerify(t *testing.T) {
	iss := newTestIssuer(t, nil)
	token, err := iss.Sign(12, "jperez", "secretaria")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 12 || claims.Username != "jperez" || claims.Rol != "secretaria" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return issued })
	token, err := iss.Sign(1, "admin", "admin")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	later := newTestIssuer(t, func() time.Time { return issued.Add(2 * time.Hour) })
	if _, err := later.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsRefreshAsAccess(t *testing.T) {
	iss := newTestIssuer(t, nil)
	refresh, err := iss.SignRefresh(3, "maria")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	if _, err := iss.Verify(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh token on access path, got %v", err)
	}
	claims, err := iss.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.UserID != 3 {
		t.Fatalf("expected user 3, got %d", claims.UserID)
	}
}

func TestVerifyTampered(t *testing.T) {
	iss := newTestIssuer(t, nil)
	token, _ := iss.Sign(5, "x", "usuario")
	other, _ := NewIssuer(IssuerConfig{Secret: "other"})
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewIssuerRequiresSecretInProduction(t *testing.T) {
	if _, err := NewIssuer(IssuerConfig{Production: true}); err == nil {
		t.Fatalf("expected error without secret in production")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3creto")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "s3creto") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "otro") {
		t.Fatalf("expected mismatch")
	}
}
