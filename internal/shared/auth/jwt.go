package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	devSecret        = "dev-secret"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidStructure = errors.New("invalid token structure")
	errMissingSecret    = errors.New("jwt secret not configured")
)

// Claims is the identity carried by access and refresh tokens.
type Claims struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Rol       string `json:"rol,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// IssuerConfig configures token signing.
type IssuerConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Production    bool
	Now           func() time.Time
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer validates cfg and returns an Issuer. Outside production an empty
// secret falls back to a fixed development value.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		if cfg.Production {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
		secret = devSecret
	}
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if refresh == "" {
		refresh = secret + "-refresh"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{
		secret:        []byte(secret),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}, nil
}

// AccessTTL returns the lifetime of access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Sign issues an access token.
func (i *Issuer) Sign(userID int64, username, rol string) (string, error) {
	return i.sign(i.secret, i.accessTTL, Claims{UserID: userID, Username: username, Rol: rol, TokenType: tokenTypeAccess})
}

// SignRefresh issues a refresh token signed with the refresh secret.
func (i *Issuer) SignRefresh(userID int64, username string) (string, error) {
	return i.sign(i.refreshSecret, i.refreshTTL, Claims{UserID: userID, Username: username, TokenType: tokenTypeRefresh})
}

// Verify parses an access token.
func (i *Issuer) Verify(token string) (Claims, error) {
	return i.verify(token, i.secret, tokenTypeAccess)
}

// VerifyRefresh parses a refresh token.
func (i *Issuer) VerifyRefresh(token string) (Claims, error) {
	return i.verify(token, i.refreshSecret, tokenTypeRefresh)
}

func (i *Issuer) sign(secret []byte, ttl time.Duration, claims Claims) (string, error) {
	if claims.UserID <= 0 {
		return "", errors.New("user id is required")
	}
	now := i.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(claims.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *Issuer) verify(raw string, secret []byte, wantType string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID <= 0 || claims.Username == "" || claims.TokenType != wantType {
		return Claims{}, ErrInvalidStructure
	}
	return claims, nil
}
