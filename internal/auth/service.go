// Package auth implements sessions: login, token refresh and verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sharedauth "hojaruta-backend/internal/shared/auth"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/usuarios"
)

var (
	ErrInvalidCredentials  = errors.New("credenciales inválidas")
	ErrInvalidRefreshToken = errors.New("refresh token inválido")
	ErrMissingCredentials  = errors.New("usuario y contraseña son requeridos")
)

// UserStore is the subset of the user repository sessions need.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (usuarios.Usuario, error)
	GetByUsername(ctx context.Context, username string) (usuarios.Usuario, error)
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// Session is the token pair handed to a signed-in user.
type Session struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refreshToken"`
	ExpiresIn    int64            `json:"expiresIn"`
	Usuario      usuarios.Usuario `json:"usuario"`
}

// Service signs users in and rotates their tokens.
type Service struct {
	Users  UserStore
	Tokens *sharedauth.Issuer
	Now    func() time.Time
}

// NewService constructs a Service.
func NewService(users UserStore, tokens *sharedauth.Issuer) *Service {
	return &Service{Users: users, Tokens: tokens, Now: time.Now}
}

// Login checks the credentials and issues a session.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, usuarios.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !sharedauth.CheckPassword(u.PasswordHash, password) {
		telemetry.Warn("auth.login_failed", map[string]any{"user_id": u.ID})
		return Session{}, ErrInvalidCredentials
	}

	if err := s.Users.TouchLastAccess(ctx, u.ID, s.now()); err != nil {
		telemetry.Warn("auth.touch_last_access_failed", map[string]any{"user_id": u.ID, "error": err})
	}
	telemetry.Info("auth.login", map[string]any{"user_id": u.ID, "rol": u.Rol})
	return s.issue(u)
}

// Refresh validates a refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, ErrInvalidRefreshToken
	}
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	u, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, usuarios.ErrNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}
	if !u.Activo {
		return Session{}, ErrInvalidRefreshToken
	}
	return s.issue(u)
}

// Current returns the user behind an authenticated request.
func (s *Service) Current(ctx context.Context, userID int64) (usuarios.Usuario, error) {
	return s.Users.GetByID(ctx, userID)
}

func (s *Service) issue(u usuarios.Usuario) (Session, error) {
	token, err := s.Tokens.Sign(u.ID, u.Username, u.Rol)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.Tokens.SignRefresh(u.ID, u.Username)
	if err != nil {
		return Session{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Session{
		Token:        token,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.Tokens.AccessTTL().Seconds()),
		Usuario:      u,
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
