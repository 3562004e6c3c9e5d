package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/auth"
	"hojaruta-backend/internal/shared/server/respond"
)

const (
	userIDKey   = "userId"
	usernameKey = "username"
	userRolKey  = "userRol"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Identity is the authenticated caller.
type Identity struct {
	UserID   int64
	Username string
	Rol      string
}

// Auth requires a bearer access token and stores the caller identity in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			respond.Error(c, http.StatusUnauthorized, "NO_TOKEN", "Token de acceso requerido", nil)
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "INVALID_FORMAT", "Formato de token inválido", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "INVALID_FORMAT", "Formato de token inválido", nil)
			return
		}

		claims, err := verifier.Verify(token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrTokenExpired):
			respond.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expirado", nil)
			return
		case errors.Is(err, auth.ErrInvalidStructure):
			respond.Error(c, http.StatusForbidden, "INVALID_STRUCTURE", "Estructura de token inválida", nil)
			return
		default:
			respond.Error(c, http.StatusForbidden, "INVALID_TOKEN", "Token inválido", nil)
			return
		}

		SetIdentity(c, Identity{UserID: claims.UserID, Username: claims.Username, Rol: claims.Rol})
		c.Next()
	}
}

// SetIdentity stores id on the request context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(userIDKey, id.UserID)
	c.Set(usernameKey, id.Username)
	c.Set(userRolKey, strings.ToLower(strings.TrimSpace(id.Rol)))
}

// IdentityFromContext returns the identity stored by Auth.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	if c == nil {
		return Identity{}, false
	}
	id := UserIDFromContext(c)
	if id == 0 {
		return Identity{}, false
	}
	return Identity{
		UserID:   id,
		Username: c.GetString(usernameKey),
		Rol:      c.GetString(userRolKey),
	}, true
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) int64 {
	if c == nil {
		return 0
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(int64); ok {
		return id
	}
	return 0
}

// RolFromContext fetches the caller's role.
func RolFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userRolKey)
}
