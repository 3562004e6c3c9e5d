package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/respond"
)

var (
	// WriteRoles may modify documents.
	WriteRoles = []string{"desarrollador", "admin", "administrador", "secretaria"}
	// AdminRoles may manage users, units, progress corrections and backups.
	AdminRoles = []string{"desarrollador", "admin", "administrador"}
)

// HasRole reports whether rol is one of allowed, ignoring case.
func HasRole(rol string, allowed ...string) bool {
	rol = strings.ToLower(strings.TrimSpace(rol))
	if rol == "" {
		return false
	}
	for _, a := range allowed {
		if rol == a {
			return true
		}
	}
	return false
}

// RequireRoles rejects callers whose role is not listed. Must run after Auth.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rol := RolFromContext(c)
		if !HasRole(rol, allowed...) {
			respond.Error(c, http.StatusForbidden, "FORBIDDEN", "No tiene permisos para realizar esta acción", gin.H{
				"rol":              rol,
				"roles_permitidos": allowed,
			})
			return
		}
		c.Next()
	}
}

// RequireWriteAccess allows document writers.
func RequireWriteAccess() gin.HandlerFunc {
	return RequireRoles(WriteRoles...)
}

// RequireAdmin allows administrators.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(AdminRoles...)
}
