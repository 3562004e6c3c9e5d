package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
	"hojaruta-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches a token-only /me endpoint for routers mounted
// without the user directory.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler echoes the identity carried by the access token without a
// database round trip.
func meHandler(c *gin.Context) {
	id, ok := middleware.IdentityFromContext(c)
	if !ok || id.UserID == 0 {
		respond.Error(c, http.StatusUnauthorized, "NO_TOKEN", "Token de acceso requerido", nil)
		return
	}
	respond.OK(c, gin.H{
		"userId":   id.UserID,
		"username": id.Username,
		"rol":      id.Rol,
	})
}
