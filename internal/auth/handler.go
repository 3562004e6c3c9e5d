package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
	"hojaruta-backend/internal/shared/server/respond"
	"hojaruta-backend/internal/usuarios"
)

// Handler wires HTTP handlers to the session service.
type Handler struct {
	Svc *Service
	// LoginGuard runs before the login handler, typically a stricter rate limit.
	LoginGuard gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches the routes reachable without a token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	login := []gin.HandlerFunc{h.login}
	if h.LoginGuard != nil {
		login = append([]gin.HandlerFunc{h.LoginGuard}, login...)
	}
	rg.POST("/auth/login", login...)
	rg.POST("/auth/refresh", h.refresh)
}

// RegisterRoutes attaches the routes that require a token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/verify", h.verify)
	rg.POST("/auth/logout", h.logout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	session, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Usuario y contraseña son requeridos", nil)
		case errors.Is(err, ErrInvalidCredentials):
			respond.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Usuario o contraseña incorrectos", nil)
		default:
			respond.Internal(c, "Error al iniciar sesión", err)
		}
		return
	}
	respond.OK(c, gin.H{
		"success":      true,
		"message":      "Inicio de sesión exitoso",
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"expiresIn":    session.ExpiresIn,
		"usuario":      session.Usuario,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	session, err := h.Svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			respond.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token inválido o expirado", nil)
			return
		}
		respond.Internal(c, "Error al renovar la sesión", err)
		return
	}
	respond.OK(c, gin.H{
		"success":      true,
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"expiresIn":    session.ExpiresIn,
	})
}

func (h *Handler) verify(c *gin.Context) {
	u, err := h.Svc.Current(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, usuarios.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Usuario no encontrado", nil)
			return
		}
		respond.Internal(c, "Error al verificar la sesión", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuario": u})
}

func (h *Handler) logout(c *gin.Context) {
	respond.OK(c, gin.H{"success": true, "message": "Sesión cerrada"})
}
