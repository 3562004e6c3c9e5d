package usuarios

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
	"hojaruta-backend/internal/shared/server/params"
	"hojaruta-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.GET("/unidades/:id/usuarios", h.byUnit)

	g := rg.Group("/usuarios")
	g.GET("/roles", h.roles)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", middleware.RequireAdmin(), h.create)
	g.PUT("/:id", middleware.RequireAdmin(), h.update)
	g.DELETE("/:id", middleware.RequireAdmin(), h.deactivate)
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuario": u})
}

func (h *Handler) roles(c *gin.Context) {
	roles, err := h.Svc.Roles(c.Request.Context())
	if err != nil {
		respond.Internal(c, "Error al obtener roles", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "roles": roles})
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context(), Filter{
		UnidadID:        params.QueryInt64(c, "unidad_id"),
		IncludeInactive: params.QueryBool(c, "incluir_inactivos"),
	})
	if err != nil {
		respond.Internal(c, "Error al obtener usuarios", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuarios": list, "total": len(list)})
}

func (h *Handler) byUnit(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de unidad inválido", nil)
		return
	}
	list, err := h.Svc.ActiveInUnit(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuarios": list, "total": len(list)})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de usuario inválido", nil)
		return
	}
	u, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuario": u})
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"success": true, "usuario": u, "message": "Usuario creado exitosamente"})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de usuario inválido", nil)
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	u, err := h.Svc.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "usuario": u, "message": "Usuario actualizado"})
}

func (h *Handler) deactivate(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de usuario inválido", nil)
		return
	}
	if id == middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "No puede desactivar su propio usuario", nil)
		return
	}
	if err := h.Svc.Deactivate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Usuario desactivado"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrInvalidReference):
		respond.Error(c, http.StatusBadRequest, "INVALID_REFERENCE", "El rol o la unidad indicada no existe", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Usuario no encontrado", nil)
	case errors.Is(err, ErrDuplicate):
		respond.Error(c, http.StatusConflict, "CONFLICT", "El nombre de usuario ya existe", nil)
	default:
		respond.Internal(c, "Error al procesar el usuario", err)
	}
}
