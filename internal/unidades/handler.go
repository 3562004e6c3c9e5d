package unidades

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

// RegisterRoutes attaches unit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/unidades")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", middleware.RequireAdmin(), h.create)
	g.PUT("/:id", middleware.RequireAdmin(), h.update)
	g.DELETE("/:id", middleware.RequireAdmin(), h.deactivate)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context(), params.QueryBool(c, "incluir_inactivas"))
	if err != nil {
		respond.Internal(c, "Error al obtener unidades", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "unidades": list, "total": len(list)})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de unidad inválido", nil)
		return
	}
	u, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "unidad": u})
}

type createRequest struct {
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Responsable string `json:"responsable"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), Unidad{Nombre: req.Nombre, Descripcion: req.Descripcion, Responsable: req.Responsable})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"success": true, "unidad": u, "message": "Unidad creada exitosamente"})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de unidad inválido", nil)
		return
	}
	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	u, err := h.Svc.Update(c.Request.Context(), id, upd)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "unidad": u, "message": "Unidad actualizada"})
}

func (h *Handler) deactivate(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de unidad inválido", nil)
		return
	}
	if err := h.Svc.Deactivate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Unidad desactivada"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Unidad no encontrada", nil)
	case errors.Is(err, ErrDuplicate):
		respond.Error(c, http.StatusConflict, "CONFLICT", "Ya existe una unidad con ese nombre", nil)
	default:
		respond.Internal(c, "Error al procesar la unidad", err)
	}
}
