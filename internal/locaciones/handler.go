package locaciones

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

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

// RegisterPublicRoutes attaches the catalog lookups used by dropdowns.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/locaciones", h.list)
	rg.GET("/destinos", h.destinos)
}

// RegisterRoutes attaches the catalog writes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/locaciones", h.create("locacion", "La locación ya existe"))
	rg.POST("/destinos", h.create("destino", "El destino ya existe"))
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Internal(c, "Error al obtener locaciones", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "locaciones": GroupByTipo(list), "flat": list, "total": len(list)})
}

func (h *Handler) destinos(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Internal(c, "Error al obtener la lista de destinos", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "destinos": GroupDestinos(list), "flat": list, "total": len(list)})
}

func (h *Handler) create(key, duplicate string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
			return
		}
		l, err := h.Svc.Create(c.Request.Context(), in)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "El nombre es requerido", nil)
			case errors.Is(err, ErrDuplicate):
				respond.Error(c, http.StatusConflict, "CONFLICT", duplicate, nil)
			default:
				respond.Internal(c, "Error al crear locación", err)
			}
			return
		}
		respond.Created(c, gin.H{"success": true, key: l})
	}
}
