package historial

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

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

// RegisterRoutes attaches activity log routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/historial")
	g.GET("", h.list)
	g.GET("/categorias", h.categorias)
	g.GET("/estadisticas", h.estadisticas)
	g.POST("", middleware.RequireWriteAccess(), h.registrar)
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := params.Page(c, 50, 500)
	list, err := h.Svc.List(c.Request.Context(), strings.TrimSpace(c.Query("tipo")), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "data": list, "total": len(list)})
}

func (h *Handler) categorias(c *gin.Context) {
	cats, err := h.Svc.Categorias(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "data": cats})
}

func (h *Handler) estadisticas(c *gin.Context) {
	st, dias, err := h.Svc.Estadisticas(c.Request.Context(), params.QueryInt(c, "periodo", 7))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "data": st, "periodo": fmt.Sprintf("%d días", dias)})
}

func (h *Handler) registrar(c *gin.Context) {
	var in RegistrarInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	a, err := h.Svc.Registrar(c.Request.Context(), in, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"success": true, "message": "Actividad registrada exitosamente", "data": a})
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidInput) {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
		return
	}
	respond.Internal(c, "Error al procesar el historial", err)
}
