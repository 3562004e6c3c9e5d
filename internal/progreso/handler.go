package progreso

import (
	"errors"
	"fmt"
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

// RegisterRoutes attaches progress routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/progreso")
	g.POST("/agregar", h.add)
	g.POST("/agregar-multiple", h.addMany)
	g.GET("/historial/:hoja_ruta_id", h.history)
	g.GET("/ultimo/:hoja_ruta_id", h.latest)
	g.GET("/respuestas/:hoja_ruta_id", h.responses)
	g.GET("", h.dashboard)
	g.PUT("/:id", middleware.RequireAdmin(), h.update)
	g.DELETE("/:id", middleware.RequireAdmin(), h.delete)
}

func (h *Handler) add(c *gin.Context) {
	var in AddInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("hojaId", in.HojaRutaID)
	e, err := h.Svc.Add(c.Request.Context(), in, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"success": true, "message": "Progreso registrado exitosamente", "progreso": e})
}

type addManyRequest struct {
	Hojas []AddInput `json:"hojas"`
}

func (h *Handler) addMany(c *gin.Context) {
	var req addManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	res, err := h.Svc.AddMany(c.Request.Context(), req.Hojas, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{
		"success":     len(res.Errores) == 0,
		"message":     fmt.Sprintf("%d progresos registrados, %d errores", len(res.Registrados), len(res.Errores)),
		"registrados": res.Registrados,
		"errores":     res.Errores,
	})
}

func (h *Handler) history(c *gin.Context) {
	id, ok := params.ID(c, "hoja_ruta_id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	list, err := h.Svc.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "total": len(list), "historial": list})
}

func (h *Handler) latest(c *gin.Context) {
	id, ok := params.ID(c, "hoja_ruta_id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	e, err := h.Svc.Latest(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "progreso": e})
}

func (h *Handler) responses(c *gin.Context) {
	id, ok := params.ID(c, "hoja_ruta_id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	list, err := h.Svc.Responses(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "total": len(list), "respuestas": list})
}

func (h *Handler) dashboard(c *gin.Context) {
	limit, offset := params.Page(c, 50, 200)
	list, total, err := h.Svc.Dashboard(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "total": total, "progreso": list})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de progreso inválido", nil)
		return
	}
	var p Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	e, err := h.Svc.Update(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Progreso actualizado", "progreso": e})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de progreso inválido", nil)
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Progreso eliminado"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrDocumentNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Hoja de ruta no encontrada", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "No se encontró progreso", nil)
	default:
		respond.Internal(c, "Error al procesar el progreso", err)
	}
}
