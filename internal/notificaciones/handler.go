package notificaciones

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

// RegisterRoutes attaches notification routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/notificaciones")
	g.GET("", h.list)
	g.GET("/no-leidas/count", h.countUnread)
	g.PUT("/leer-todas", h.markAll)
	g.PUT("/:id/leer", h.markRead)
	g.POST("", middleware.RequireAdmin(), h.create)
	g.POST("/vencimientos", middleware.RequireAdmin(), h.sweep)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, offset := params.Page(c, 50, 200)
	list, err := h.Svc.List(c.Request.Context(), userID, params.QueryBool(c, "solo_no_leidas"), limit, offset)
	if err != nil {
		respond.Internal(c, "Error al obtener notificaciones", err)
		return
	}
	respond.NoCache(c)
	respond.OK(c, gin.H{"success": true, "notificaciones": list, "total": len(list)})
}

func (h *Handler) countUnread(c *gin.Context) {
	n, err := h.Svc.CountUnread(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Internal(c, "Error al contar notificaciones", err)
		return
	}
	respond.NoCache(c)
	respond.OK(c, gin.H{"success": true, "no_leidas": n})
}

func (h *Handler) markRead(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de notificación inválido", nil)
		return
	}
	if err := h.Svc.MarkRead(c.Request.Context(), id, middleware.UserIDFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Notificación marcada como leída"})
}

func (h *Handler) markAll(c *gin.Context) {
	n, err := h.Svc.MarkAllRead(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "actualizadas": n})
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	n, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"success": true, "notificacion": n})
}

func (h *Handler) sweep(c *gin.Context) {
	dias := params.QueryInt(c, "dias", DefaultReminderDays)
	n, err := h.Svc.SweepDeadlines(c.Request.Context(), dias)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "creadas": n, "dias": dias})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Notificación no encontrada", nil)
	default:
		respond.Internal(c, "Error al procesar la notificación", err)
	}
}
