package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/respond"
)

// Handler exposes the health endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches /api/health and /healthz.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/api/health", h.status)
	r.GET("/healthz", h.ready)
}

func (h *Handler) status(c *gin.Context) {
	respond.NoCache(c)
	respond.OK(c, h.Svc.Status())
}

func (h *Handler) ready(c *gin.Context) {
	respond.NoCache(c)
	r, ok := h.Svc.Check(c.Request.Context())
	if !ok {
		respond.JSON(c, http.StatusServiceUnavailable, r)
		return
	}
	respond.OK(c, r)
}
