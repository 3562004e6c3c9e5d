package hojas

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/progreso"
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

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/hojas-ruta")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/estadisticas/dashboard", h.stats)
	g.GET("/por-vencer/lista", h.dueSoon)
	g.GET("/dashboard/tiempo-real", h.realtime)
	g.GET("/:id", h.get)

	w := g.Group("", middleware.RequireWriteAccess())
	w.PUT("/:id", h.update)
	w.PATCH("/:id/completar", h.complete)
	w.PATCH("/:id/estado", h.setCumplimiento)
	w.PATCH("/:id/estado-completo", h.setEstado)
	w.PATCH("/:id/ubicacion", h.move)
}

func (h *Handler) create(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	hoja, err := h.Svc.Create(c.Request.Context(), body, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("hojaId", hoja.ID)
	respond.Created(c, gin.H{"success": true, "message": "Hoja de ruta creada exitosamente", "hoja": hoja})
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := params.Page(c, 100, 500)
	f := Filter{
		Query:              strings.TrimSpace(c.Query("query")),
		EstadoCumplimiento: strings.TrimSpace(c.Query("estado_cumplimiento")),
		IncluirCompletadas: c.Query("incluir_completadas") != "false",
		Limit:              limit,
		Offset:             offset,
	}
	list, total, err := h.Svc.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "total": total, "data": list})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	hoja, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	flat, err := flatten(hoja)
	if err != nil {
		respond.Internal(c, "Error al obtener la hoja de ruta", err)
		return
	}
	respond.OK(c, gin.H{"success": true, "hoja": flat})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	c.Set("hojaId", id)
	hoja, err := h.Svc.Update(c.Request.Context(), id, body, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Hoja de ruta actualizada", "hoja": hoja})
}

func (h *Handler) complete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	c.Set("hojaId", id)
	hoja, err := h.Svc.Complete(c.Request.Context(), id, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Hoja de ruta completada", "hoja": hoja})
}

type estadoRequest struct {
	Estado             string `json:"estado"`
	EstadoCumplimiento string `json:"estado_cumplimiento"`
}

func (h *Handler) setCumplimiento(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	var req estadoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	estado := req.EstadoCumplimiento
	if estado == "" {
		estado = req.Estado
	}
	hoja, err := h.Svc.SetCumplimiento(c.Request.Context(), id, estado)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Estado actualizado", "hoja": hoja})
}

func (h *Handler) setEstado(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	var req estadoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	hoja, err := h.Svc.SetEstado(c.Request.Context(), id, req.Estado, req.EstadoCumplimiento)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Estado actualizado", "hoja": hoja})
}

func (h *Handler) move(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de hoja de ruta inválido", nil)
		return
	}
	var in MoveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("hojaId", id)
	hoja, err := h.Svc.Move(c.Request.Context(), id, in, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Ubicación actualizada", "hoja": hoja})
}

func (h *Handler) stats(c *gin.Context) {
	s, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.NoCache(c)
	respond.OK(c, gin.H{"success": true, "estadisticas": s})
}

func (h *Handler) realtime(c *gin.Context) {
	rt, err := h.Svc.Realtime(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.NoCache(c)
	respond.OK(c, rt)
}

func (h *Handler) dueSoon(c *gin.Context) {
	dias := params.QueryInt(c, "dias", 7)
	limit, _ := params.Page(c, 10, 100)
	list, err := h.Svc.DueSoon(c.Request.Context(), dias, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "total": len(list), "data": list})
}

func bindBody(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return nil, false
	}
	return body, true
}

// flatten renders a document with its detalles lifted to the top level.
// Column values win over detail keys with the same name.
func flatten(hoja Hoja) (map[string]any, error) {
	raw, err := json.Marshal(hoja)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for k, v := range hoja.Detalles {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, progreso.ErrDocumentNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Hoja de ruta no encontrada", nil)
	case errors.Is(err, ErrDuplicate):
		respond.Error(c, http.StatusConflict, "CONFLICT", "El número de hoja de ruta ya existe", nil)
	default:
		respond.Internal(c, "Error al procesar la hoja de ruta", err)
	}
}
