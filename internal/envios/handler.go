package envios

import (
	"errors"
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

// RegisterPublicRoutes attaches the unauthenticated lookups.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/enviar/destinos", h.destinations)
}

// RegisterRoutes attaches dispatch routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/enviar")
	g.GET("", h.list)
	g.GET("/mi-unidad", h.myUnit)
	g.POST("", h.create)
	g.POST("/a-unidad", h.sendToUnit)
	g.PUT("/:id/estado", h.updateState)
	g.PUT("/:id/recibir", h.receive)
	g.PUT("/:id/responder", h.answer)
	g.PUT("/:id/redirigir", h.redirect)
}

func (h *Handler) sendToUnit(c *gin.Context) {
	var in SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("hojaId", in.HojaID)
	c.Set("transition", "enviar")
	out, err := h.Svc.SendToUnit(c.Request.Context(), in, middleware.UserIDFromContext(c), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("envioId", out.Envio.ID)
	respond.Created(c, gin.H{
		"success":     true,
		"envio":       out.Envio,
		"mensaje":     "Documento enviado a " + out.Unidad,
		"seccion":     out.Ledger.SeccionValue(),
		"ledger_full": out.Ledger.Full,
	})
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	e, err := h.Svc.Create(c.Request.Context(), in, middleware.UserIDFromContext(c), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("envioId", e.ID)
	mensaje := "Envío registrado correctamente"
	if e.Estado == EstadoEnviado {
		mensaje = "Documento enviado exitosamente a: " + e.DestinatarioNombre
	}
	respond.Created(c, gin.H{"success": true, "envio": e, "mensaje": mensaje})
}

func (h *Handler) receive(c *gin.Context) {
	id, ok := envioID(c)
	if !ok {
		return
	}
	c.Set("transition", "recibir")
	out, err := h.Svc.Receive(c.Request.Context(), id, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"success":          true,
		"envio":            out.Envio,
		"seccion":          out.Ledger.SeccionValue(),
		"sin_coincidencia": out.Ledger.NoMatch,
	})
}

type respondRequest struct {
	Respuesta string `json:"respuesta"`
}

func (h *Handler) answer(c *gin.Context) {
	id, ok := envioID(c)
	if !ok {
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("transition", "responder")
	out, err := h.Svc.Respond(c.Request.Context(), id, req.Respuesta, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"success":     true,
		"envio":       out.Envio,
		"seccion":     out.Ledger.SeccionValue(),
		"ledger_full": out.Ledger.Full,
	})
}

func (h *Handler) redirect(c *gin.Context) {
	id, ok := envioID(c)
	if !ok {
		return
	}
	var in RedirectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("transition", "redirigir")
	out, err := h.Svc.Redirect(c.Request.Context(), id, in, middleware.UserIDFromContext(c), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"success":       true,
		"nuevoEnvio":    out.Nuevo,
		"envioOriginal": out.Original,
		"seccion":       out.Ledger.SeccionValue(),
		"ledger_full":   out.Ledger.Full,
	})
}

type stateRequest struct {
	Estado string `json:"estado"`
}

func (h *Handler) updateState(c *gin.Context) {
	id, ok := envioID(c)
	if !ok {
		return
	}
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Cuerpo de la solicitud inválido", nil)
		return
	}
	c.Set("transition", "estado:"+strings.ToLower(req.Estado))
	e, err := h.Svc.UpdateState(c.Request.Context(), id, req.Estado)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "envio": e})
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := params.Page(c, 100, 500)
	f := Filter{
		HojaID:          params.QueryInt64(c, "hoja_id"),
		UnidadDestinoID: params.QueryInt64(c, "unidad_destino_id"),
		Limit:           limit,
		Offset:          offset,
	}
	if raw := c.Query("estado"); raw != "" {
		estado, ok := ParseEstado(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Estado de envío inválido", nil)
			return
		}
		f.Estado = estado
	}
	list, err := h.Svc.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "envios": list})
}

func (h *Handler) myUnit(c *gin.Context) {
	respond.NoCache(c)
	limit, offset := params.Page(c, 200, 500)
	list, err := h.Svc.ForUserUnit(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "envios": list})
}

func (h *Handler) destinations(c *gin.Context) {
	list, err := h.Svc.Destinations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "destinos": list})
}

func envioID(c *gin.Context) (int64, bool) {
	id, ok := params.ID(c, "id")
	if !ok {
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "ID de envío inválido", nil)
		return 0, false
	}
	c.Set("envioId", id)
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrInvalidReference):
		field := strings.TrimSuffix(err.Error(), ": "+ErrInvalidReference.Error())
		respond.Error(c, http.StatusBadRequest, "INVALID_REFERENCE", referenceMessage(field), gin.H{"campo": field})
	case errors.Is(err, ErrNoUnit):
		respond.Error(c, http.StatusBadRequest, "NO_UNIT", "El usuario no tiene unidad asignada", nil)
	case errors.Is(err, ErrUnitNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Unidad no encontrada", nil)
	case errors.Is(err, ErrDocumentNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Hoja de ruta no encontrada", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Envío no encontrado", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		respond.Internal(c, "Error al procesar el envío", err)
	}
}

func referenceMessage(field string) string {
	switch field {
	case "hoja_id":
		return "La hoja de ruta especificada no existe"
	case "unidad_destino_id", "redirigido_a_unidad_id":
		return "La unidad especificada no existe"
	case "usuario_id", "redirigido_por":
		return "El usuario especificado no existe"
	}
	return "Referencia inválida"
}
