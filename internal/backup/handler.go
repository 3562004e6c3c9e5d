package backup

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
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

// RegisterRoutes attaches the admin-only backup routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/backup", middleware.RequireAdmin())
	g.GET("/info", h.info)
	g.GET("/crear", h.create)
	g.GET("/archivos", h.archives)
	g.GET("/archivos/*key", h.download)
}

func (h *Handler) info(c *gin.Context) {
	info, err := h.Svc.Info(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, info)
}

func (h *Handler) create(c *gin.Context) {
	d, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.NoCache(c)
	c.Header("Content-Disposition", `attachment; filename="`+d.FileName+`"`)
	c.Header("Content-Length", strconv.Itoa(len(d.Content)))
	if d.Archived {
		c.Header("X-Backup-Key", d.Key)
	}
	c.Data(http.StatusOK, "application/sql", d.Content)
}

func (h *Handler) archives(c *gin.Context) {
	list, err := h.Svc.Archives(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true, "archivos": list, "total": len(list)})
}

func (h *Handler) download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.Svc.OpenArchive(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()
	respond.NoCache(c)
	c.DataFromReader(http.StatusOK, -1, "application/sql", rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + path.Base(key) + `"`,
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "BACKUP_UNAVAILABLE", "El respaldo requiere una base de datos", nil)
	case errors.Is(err, ErrNoArchive):
		respond.Error(c, http.StatusServiceUnavailable, "BACKUP_UNAVAILABLE", "No hay almacenamiento de respaldos configurado", nil)
	case errors.Is(err, ErrInvalidKey):
		respond.Error(c, http.StatusBadRequest, "INVALID_INPUT", "Nombre de respaldo inválido", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "Respaldo no encontrado", nil)
	default:
		respond.Internal(c, "Error al generar backup", err)
	}
}
