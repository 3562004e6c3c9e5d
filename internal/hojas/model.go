package hojas

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("hoja de ruta no encontrada")
	ErrInvalidInput = errors.New("datos de hoja de ruta inválidos")
	ErrDuplicate    = errors.New("el número de hoja de ruta ya existe")
)

// Estado is the routing state of a document.
type Estado string

const (
	EstadoPendiente  Estado = "pendiente"
	EstadoEnviada    Estado = "enviada"
	EstadoRecibida   Estado = "recibida"
	EstadoRespondida Estado = "respondida"
	EstadoEnProceso  Estado = "en_proceso"
	EstadoFinalizada Estado = "finalizada"
	EstadoArchivada  Estado = "archivada"
)

// ParseEstado validates a document state.
func ParseEstado(raw string) (Estado, bool) {
	e := Estado(strings.ToLower(strings.TrimSpace(raw)))
	switch e {
	case EstadoPendiente, EstadoEnviada, EstadoRecibida, EstadoRespondida, EstadoEnProceso, EstadoFinalizada, EstadoArchivada:
		return e, true
	}
	return "", false
}

// Compliance states stored in estado_cumplimiento.
const (
	CumplimientoPendiente  = "pendiente"
	CumplimientoEnProceso  = "en_proceso"
	CumplimientoCompletado = "completado"
	CumplimientoVencido    = "vencido"
)

// ValidCumplimiento reports whether s is a known compliance state.
func ValidCumplimiento(s string) bool {
	switch s {
	case CumplimientoPendiente, CumplimientoEnProceso, CumplimientoCompletado, CumplimientoVencido:
		return true
	}
	return false
}

// cumplimientoFor maps a document state onto its compliance state. States
// without a mapping leave the compliance state unchanged.
func cumplimientoFor(e Estado) (string, bool) {
	switch e {
	case EstadoPendiente:
		return CumplimientoPendiente, true
	case EstadoEnviada, EstadoEnProceso:
		return CumplimientoEnProceso, true
	case EstadoFinalizada, EstadoArchivada:
		return CumplimientoCompletado, true
	}
	return "", false
}

// Defaults for new documents.
const (
	DefaultUbicacion   = "SEDEGES - Sede Central"
	DefaultResponsable = "Sistema SEDEGES"
	DefaultPrioridad   = "rutina"
)

// Hoja is a hoja de ruta: the tracked document record.
type Hoja struct {
	ID                  int64          `json:"id"`
	NumeroHR            string         `json:"numero_hr"`
	Referencia          string         `json:"referencia"`
	Procedencia         string         `json:"procedencia"`
	NombreSolicitante   string         `json:"nombre_solicitante"`
	TelefonoCelular     string         `json:"telefono_celular"`
	FechaDocumento      string         `json:"fecha_documento,omitempty"`
	FechaIngreso        time.Time      `json:"fecha_ingreso"`
	FechaLimite         string         `json:"fecha_limite,omitempty"`
	Cite                string         `json:"cite"`
	NumeroFojas         int            `json:"numero_fojas"`
	Prioridad           string         `json:"prioridad"`
	Estado              Estado         `json:"estado"`
	EstadoCumplimiento  string         `json:"estado_cumplimiento"`
	Observaciones       string         `json:"observaciones"`
	UbicacionActual     string         `json:"ubicacion_actual"`
	ResponsableActual   string         `json:"responsable_actual"`
	UnidadActualID      int64          `json:"unidad_actual_id,omitempty"`
	UsuarioCreadorID    int64          `json:"usuario_creador_id,omitempty"`
	Detalles            map[string]any `json:"detalles"`
	FechaCompletado     *time.Time     `json:"fecha_completado,omitempty"`
	Activo              bool           `json:"activo"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DiasParaVencimiento *int           `json:"dias_para_vencimiento"`
	AlertaVencimiento   string         `json:"alerta_vencimiento,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	NumeroHR           *string
	Referencia         *string
	Procedencia        *string
	NombreSolicitante  *string
	TelefonoCelular    *string
	FechaDocumento     *string
	FechaLimite        *string
	Cite               *string
	NumeroFojas        *int
	Prioridad          *string
	Estado             *Estado
	EstadoCumplimiento *string
	Observaciones      *string
	UbicacionActual    *string
	ResponsableActual  *string
	UnidadActualID     *int64
	Detalles           map[string]any
	FechaCompletado    *time.Time
}

// Filter narrows document listings.
type Filter struct {
	Query              string
	EstadoCumplimiento string
	IncluirCompletadas bool
	// Today is the local date used for deadline ordering.
	Today  string
	Limit  int
	Offset int
}

// Stats summarizes documents for the dashboard.
type Stats struct {
	Total       int `json:"total"`
	Pendientes  int `json:"pendientes"`
	EnProceso   int `json:"en_proceso"`
	Completadas int `json:"completadas"`
	Vencidas    int `json:"vencidas"`
	Atrasadas   int `json:"atrasadas"`
	Criticas    int `json:"criticas"`
	PorVencer   int `json:"proximas_vencer"`
}

const dateLayout = "2006-01-02"

// daysUntil returns the whole days from today to fechaLimite.
func daysUntil(fechaLimite, today string) (int, bool) {
	if fechaLimite == "" || today == "" {
		return 0, false
	}
	limit, err := time.Parse(dateLayout, fechaLimite)
	if err != nil {
		return 0, false
	}
	now, err := time.Parse(dateLayout, today)
	if err != nil {
		return 0, false
	}
	return int(limit.Sub(now).Hours() / 24), true
}

// alertFor labels a deadline distance.
func alertFor(dias int) string {
	switch {
	case dias < 0:
		return "Vencida"
	case dias <= 3:
		return "Crítica"
	case dias <= 7:
		return "Próxima a vencer"
	default:
		return "Normal"
	}
}

// annotate fills the computed deadline fields.
func annotate(h *Hoja, today string) {
	h.DiasParaVencimiento = nil
	h.AlertaVencimiento = ""
	if d, ok := daysUntil(h.FechaLimite, today); ok {
		h.DiasParaVencimiento = &d
		h.AlertaVencimiento = alertFor(d)
	}
}

// normalizeDate accepts "2006-01-02" or an RFC 3339 timestamp.
func normalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	if len(raw) >= len(dateLayout) {
		if _, err := time.Parse(dateLayout, raw[:len(dateLayout)]); err == nil {
			return raw[:len(dateLayout)], true
		}
	}
	return "", false
}
