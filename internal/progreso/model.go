package progreso

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("progreso no encontrado")
	ErrDocumentNotFound = errors.New("hoja de ruta no encontrada")
	ErrInvalidInput     = errors.New("datos de progreso inválidos")
)

// Action tags written to progreso_hojas_ruta.accion.
const (
	AccionActualizado       = "actualizado"
	AccionEnviado           = "enviado"
	AccionRecibido          = "recibido"
	AccionRespondido        = "respondido"
	AccionRedirigido        = "redirigido"
	AccionUbicacionCambiada = "ubicacion_cambiada"
	AccionCompletado        = "completado"
)

// responseActions are shown in the print preview of a document.
var responseActions = map[string]bool{
	AccionRecibido:     true,
	AccionRespondido:   true,
	AccionRedirigido:   true,
	AccionEnviado:      true,
	"enviado_a_unidad": true,
}

// Entry is one append-only location/action transition of a document.
type Entry struct {
	ID                  int64     `json:"id"`
	HojaRutaID          int64     `json:"hoja_ruta_id"`
	UbicacionAnterior   string    `json:"ubicacion_anterior"`
	UbicacionActual     string    `json:"ubicacion_actual"`
	Accion              string    `json:"accion"`
	ResponsableID       int64     `json:"responsable_id,omitempty"`
	UnidadOrigenID      int64     `json:"unidad_origen_id,omitempty"`
	UnidadDestinoID     int64     `json:"unidad_destino_id,omitempty"`
	Notas               string    `json:"notas"`
	Respuesta           string    `json:"respuesta,omitempty"`
	FechaRegistro       time.Time `json:"fecha_registro"`
	ResponsableNombre   string    `json:"responsable_nombre,omitempty"`
	UnidadDestinoNombre string    `json:"unidad_destino_nombre,omitempty"`
	NumeroHR            string    `json:"numero_hr,omitempty"`
}

// Patch is an administrative correction of an entry.
type Patch struct {
	UbicacionActual *string `json:"ubicacion_actual"`
	Notas           *string `json:"notas"`
	Respuesta       *string `json:"respuesta"`
}

func (p Patch) empty() bool {
	return p.UbicacionActual == nil && p.Notas == nil && p.Respuesta == nil
}

// Respuesta is a routing hop as printed on the hoja de ruta.
type Respuesta struct {
	Seccion        int       `json:"seccion"`
	Destino        string    `json:"destino"`
	FechaRecepcion time.Time `json:"fecha_recepcion"`
	Instrucciones  string    `json:"instrucciones"`
	Respuesta      string    `json:"respuesta"`
	Accion         string    `json:"accion"`
	Responsable    string    `json:"responsable"`
}
