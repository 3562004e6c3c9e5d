package envios

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("envío no encontrado")
	ErrInvalidInput      = errors.New("datos de envío inválidos")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrUnitNotFound      = errors.New("unidad no encontrada")
	ErrDocumentNotFound  = errors.New("hoja de ruta no encontrada")
	ErrInvalidReference  = errors.New("referencia inválida")
	ErrNoUnit            = errors.New("el usuario no tiene unidad asignada")
)

// Envio is one transmission of a document to a unit.
type Envio struct {
	ID                  int64           `json:"id"`
	HojaID              int64           `json:"hoja_id"`
	UsuarioID           int64           `json:"usuario_id,omitempty"`
	UnidadDestinoID     int64           `json:"unidad_destino_id,omitempty"`
	DestinatarioNombre  string          `json:"destinatario_nombre"`
	Observaciones       string          `json:"observaciones"`
	Instrucciones       json.RawMessage `json:"instrucciones"`
	Estado              Estado          `json:"estado"`
	Respuesta           string          `json:"respuesta,omitempty"`
	RedirigidoAUnidadID int64           `json:"redirigido_a_unidad_id,omitempty"`
	RedirigidoPor       int64           `json:"redirigido_por,omitempty"`
	FechaEnvio          *time.Time      `json:"fecha_envio"`
	FechaRecepcion      *time.Time      `json:"fecha_recepcion"`
	FechaRespuesta      *time.Time      `json:"fecha_respuesta"`
	FechaRedireccion    *time.Time      `json:"fecha_redireccion"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	NumeroHR            string `json:"numero_hr,omitempty"`
	Referencia          string `json:"referencia,omitempty"`
	Procedencia         string `json:"procedencia,omitempty"`
	Prioridad           string `json:"prioridad,omitempty"`
	UnidadDestinoNombre string `json:"unidad_destino_nombre,omitempty"`
	UsuarioNombre       string `json:"usuario_nombre,omitempty"`
}

// Filter narrows dispatch listings.
type Filter struct {
	HojaID          int64
	UnidadDestinoID int64
	Estado          Estado
	Limit           int
	Offset          int
}

// Transition is the state change written by Repo.Transition. Only the
// fields relevant to the target state are stored.
type Transition struct {
	To            Estado
	At            time.Time
	Respuesta     string
	RedirigidoA   int64
	RedirigidoPor int64
}

var emptyInstrucciones = json.RawMessage(`[]`)

// normalizeInstrucciones keeps valid JSON and falls back to an empty list.
func normalizeInstrucciones(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" || !json.Valid(raw) {
		return emptyInstrucciones
	}
	return raw
}

// checkboxInstrucciones encodes the checked destinations of a form.
func checkboxInstrucciones(destinos []string) json.RawMessage {
	if len(destinos) == 0 {
		return emptyInstrucciones
	}
	b, err := json.Marshal(destinos)
	if err != nil {
		return emptyInstrucciones
	}
	return b
}
