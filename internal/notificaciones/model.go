package notificaciones

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("notificación no encontrada")
	ErrInvalidInput = errors.New("datos de notificación inválidos")
)

// Notification types.
const (
	TipoEnvioRecibido = "envio_recibido"
	TipoVencimiento   = "vencimiento"
	TipoCompletado    = "completado"
	TipoManual        = "manual"
)

// Notificacion is a message for one user about a document.
type Notificacion struct {
	ID         int64      `json:"id"`
	HojaRutaID int64      `json:"hoja_ruta_id,omitempty"`
	UsuarioID  int64      `json:"usuario_id"`
	Tipo       string     `json:"tipo"`
	Mensaje    string     `json:"mensaje"`
	Leida      bool       `json:"leida"`
	LeidaEn    *time.Time `json:"leida_en,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	NumeroHR   string     `json:"numero_hr,omitempty"`
}

// DueDocument is a document whose deadline is close.
type DueDocument struct {
	HojaID    int64
	CreadorID int64
	NumeroHR  string
	Dias      int
}
