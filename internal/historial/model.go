package historial

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidInput = errors.New("actividad inválida")

// Activity kinds.
const (
	TipoAnadido = "añadido"
	TipoEditado = "editado"
	TipoEnviado = "enviado"
)

// Tipos lists the activity kinds in display order.
var Tipos = []string{TipoAnadido, TipoEditado, TipoEnviado}

// ValidTipo reports whether t is a known activity kind.
func ValidTipo(t string) bool {
	for _, v := range Tipos {
		if v == t {
			return true
		}
	}
	return false
}

// Actividad is one entry of the activity log.
type Actividad struct {
	ID              int64           `json:"id"`
	Tipo            string          `json:"tipo"`
	HojaID          int64           `json:"hoja_id,omitempty"`
	NumeroHR        string          `json:"numero_hr,omitempty"`
	Referencia      string          `json:"referencia,omitempty"`
	Procedencia     string          `json:"procedencia,omitempty"`
	Destinatario    string          `json:"destinatario,omitempty"`
	Descripcion     string          `json:"descripcion"`
	UsuarioID       int64           `json:"usuario_id,omitempty"`
	UsuarioNombre   string          `json:"usuario_nombre,omitempty"`
	FechaActividad  time.Time       `json:"fecha_actividad"`
	DatosAnteriores json.RawMessage `json:"datos_anteriores,omitempty"`
	DatosNuevos     json.RawMessage `json:"datos_nuevos,omitempty"`
}

// Categorias holds the latest entries of each kind.
type Categorias struct {
	Anadidos []Actividad `json:"añadidos"`
	Editados []Actividad `json:"editados"`
	Enviados []Actividad `json:"enviados"`
}

// Stats counts entries per kind over a period.
type Stats struct {
	Anadidos int `json:"añadidos"`
	Editados int `json:"editados"`
	Enviados int `json:"enviados"`
	Total    int `json:"total"`
}

// RegistrarInput is the body of a manual entry.
type RegistrarInput struct {
	Tipo          string `json:"tipo"`
	HojaID        int64  `json:"hoja_id"`
	NumeroHR      string `json:"numero_hr"`
	Referencia    string `json:"referencia"`
	Procedencia   string `json:"procedencia"`
	Destinatario  string `json:"destinatario"`
	Descripcion   string `json:"descripcion"`
	UsuarioNombre string `json:"usuario_nombre"`
}
