package locaciones

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("datos de locación inválidos")
	ErrDuplicate    = errors.New("la locación ya existe")
)

// Catalog types. Rows with an empty tipo read as TipoCentroAcogida.
const (
	TipoCentroAcogida  = "centro_acogida"
	TipoDireccion      = "direccion"
	TipoDepartamento   = "departamento"
	TipoAdministrativo = "administrativo"
	TipoExterno        = "externo"
	TipoOtros          = "otros"
)

// destinoGroups are the buckets of the destination picker, always present
// in its response.
var destinoGroups = []string{TipoCentroAcogida, TipoDireccion, TipoDepartamento, TipoAdministrativo, TipoExterno, TipoOtros}

// Locacion is an entry of the physical locations catalog documents can be
// sent to.
type Locacion struct {
	ID          int64     `json:"id"`
	Nombre      string    `json:"nombre"`
	Descripcion string    `json:"descripcion"`
	Tipo        string    `json:"tipo"`
	Activo      bool      `json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Tipo        string `json:"tipo"`
	Activo      *bool  `json:"activo"`
}

// GroupByTipo buckets locations by their lowercased tipo.
func GroupByTipo(list []Locacion) map[string][]Locacion {
	out := map[string][]Locacion{}
	for _, l := range list {
		tipo := strings.ToLower(l.Tipo)
		if tipo == "" {
			tipo = TipoOtros
		}
		out[tipo] = append(out[tipo], l)
	}
	return out
}

// GroupDestinos buckets locations into the fixed destination groups. An
// unknown tipo is placed by the words in its name.
func GroupDestinos(list []Locacion) map[string][]Locacion {
	out := make(map[string][]Locacion, len(destinoGroups))
	for _, g := range destinoGroups {
		out[g] = []Locacion{}
	}
	for _, l := range list {
		tipo := strings.ToLower(l.Tipo)
		if _, known := out[tipo]; known {
			out[tipo] = append(out[tipo], l)
			continue
		}
		g := guessGroup(l.Nombre)
		out[g] = append(out[g], l)
	}
	return out
}

var direccionWords = []string{"dirección", "direccion", "departamento", "secretaría", "secretaria", "unidad", "jefatura", "subdirección"}

func guessGroup(nombre string) string {
	n := strings.ToLower(nombre)
	if strings.Contains(n, "centro") || strings.Contains(n, "instituto") {
		return TipoCentroAcogida
	}
	for _, w := range direccionWords {
		if strings.Contains(n, w) {
			return TipoDireccion
		}
	}
	return TipoOtros
}
