package unidades

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("unidad no encontrada")
	ErrInvalidInput = errors.New("datos de unidad inválidos")
	ErrDuplicate    = errors.New("ya existe una unidad con ese nombre")
)

// Unidad is an organizational unit documents are routed to.
type Unidad struct {
	ID          int64     `json:"id"`
	Nombre      string    `json:"nombre"`
	Descripcion string    `json:"descripcion"`
	Responsable string    `json:"responsable"`
	Activo      bool      `json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update carries a partial unit update. Nil fields are left unchanged.
type Update struct {
	Nombre      *string `json:"nombre"`
	Descripcion *string `json:"descripcion"`
	Responsable *string `json:"responsable"`
	Activo      *bool   `json:"activo"`
}

func (u Update) empty() bool {
	return u.Nombre == nil && u.Descripcion == nil && u.Responsable == nil && u.Activo == nil
}
