package usuarios

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("usuario no encontrado")
	ErrInvalidInput     = errors.New("datos de usuario inválidos")
	ErrDuplicate        = errors.New("el nombre de usuario ya existe")
	ErrInvalidReference = errors.New("rol o unidad inexistente")
)

// Usuario is an account that can sign in and act on documents.
type Usuario struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	NombreCompleto string     `json:"nombre_completo"`
	Email          string     `json:"email"`
	Cargo          string     `json:"cargo"`
	RolID          int64      `json:"rol_id"`
	Rol            string     `json:"rol"`
	UnidadID       int64      `json:"unidad_id,omitempty"`
	UnidadNombre   string     `json:"unidad_nombre,omitempty"`
	Activo         bool       `json:"activo"`
	UltimoAcceso   *time.Time `json:"ultimo_acceso,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Rol is a named permission level.
type Rol struct {
	ID          int64  `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
}

// Filter narrows user listings.
type Filter struct {
	UnidadID        int64
	IncludeInactive bool
}

// Update carries a partial user update. PasswordHash is set by the service.
type Update struct {
	NombreCompleto *string
	Email          *string
	Cargo          *string
	RolID          *int64
	UnidadID       *int64
	Activo         *bool
	PasswordHash   *string
}

func (u Update) empty() bool {
	return u.NombreCompleto == nil && u.Email == nil && u.Cargo == nil && u.RolID == nil &&
		u.UnidadID == nil && u.Activo == nil && u.PasswordHash == nil
}

// DefaultRoles mirrors the seeded roles table.
var DefaultRoles = []Rol{
	{ID: 1, Nombre: "desarrollador", Descripcion: "Acceso total al sistema"},
	{ID: 2, Nombre: "admin", Descripcion: "Administrador del sistema"},
	{ID: 3, Nombre: "administrador", Descripcion: "Administrador de unidades y usuarios"},
	{ID: 4, Nombre: "secretaria", Descripcion: "Registro y seguimiento de hojas de ruta"},
	{ID: 5, Nombre: "usuario", Descripcion: "Consulta y recepción de envíos"},
}
