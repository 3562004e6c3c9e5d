package usuarios

import (
	"context"
	"fmt"
	"strings"

	"hojaruta-backend/internal/shared/auth"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// DefaultRol is assigned when a new user names no role.
const DefaultRol = "usuario"

// Service contains user business rules.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// CreateInput is the data accepted when creating a user.
type CreateInput struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	NombreCompleto string `json:"nombre_completo"`
	Email          string `json:"email"`
	Cargo          string `json:"cargo"`
	RolID          int64  `json:"rol_id"`
	Rol            string `json:"rol"`
	UnidadID       int64  `json:"unidad_id"`
}

// UpdateInput is the data accepted when updating a user.
type UpdateInput struct {
	NombreCompleto *string `json:"nombre_completo"`
	Email          *string `json:"email"`
	Cargo          *string `json:"cargo"`
	RolID          *int64  `json:"rol_id"`
	Rol            *string `json:"rol"`
	UnidadID       *int64  `json:"unidad_id"`
	Activo         *bool   `json:"activo"`
	Password       *string `json:"password"`
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (Usuario, error) {
	if id <= 0 {
		return Usuario{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns users matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Usuario, error) {
	return s.Repo.List(ctx, f)
}

// ActiveInUnit returns the active users of a unit.
func (s *Service) ActiveInUnit(ctx context.Context, unidadID int64) ([]Usuario, error) {
	if unidadID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.Repo.List(ctx, Filter{UnidadID: unidadID})
}

// Roles lists the available roles.
func (s *Service) Roles(ctx context.Context) ([]Rol, error) {
	return s.Repo.Roles(ctx)
}

// Create validates in, hashes the password and stores the user.
func (s *Service) Create(ctx context.Context, in CreateInput) (Usuario, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.NombreCompleto = strings.TrimSpace(in.NombreCompleto)
	switch {
	case in.Username == "":
		return Usuario{}, fmt.Errorf("username es requerido: %w", ErrInvalidInput)
	case len(in.Password) < MinPasswordLength:
		return Usuario{}, fmt.Errorf("la contraseña debe tener al menos %d caracteres: %w", MinPasswordLength, ErrInvalidInput)
	case in.NombreCompleto == "":
		return Usuario{}, fmt.Errorf("nombre_completo es requerido: %w", ErrInvalidInput)
	}

	rolID := in.RolID
	if rolID == 0 {
		name := in.Rol
		if strings.TrimSpace(name) == "" {
			name = DefaultRol
		}
		id, err := s.roleID(ctx, name)
		if err != nil {
			return Usuario{}, err
		}
		rolID = id
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Usuario{}, fmt.Errorf("hash password: %w", err)
	}
	return s.Repo.Create(ctx, Usuario{
		Username:       in.Username,
		PasswordHash:   hash,
		NombreCompleto: in.NombreCompleto,
		Email:          strings.TrimSpace(in.Email),
		Cargo:          strings.TrimSpace(in.Cargo),
		RolID:          rolID,
		UnidadID:       in.UnidadID,
	})
}

// Update applies a partial update, rehashing the password when one is given.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Usuario, error) {
	upd := Update{
		NombreCompleto: in.NombreCompleto,
		Email:          in.Email,
		Cargo:          in.Cargo,
		RolID:          in.RolID,
		UnidadID:       in.UnidadID,
		Activo:         in.Activo,
	}
	if upd.RolID == nil && in.Rol != nil {
		rolID, err := s.roleID(ctx, *in.Rol)
		if err != nil {
			return Usuario{}, err
		}
		upd.RolID = &rolID
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < MinPasswordLength {
			return Usuario{}, fmt.Errorf("la contraseña debe tener al menos %d caracteres: %w", MinPasswordLength, ErrInvalidInput)
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return Usuario{}, fmt.Errorf("hash password: %w", err)
		}
		upd.PasswordHash = &hash
	}
	if upd.empty() {
		return Usuario{}, fmt.Errorf("no hay campos para actualizar: %w", ErrInvalidInput)
	}
	return s.Repo.Update(ctx, id, upd)
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.Repo.Deactivate(ctx, id)
}

func (s *Service) roleID(ctx context.Context, name string) (int64, error) {
	roles, err := s.Repo.Roles(ctx)
	if err != nil {
		return 0, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range roles {
		if r.Nombre == name {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("rol %q: %w", name, ErrInvalidReference)
}
