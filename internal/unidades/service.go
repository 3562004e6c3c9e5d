package unidades

import (
	"context"
	"fmt"
	"strings"
)

// Service contains unit business rules.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// List returns units, active only unless includeInactive is set.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Unidad, error) {
	return s.Repo.List(ctx, includeInactive)
}

// Get returns a unit by id.
func (s *Service) Get(ctx context.Context, id int64) (Unidad, error) {
	if id <= 0 {
		return Unidad{}, ErrInvalidInput
	}
	return s.Repo.Get(ctx, id)
}

// RequireActive returns the unit when it exists and is active.
func (s *Service) RequireActive(ctx context.Context, id int64) (Unidad, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return Unidad{}, err
	}
	if !u.Activo {
		return Unidad{}, fmt.Errorf("unidad %d inactiva: %w", id, ErrNotFound)
	}
	return u, nil
}

// Create validates and stores a unit.
func (s *Service) Create(ctx context.Context, u Unidad) (Unidad, error) {
	u.Nombre = strings.TrimSpace(u.Nombre)
	u.Descripcion = strings.TrimSpace(u.Descripcion)
	u.Responsable = strings.TrimSpace(u.Responsable)
	if u.Nombre == "" {
		return Unidad{}, fmt.Errorf("nombre es requerido: %w", ErrInvalidInput)
	}
	return s.Repo.Create(ctx, u)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, upd Update) (Unidad, error) {
	if upd.empty() {
		return Unidad{}, fmt.Errorf("no hay campos para actualizar: %w", ErrInvalidInput)
	}
	if upd.Nombre != nil {
		name := strings.TrimSpace(*upd.Nombre)
		if name == "" {
			return Unidad{}, fmt.Errorf("nombre no puede estar vacío: %w", ErrInvalidInput)
		}
		upd.Nombre = &name
	}
	return s.Repo.Update(ctx, id, upd)
}

// Deactivate soft-deletes a unit.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.Repo.Deactivate(ctx, id)
}
