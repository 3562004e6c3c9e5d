package locaciones

import (
	"context"
	"fmt"
	"strings"

	"hojaruta-backend/internal/shared/telemetry"
)

// Service manages the locations catalog.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// List returns the active locations.
func (s *Service) List(ctx context.Context) ([]Locacion, error) {
	return s.Repo.ListActive(ctx)
}

// Create validates in and stores a location. Locations are active unless
// in says otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput) (Locacion, error) {
	l := Locacion{
		Nombre:      strings.TrimSpace(in.Nombre),
		Descripcion: strings.TrimSpace(in.Descripcion),
		Tipo:        strings.TrimSpace(in.Tipo),
		Activo:      in.Activo == nil || *in.Activo,
	}
	if l.Nombre == "" {
		return Locacion{}, fmt.Errorf("el nombre es requerido: %w", ErrInvalidInput)
	}
	if l.Tipo == "" {
		l.Tipo = TipoCentroAcogida
	}
	created, err := s.Repo.Create(ctx, l)
	if err != nil {
		return Locacion{}, err
	}
	telemetry.Info("locaciones.created", map[string]any{"locacion_id": created.ID, "tipo": created.Tipo})
	return created, nil
}
