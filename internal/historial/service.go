package historial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/shared/telemetry"
)

const (
	categoriaLimit = 10
	maxPeriodo     = 365
)

// Service records and reports document activity.
type Service struct {
	Repo  Repo
	Clock ledger.Clock
}

// NewService constructs a Service.
func NewService(repo Repo, clock ledger.Clock) *Service {
	return &Service{Repo: repo, Clock: clock}
}

// Record appends an entry on behalf of another workflow. The
// workflow has already committed, so a failure is logged and dropped.
func (s *Service) Record(ctx context.Context, a Actividad) {
	if s == nil || s.Repo == nil {
		return
	}
	if _, err := s.Repo.Insert(ctx, a); err != nil {
		telemetry.Warn("historial.record_failed", map[string]any{
			"tipo":    a.Tipo,
			"hoja_id": a.HojaID,
			"error":   err,
		})
	}
}

// Registrar stores a manual entry.
func (s *Service) Registrar(ctx context.Context, in RegistrarInput, userID int64) (Actividad, error) {
	tipo := strings.TrimSpace(in.Tipo)
	if !ValidTipo(tipo) {
		return Actividad{}, fmt.Errorf("tipo de actividad inválido: %w", ErrInvalidInput)
	}
	desc := strings.TrimSpace(in.Descripcion)
	if desc == "" {
		return Actividad{}, fmt.Errorf("la descripción es obligatoria: %w", ErrInvalidInput)
	}
	return s.Repo.Insert(ctx, Actividad{
		Tipo:          tipo,
		HojaID:        in.HojaID,
		NumeroHR:      strings.TrimSpace(in.NumeroHR),
		Referencia:    strings.TrimSpace(in.Referencia),
		Procedencia:   strings.TrimSpace(in.Procedencia),
		Destinatario:  strings.TrimSpace(in.Destinatario),
		Descripcion:   desc,
		UsuarioID:     userID,
		UsuarioNombre: strings.TrimSpace(in.UsuarioNombre),
	})
}

// List returns entries newest first, optionally restricted to one kind.
func (s *Service) List(ctx context.Context, tipo string, limit, offset int) ([]Actividad, error) {
	if tipo != "" && !ValidTipo(tipo) {
		return nil, fmt.Errorf("tipo de actividad inválido: %w", ErrInvalidInput)
	}
	return s.Repo.List(ctx, tipo, limit, offset)
}

// Categorias returns the latest entries of every kind.
func (s *Service) Categorias(ctx context.Context) (Categorias, error) {
	var out Categorias
	for _, dst := range []struct {
		tipo string
		into *[]Actividad
	}{
		{TipoAnadido, &out.Anadidos},
		{TipoEditado, &out.Editados},
		{TipoEnviado, &out.Enviados},
	} {
		list, err := s.Repo.List(ctx, dst.tipo, categoriaLimit, 0)
		if err != nil {
			return Categorias{}, err
		}
		*dst.into = list
	}
	return out, nil
}

// Estadisticas counts entries of the last dias days. dias is clamped to
// 1..365.
func (s *Service) Estadisticas(ctx context.Context, dias int) (Stats, int, error) {
	if dias < 1 {
		dias = 1
	}
	if dias > maxPeriodo {
		dias = maxPeriodo
	}
	since := s.Clock.Time().Add(-time.Duration(dias) * 24 * time.Hour)
	counts, err := s.Repo.Counts(ctx, since)
	if err != nil {
		return Stats{}, dias, err
	}
	st := Stats{
		Anadidos: counts[TipoAnadido],
		Editados: counts[TipoEditado],
		Enviados: counts[TipoEnviado],
	}
	st.Total = st.Anadidos + st.Editados + st.Enviados
	return st, dias, nil
}
