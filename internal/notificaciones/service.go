package notificaciones

import (
	"context"
	"fmt"
	"strings"

	"hojaruta-backend/internal/shared/metrics"
	"hojaruta-backend/internal/shared/telemetry"
)

// DefaultReminderDays is the deadline window of the automatic sweep.
const DefaultReminderDays = 3

// DueSource lists documents whose deadline falls within dias days.
type DueSource interface {
	DueForReminder(ctx context.Context, dias int) ([]DueDocument, error)
}

// UnitMembers resolves the active users of a unit.
type UnitMembers interface {
	ActiveUserIDs(ctx context.Context, unidadID int64) ([]int64, error)
}

// Service creates and reads notifications.
type Service struct {
	Repo    Repo
	Due     DueSource
	Members UnitMembers
}

// NewService constructs a Service. due and members may be nil when the
// caller never sweeps or fans out.
func NewService(repo Repo, due DueSource, members UnitMembers) *Service {
	return &Service{Repo: repo, Due: due, Members: members}
}

// CreateInput is a manual notification.
type CreateInput struct {
	HojaRutaID int64  `json:"hoja_ruta_id"`
	UsuarioID  int64  `json:"usuario_id"`
	Tipo       string `json:"tipo"`
	Mensaje    string `json:"mensaje"`
}

// Notify stores one notification.
func (s *Service) Notify(ctx context.Context, n Notificacion) (Notificacion, error) {
	n.Mensaje = strings.TrimSpace(n.Mensaje)
	if n.UsuarioID <= 0 || n.Mensaje == "" || n.Tipo == "" {
		return Notificacion{}, ErrInvalidInput
	}
	created, err := s.Repo.Create(ctx, n)
	if err != nil {
		return Notificacion{}, err
	}
	metrics.AddNotificationsCreated(1)
	return created, nil
}

// Create stores a manual notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (Notificacion, error) {
	if in.UsuarioID <= 0 {
		return Notificacion{}, fmt.Errorf("usuario_id es requerido: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Mensaje) == "" {
		return Notificacion{}, fmt.Errorf("mensaje es requerido: %w", ErrInvalidInput)
	}
	tipo := strings.TrimSpace(in.Tipo)
	if tipo == "" {
		tipo = TipoManual
	}
	return s.Notify(ctx, Notificacion{HojaRutaID: in.HojaRutaID, UsuarioID: in.UsuarioID, Tipo: tipo, Mensaje: in.Mensaje})
}

// NotifyUnit sends the same message to every active user of a unit.
func (s *Service) NotifyUnit(ctx context.Context, unidadID, hojaID int64, tipo, mensaje string) (int, error) {
	if s.Members == nil {
		return 0, fmt.Errorf("unit members not configured")
	}
	ids, err := s.Members.ActiveUserIDs(ctx, unidadID)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, id := range ids {
		if _, err := s.Repo.Create(ctx, Notificacion{HojaRutaID: hojaID, UsuarioID: id, Tipo: tipo, Mensaje: mensaje}); err != nil {
			return created, err
		}
		created++
	}
	metrics.AddNotificationsCreated(created)
	return created, nil
}

// SweepDeadlines notifies the creator of each document due within dias
// days, once per unread reminder.
func (s *Service) SweepDeadlines(ctx context.Context, dias int) (int, error) {
	if s.Due == nil {
		return 0, fmt.Errorf("deadline source not configured")
	}
	if dias <= 0 {
		dias = DefaultReminderDays
	}
	docs, err := s.Due.DueForReminder(ctx, dias)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, d := range docs {
		if d.CreadorID <= 0 {
			continue
		}
		exists, err := s.Repo.HasUnread(ctx, d.HojaID, d.CreadorID, TipoVencimiento)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if _, err := s.Repo.Create(ctx, Notificacion{
			HojaRutaID: d.HojaID,
			UsuarioID:  d.CreadorID,
			Tipo:       TipoVencimiento,
			Mensaje:    reminderMessage(d),
		}); err != nil {
			return created, err
		}
		created++
	}
	metrics.AddNotificationsCreated(created)
	telemetry.Info("notificaciones.deadline_sweep", map[string]any{"dias": dias, "candidatas": len(docs), "creadas": created})
	return created, nil
}

// List returns a user's notifications.
func (s *Service) List(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]Notificacion, error) {
	return s.Repo.ListByUser(ctx, userID, onlyUnread, limit, offset)
}

// CountUnread counts a user's unread notifications.
func (s *Service) CountUnread(ctx context.Context, userID int64) (int, error) {
	return s.Repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification of the user as read.
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	return s.Repo.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	return s.Repo.MarkAllRead(ctx, userID)
}

func reminderMessage(d DueDocument) string {
	switch {
	case d.Dias < 0:
		return fmt.Sprintf("La hoja de ruta %s está vencida hace %d días", d.NumeroHR, -d.Dias)
	case d.Dias == 0:
		return fmt.Sprintf("La hoja de ruta %s vence hoy", d.NumeroHR)
	case d.Dias == 1:
		return fmt.Sprintf("La hoja de ruta %s vence mañana", d.NumeroHR)
	default:
		return fmt.Sprintf("La hoja de ruta %s vence en %d días", d.NumeroHR, d.Dias)
	}
}
