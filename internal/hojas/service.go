package hojas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/notificaciones"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/shared/telemetry"
)

// ProgressRecorder appends progress entries inside the caller's transaction.
type ProgressRecorder interface {
	Record(ctx context.Context, e progreso.Entry) (progreso.Entry, error)
}

// Notifier stores a notification for one user.
type Notifier interface {
	Notify(ctx context.Context, n notificaciones.Notificacion) (notificaciones.Notificacion, error)
}

// Inbox lists the notifications of a user.
type Inbox interface {
	List(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]notificaciones.Notificacion, error)
}

// ActivityRecorder appends to the activity log. It handles its own failures.
type ActivityRecorder interface {
	Record(ctx context.Context, a historial.Actividad)
}

// Service implements document operations. Inbox and Activity are optional.
type Service struct {
	Repo     Repo
	Progress ProgressRecorder
	Notifier Notifier
	Tx       db.TxRunner
	Clock    ledger.Clock
	Capacity int
	Inbox    Inbox
	Activity ActivityRecorder
}

// NewService constructs a Service. notifier may be nil.
func NewService(repo Repo, progress ProgressRecorder, notifier Notifier, tx db.TxRunner, clock ledger.Clock, capacity int) *Service {
	if capacity <= 0 {
		capacity = ledger.DefaultCapacity
	}
	return &Service{Repo: repo, Progress: progress, Notifier: notifier, Tx: tx, Clock: clock, Capacity: capacity}
}

// Create stores a new document from a form body.
func (s *Service) Create(ctx context.Context, body map[string]any, creatorID int64) (Hoja, error) {
	p, extras, err := splitBody(body)
	if err != nil {
		return Hoja{}, err
	}
	h := Hoja{
		Prioridad:          DefaultPrioridad,
		Estado:             EstadoPendiente,
		EstadoCumplimiento: CumplimientoPendiente,
		UbicacionActual:    DefaultUbicacion,
		ResponsableActual:  DefaultResponsable,
		UsuarioCreadorID:   creatorID,
	}
	applyPatch(&h, p)
	if strings.TrimSpace(h.NumeroHR) == "" || strings.TrimSpace(h.Referencia) == "" || strings.TrimSpace(h.Procedencia) == "" {
		return Hoja{}, fmt.Errorf("numero_hr, referencia y procedencia son requeridos: %w", ErrInvalidInput)
	}
	if p.EstadoCumplimiento == nil {
		if c, ok := cumplimientoFor(h.Estado); ok {
			h.EstadoCumplimiento = c
		}
	}
	if h.UbicacionActual == "" {
		h.UbicacionActual = DefaultUbicacion
	}
	if h.ResponsableActual == "" {
		h.ResponsableActual = DefaultResponsable
	}
	if h.Prioridad == "" {
		h.Prioridad = DefaultPrioridad
	}
	h.Detalles = s.normalizeDetalles(extras)

	created, err := s.Repo.Create(ctx, h)
	if err != nil {
		return Hoja{}, err
	}
	annotate(&created, s.Clock.Today())
	telemetry.Info("hojas.created", map[string]any{"hoja_id": created.ID, "numero_hr": created.NumeroHR, "user_id": creatorID})
	s.record(ctx, historial.TipoAnadido, created, creatorID, fmt.Sprintf("Hoja de ruta %s creada", created.NumeroHR), nil)
	return created, nil
}

// Get returns an active document with its deadline fields.
func (s *Service) Get(ctx context.Context, id int64) (Hoja, error) {
	h, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Hoja{}, err
	}
	annotate(&h, s.Clock.Today())
	return h, nil
}

// List returns one page of documents ordered by urgency.
func (s *Service) List(ctx context.Context, f Filter) ([]Hoja, int, error) {
	f.Today = s.Clock.Today()
	list, total, err := s.Repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		annotate(&list[i], f.Today)
	}
	return list, total, nil
}

// Update applies the main fields of body. Any other keys replace detalles.
func (s *Service) Update(ctx context.Context, id int64, body map[string]any, userID int64) (Hoja, error) {
	p, extras, err := splitBody(body)
	if err != nil {
		return Hoja{}, err
	}
	if len(extras) > 0 {
		p.Detalles = s.normalizeDetalles(extras)
	}
	if p.empty() {
		return Hoja{}, fmt.Errorf("no hay campos para actualizar: %w", ErrInvalidInput)
	}
	for _, required := range []*string{p.NumeroHR, p.Referencia, p.Procedencia} {
		if required != nil && *required == "" {
			return Hoja{}, fmt.Errorf("numero_hr, referencia y procedencia no pueden estar vacíos: %w", ErrInvalidInput)
		}
	}
	if p.Estado != nil && p.EstadoCumplimiento == nil {
		if c, ok := cumplimientoFor(*p.Estado); ok {
			p.EstadoCumplimiento = &c
		}
	}
	s.stampCompletion(&p)
	h, err := s.Repo.Update(ctx, id, p)
	if err != nil {
		return Hoja{}, err
	}
	annotate(&h, s.Clock.Today())
	s.record(ctx, historial.TipoEditado, h, userID, fmt.Sprintf("Hoja de ruta %s editada", h.NumeroHR), body)
	return h, nil
}

// Complete marks a document as completed and tells its creator.
func (s *Service) Complete(ctx context.Context, id, userID int64) (Hoja, error) {
	var out Hoja
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, err := s.Repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		estado := CumplimientoCompletado
		p := Patch{EstadoCumplimiento: &estado}
		s.stampCompletion(&p)
		out, err = s.Repo.Update(ctx, id, p)
		if err != nil {
			return err
		}
		ubicacion := h.UbicacionActual
		if ubicacion == "" {
			ubicacion = DefaultUbicacion
		}
		_, err = s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        id,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   ubicacion,
			Accion:            progreso.AccionCompletado,
			ResponsableID:     userID,
			Notas:             "Hoja de ruta completada",
		})
		return err
	})
	if err != nil {
		return Hoja{}, err
	}
	s.notifyCreator(ctx, out, notificaciones.TipoCompletado,
		fmt.Sprintf("La hoja de ruta %s fue marcada como completada", out.NumeroHR))
	annotate(&out, s.Clock.Today())
	return out, nil
}

// SetCumplimiento changes the compliance state.
func (s *Service) SetCumplimiento(ctx context.Context, id int64, estado string) (Hoja, error) {
	estado = strings.ToLower(strings.TrimSpace(estado))
	if !ValidCumplimiento(estado) {
		return Hoja{}, fmt.Errorf("estado_cumplimiento debe ser pendiente, en_proceso, completado o vencido: %w", ErrInvalidInput)
	}
	p := Patch{EstadoCumplimiento: &estado}
	s.stampCompletion(&p)
	h, err := s.Repo.Update(ctx, id, p)
	if err != nil {
		return Hoja{}, err
	}
	annotate(&h, s.Clock.Today())
	return h, nil
}

// SetEstado changes the document state. The compliance state follows it
// unless cumplimiento is given.
func (s *Service) SetEstado(ctx context.Context, id int64, estado, cumplimiento string) (Hoja, error) {
	e, ok := ParseEstado(estado)
	if !ok {
		return Hoja{}, fmt.Errorf("estado inválido: %w", ErrInvalidInput)
	}
	p := Patch{Estado: &e}
	if cumplimiento = strings.ToLower(strings.TrimSpace(cumplimiento)); cumplimiento != "" {
		if !ValidCumplimiento(cumplimiento) {
			return Hoja{}, fmt.Errorf("estado_cumplimiento inválido: %w", ErrInvalidInput)
		}
		p.EstadoCumplimiento = &cumplimiento
	} else if c, ok := cumplimientoFor(e); ok {
		p.EstadoCumplimiento = &c
	}
	s.stampCompletion(&p)
	h, err := s.Repo.Update(ctx, id, p)
	if err != nil {
		return Hoja{}, err
	}
	annotate(&h, s.Clock.Today())
	return h, nil
}

// MoveInput changes where a document physically is.
type MoveInput struct {
	UbicacionActual   string `json:"ubicacion_actual"`
	ResponsableActual string `json:"responsable_actual"`
	Notas             string `json:"notas"`
}

// Move updates the location and appends a ubicacion_cambiada entry.
func (s *Service) Move(ctx context.Context, id int64, in MoveInput, userID int64) (Hoja, error) {
	in.UbicacionActual = strings.TrimSpace(in.UbicacionActual)
	in.ResponsableActual = strings.TrimSpace(in.ResponsableActual)
	if in.UbicacionActual == "" {
		return Hoja{}, fmt.Errorf("ubicacion_actual es requerida: %w", ErrInvalidInput)
	}
	var out Hoja
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, err := s.Repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p := Patch{UbicacionActual: &in.UbicacionActual}
		if in.ResponsableActual != "" {
			p.ResponsableActual = &in.ResponsableActual
		}
		out, err = s.Repo.Update(ctx, id, p)
		if err != nil {
			return err
		}
		notas := strings.TrimSpace(in.Notas)
		if notas == "" {
			notas = "Ubicación actualizada"
		}
		_, err = s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        id,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   in.UbicacionActual,
			Accion:            progreso.AccionUbicacionCambiada,
			ResponsableID:     userID,
			Notas:             notas,
		})
		return err
	})
	if err != nil {
		return Hoja{}, err
	}
	annotate(&out, s.Clock.Today())
	return out, nil
}

// Stats returns dashboard counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx, s.Clock.Today())
}

// DueSoon lists open documents due within dias days, overdue ones first.
func (s *Service) DueSoon(ctx context.Context, dias, limit int) ([]Hoja, error) {
	if dias <= 0 {
		dias = 7
	}
	today := s.Clock.Today()
	list, err := s.Repo.DueWithin(ctx, today, dias, limit)
	if err != nil {
		return nil, err
	}
	for i := range list {
		annotate(&list[i], today)
	}
	return list, nil
}

// Realtime is the live dashboard payload.
type Realtime struct {
	HojasRecientes   []Hoja                        `json:"hojas_recientes"`
	Estadisticas     Stats                         `json:"estadisticas"`
	Notificaciones   []notificaciones.Notificacion `json:"notificaciones"`
	TareasPendientes []Hoja                        `json:"tareas_pendientes"`
}

const (
	realtimeRecent  = 10
	realtimeInbox   = 10
	realtimePending = 20
	pendingDias     = 30
)

// Realtime gathers the newest open documents, the counters, the unread
// notifications of userID and the open work due within a month.
func (s *Service) Realtime(ctx context.Context, userID int64) (Realtime, error) {
	today := s.Clock.Today()
	out := Realtime{Notificaciones: []notificaciones.Notificacion{}}
	var err error
	if out.HojasRecientes, err = s.Repo.Recent(ctx, realtimeRecent); err != nil {
		return Realtime{}, err
	}
	if out.Estadisticas, err = s.Repo.Stats(ctx, today); err != nil {
		return Realtime{}, err
	}
	if out.TareasPendientes, err = s.Repo.Pending(ctx, today, pendingDias, realtimePending); err != nil {
		return Realtime{}, err
	}
	if s.Inbox != nil && userID > 0 {
		if out.Notificaciones, err = s.Inbox.List(ctx, userID, true, realtimeInbox, 0); err != nil {
			return Realtime{}, err
		}
	}
	for _, list := range [][]Hoja{out.HojasRecientes, out.TareasPendientes} {
		for i := range list {
			annotate(&list[i], today)
		}
	}
	return out, nil
}

// DueForReminder lists documents whose deadline falls between today and
// dias days from now.
func (s *Service) DueForReminder(ctx context.Context, dias int) ([]notificaciones.DueDocument, error) {
	today := s.Clock.Today()
	list, err := s.Repo.DueWithin(ctx, today, dias, 500)
	if err != nil {
		return nil, err
	}
	out := []notificaciones.DueDocument{}
	for _, h := range list {
		d, ok := daysUntil(h.FechaLimite, today)
		if !ok || d < 0 {
			continue
		}
		out = append(out, notificaciones.DueDocument{HojaID: h.ID, CreadorID: h.UsuarioCreadorID, NumeroHR: h.NumeroHR, Dias: d})
	}
	return out, nil
}

func (s *Service) normalizeDetalles(extras map[string]any) map[string]any {
	return ledger.Parse(extras, s.Capacity).Apply(extras)
}

// stampCompletion sets fecha_completado when p completes the document.
func (s *Service) stampCompletion(p *Patch) {
	if p.EstadoCumplimiento != nil && *p.EstadoCumplimiento == CumplimientoCompletado && p.FechaCompletado == nil {
		now := s.Clock.Time().UTC()
		p.FechaCompletado = &now
	}
}

func (s *Service) record(ctx context.Context, tipo string, h Hoja, userID int64, desc string, changes map[string]any) {
	if s.Activity == nil {
		return
	}
	a := historial.Actividad{
		Tipo:        tipo,
		HojaID:      h.ID,
		NumeroHR:    h.NumeroHR,
		Referencia:  h.Referencia,
		Procedencia: h.Procedencia,
		Descripcion: desc,
		UsuarioID:   userID,
	}
	if len(changes) > 0 {
		if raw, err := json.Marshal(changes); err == nil {
			a.DatosNuevos = raw
		}
	}
	s.Activity.Record(ctx, a)
}

func (s *Service) notifyCreator(ctx context.Context, h Hoja, tipo, mensaje string) {
	if s.Notifier == nil || h.UsuarioCreadorID <= 0 {
		return
	}
	if _, err := s.Notifier.Notify(ctx, notificaciones.Notificacion{
		HojaRutaID: h.ID,
		UsuarioID:  h.UsuarioCreadorID,
		Tipo:       tipo,
		Mensaje:    mensaje,
	}); err != nil {
		telemetry.Warn("hojas.notify_failed", map[string]any{"hoja_id": h.ID, "tipo": tipo, "error": err})
	}
}

func applyPatch(h *Hoja, p Patch) {
	setString(&h.NumeroHR, p.NumeroHR)
	setString(&h.Referencia, p.Referencia)
	setString(&h.Procedencia, p.Procedencia)
	setString(&h.NombreSolicitante, p.NombreSolicitante)
	setString(&h.TelefonoCelular, p.TelefonoCelular)
	setString(&h.FechaDocumento, p.FechaDocumento)
	setString(&h.FechaLimite, p.FechaLimite)
	setString(&h.Cite, p.Cite)
	setString(&h.Prioridad, p.Prioridad)
	setString(&h.EstadoCumplimiento, p.EstadoCumplimiento)
	setString(&h.Observaciones, p.Observaciones)
	setString(&h.UbicacionActual, p.UbicacionActual)
	setString(&h.ResponsableActual, p.ResponsableActual)
	if p.NumeroFojas != nil {
		h.NumeroFojas = *p.NumeroFojas
	}
	if p.Estado != nil {
		h.Estado = *p.Estado
	}
	if p.UnidadActualID != nil {
		h.UnidadActualID = *p.UnidadActualID
	}
}
