package envios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/hojas"
	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/queue"
	"hojaruta-backend/internal/shared/metrics"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/unidades"
	"hojaruta-backend/internal/usuarios"
)

// Units resolves destination units.
type Units interface {
	Get(ctx context.Context, id int64) (unidades.Unidad, error)
	RequireActive(ctx context.Context, id int64) (unidades.Unidad, error)
	List(ctx context.Context, includeInactive bool) ([]unidades.Unidad, error)
}

// Users resolves the caller's unit.
type Users interface {
	Get(ctx context.Context, id int64) (usuarios.Usuario, error)
}

// ProgressRecorder appends progress entries inside the caller's transaction.
type ProgressRecorder interface {
	Record(ctx context.Context, e progreso.Entry) (progreso.Entry, error)
}

// ActivityRecorder appends to the activity log. It handles its own failures.
type ActivityRecorder interface {
	Record(ctx context.Context, a historial.Actividad)
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo     Repo
	Hojas    hojas.Repo
	Units    Units
	Users    Users
	Progress ProgressRecorder
	// Queue receives envio.enviado events after commit. May be nil.
	Queue    queue.Client
	// Activity receives an enviado entry after commit. May be nil.
	Activity ActivityRecorder
	Tx       db.TxRunner
	Clock    ledger.Clock
	Capacity int
}

// Service runs the routing workflows. Each workflow keeps the section
// ledger, the dispatch rows and the progress log in step inside one
// transaction.
type Service struct {
	Deps
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	if d.Capacity <= 0 {
		d.Capacity = ledger.DefaultCapacity
	}
	return &Service{Deps: d}
}

// Outcome is the result of a single-dispatch workflow.
type Outcome struct {
	Envio  Envio
	Unidad string
	Ledger ledger.Result
}

// RedirectOutcome is the result of a redirect.
type RedirectOutcome struct {
	Nuevo    Envio
	Original Envio
	Ledger   ledger.Result
}

// SendInput is the body of a send-to-unit request.
type SendInput struct {
	HojaID             int64           `json:"hoja_id"`
	UnidadID           int64           `json:"unidad_id"`
	Observaciones      string          `json:"observaciones"`
	Instrucciones      json.RawMessage `json:"instrucciones"`
	AutoFillSeccion    *bool           `json:"auto_fill_seccion"`
	FechaEnviado       string          `json:"fecha_enviado"`
	Destino            string          `json:"destino"`
	DestinosCheckboxes []string        `json:"destinos_checkboxes"`
}

// SendToUnit dispatches a document to a unit.
func (s *Service) SendToUnit(ctx context.Context, in SendInput, userID int64, requestID string) (Outcome, error) {
	start := time.Now()
	if in.HojaID <= 0 || in.UnidadID <= 0 {
		return Outcome{}, fmt.Errorf("hoja_id y unidad_id son requeridos: %w", ErrInvalidInput)
	}
	unit, err := s.requireUnit(ctx, in.UnidadID)
	if err != nil {
		return Outcome{}, err
	}
	obs := strings.TrimSpace(in.Observaciones)
	fecha := strings.TrimSpace(in.FechaEnviado)
	if fecha == "" {
		fecha = s.Clock.Today()
	}
	destino := strings.TrimSpace(in.Destino)
	if destino == "" {
		destino = unit.Nombre
	}

	out := Outcome{Unidad: unit.Nombre}
	var doc hojas.Hoja
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, err := s.lockDocument(ctx, in.HojaID)
		if err != nil {
			return err
		}
		doc = h
		var detalles map[string]any
		if in.AutoFillSeccion == nil || *in.AutoFillSeccion {
			l := ledger.Parse(h.Detalles, s.Capacity)
			out.Ledger = l.Send(ledger.SendInput{Fecha: fecha, Destino: destino, Destinos: in.DestinosCheckboxes, Instrucciones: obs})
			if out.Ledger.Seccion > 0 {
				detalles = l.Apply(h.Detalles)
			}
		}

		now := s.Clock.Time().UTC()
		out.Envio, err = s.Repo.Insert(ctx, Envio{
			HojaID:             h.ID,
			UsuarioID:          userID,
			UnidadDestinoID:    unit.ID,
			DestinatarioNombre: unit.Nombre,
			Observaciones:      obs,
			Instrucciones:      in.Instrucciones,
			Estado:             EstadoEnviado,
			FechaEnvio:         &now,
		})
		if err != nil {
			return err
		}

		estado := hojas.EstadoEnviada
		p := hojas.Patch{Estado: &estado, UnidadActualID: &unit.ID, UbicacionActual: &unit.Nombre, Detalles: detalles}
		if h.EstadoCumplimiento == hojas.CumplimientoPendiente {
			enProceso := hojas.CumplimientoEnProceso
			p.EstadoCumplimiento = &enProceso
		}
		if _, err := s.Hojas.Update(ctx, h.ID, p); err != nil {
			return err
		}

		notas := obs
		if notas == "" {
			notas = "Envío inicial"
		}
		_, err = s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        h.ID,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   "Enviado a " + unit.Nombre,
			Accion:            progreso.AccionEnviado,
			ResponsableID:     userID,
			UnidadOrigenID:    h.UnidadActualID,
			UnidadDestinoID:   unit.ID,
			Notas:             notas,
		})
		return err
	})
	if err != nil {
		metrics.IncRoutingFailed("enviar")
		return Outcome{}, err
	}
	s.finish("enviar", in.HojaID, out.Envio.ID, out.Ledger, start)
	s.publish(ctx, out.Envio, requestID)
	s.recordSent(ctx, doc, unit.Nombre, userID)
	return out, nil
}

// CreateInput is the body of a generic dispatch.
type CreateInput struct {
	HojaID             int64           `json:"hoja_id"`
	UnidadDestinoID    int64           `json:"unidad_destino_id"`
	DestinatarioNombre string          `json:"destinatario_nombre"`
	Observaciones      string          `json:"observaciones"`
	Instrucciones      json.RawMessage `json:"instrucciones"`
}

// Create stores a dispatch without touching the ledger. It is sent when a
// destination unit is given and pending otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput, userID int64, requestID string) (Envio, error) {
	in.DestinatarioNombre = strings.TrimSpace(in.DestinatarioNombre)
	if in.HojaID <= 0 {
		return Envio{}, fmt.Errorf("hoja_id es requerido: %w", ErrInvalidInput)
	}
	if in.DestinatarioNombre == "" {
		return Envio{}, fmt.Errorf("el nombre del destinatario es requerido: %w", ErrInvalidInput)
	}
	ok, err := s.Hojas.ActiveExists(ctx, in.HojaID)
	if err != nil {
		return Envio{}, err
	}
	if !ok {
		return Envio{}, fmt.Errorf("hoja_id: %w", ErrInvalidReference)
	}
	e := Envio{
		HojaID:             in.HojaID,
		UsuarioID:          userID,
		DestinatarioNombre: in.DestinatarioNombre,
		Observaciones:      strings.TrimSpace(in.Observaciones),
		Instrucciones:      in.Instrucciones,
		Estado:             EstadoPendiente,
	}
	if in.UnidadDestinoID > 0 {
		if _, err := s.Units.Get(ctx, in.UnidadDestinoID); err != nil {
			if errors.Is(err, unidades.ErrNotFound) {
				return Envio{}, fmt.Errorf("unidad_destino_id: %w", ErrInvalidReference)
			}
			return Envio{}, err
		}
		now := s.Clock.Time().UTC()
		e.UnidadDestinoID = in.UnidadDestinoID
		e.Estado = EstadoEnviado
		e.FechaEnvio = &now
	}
	created, err := s.Repo.Insert(ctx, e)
	if err != nil {
		return Envio{}, err
	}
	metrics.IncRoutingAction("crear")
	if created.Estado == EstadoEnviado {
		s.publish(ctx, created, requestID)
	}
	return created, nil
}

// Receive marks a dispatch as received and stamps the matching section.
func (s *Service) Receive(ctx context.Context, id, userID int64) (Outcome, error) {
	start := time.Now()
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, e, err := s.lockPair(ctx, current.HojaID, id, EstadoRecibido)
		if err != nil {
			return err
		}
		out.Envio, err = s.Repo.Transition(ctx, id, Transition{To: EstadoRecibido, At: s.Clock.Time().UTC()})
		if err != nil {
			return err
		}
		out.Unidad, err = s.unitName(ctx, e)
		if err != nil {
			return err
		}

		l := ledger.Parse(h.Detalles, s.Capacity)
		out.Ledger = l.Receive(out.Unidad, s.Clock.Today())
		estado := hojas.EstadoRecibida
		p := hojas.Patch{Estado: &estado}
		if out.Ledger.Seccion > 0 {
			p.Detalles = l.Apply(h.Detalles)
		}
		if _, err := s.Hojas.Update(ctx, h.ID, p); err != nil {
			return err
		}

		_, err = s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        h.ID,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   "Recibido en " + out.Unidad,
			Accion:            progreso.AccionRecibido,
			ResponsableID:     userID,
			UnidadDestinoID:   e.UnidadDestinoID,
			Notas:             "Marcado como recibido",
		})
		return err
	})
	if err != nil {
		metrics.IncRoutingFailed("recibir")
		return Outcome{}, err
	}
	s.finish("recibir", current.HojaID, id, out.Ledger, start)
	return out, nil
}

// Respond records a unit's response to a received dispatch.
func (s *Service) Respond(ctx context.Context, id int64, respuesta string, userID int64) (Outcome, error) {
	start := time.Now()
	respuesta = strings.TrimSpace(respuesta)
	if respuesta == "" {
		return Outcome{}, fmt.Errorf("la respuesta es requerida: %w", ErrInvalidInput)
	}
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, e, err := s.lockPair(ctx, current.HojaID, id, EstadoRespondido)
		if err != nil {
			return err
		}
		out.Envio, err = s.Repo.Transition(ctx, id, Transition{To: EstadoRespondido, At: s.Clock.Time().UTC(), Respuesta: respuesta})
		if err != nil {
			return err
		}
		out.Unidad, err = s.unitName(ctx, e)
		if err != nil {
			return err
		}

		l := ledger.Parse(h.Detalles, s.Capacity)
		out.Ledger = l.Respond(out.Unidad, respuesta, s.Clock.Today())
		estado := hojas.EstadoRespondida
		p := hojas.Patch{Estado: &estado}
		if out.Ledger.Seccion > 0 {
			p.Detalles = l.Apply(h.Detalles)
		}
		if _, err := s.Hojas.Update(ctx, h.ID, p); err != nil {
			return err
		}

		_, err = s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        h.ID,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   "Respondido por " + out.Unidad,
			Accion:            progreso.AccionRespondido,
			ResponsableID:     userID,
			UnidadDestinoID:   e.UnidadDestinoID,
			Notas:             "Respuesta enviada",
			Respuesta:         respuesta,
		})
		return err
	})
	if err != nil {
		metrics.IncRoutingFailed("responder")
		return Outcome{}, err
	}
	s.finish("responder", current.HojaID, id, out.Ledger, start)
	return out, nil
}

// RedirectInput is the body of a redirect request.
type RedirectInput struct {
	UnidadDestinoID int64    `json:"unidad_destino_id"`
	Notas           string   `json:"notas"`
	Checkboxes      []string `json:"checkboxes"`
}

// Redirect supersedes a dispatch with a new one to another unit.
func (s *Service) Redirect(ctx context.Context, id int64, in RedirectInput, userID int64, requestID string) (RedirectOutcome, error) {
	start := time.Now()
	if in.UnidadDestinoID <= 0 {
		return RedirectOutcome{}, fmt.Errorf("la unidad destino es requerida: %w", ErrInvalidInput)
	}
	dest, err := s.requireUnit(ctx, in.UnidadDestinoID)
	if err != nil {
		return RedirectOutcome{}, err
	}
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return RedirectOutcome{}, err
	}
	notas := strings.TrimSpace(in.Notas)

	var out RedirectOutcome
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		h, e, err := s.lockPair(ctx, current.HojaID, id, EstadoRedirigido)
		if err != nil {
			return err
		}
		origin, err := s.unitName(ctx, e)
		if err != nil {
			return err
		}
		now := s.Clock.Time().UTC()
		out.Original, err = s.Repo.Transition(ctx, id, Transition{
			To:            EstadoRedirigido,
			At:            now,
			RedirigidoA:   dest.ID,
			RedirigidoPor: userID,
		})
		if err != nil {
			return err
		}

		obs := notas
		if obs == "" {
			obs = "Redirigido desde " + origin
		}
		out.Nuevo, err = s.Repo.Insert(ctx, Envio{
			HojaID:             h.ID,
			UsuarioID:          userID,
			UnidadDestinoID:    dest.ID,
			DestinatarioNombre: dest.Nombre,
			Observaciones:      obs,
			Instrucciones:      checkboxInstrucciones(in.Checkboxes),
			Estado:             EstadoEnviado,
			FechaEnvio:         &now,
		})
		if err != nil {
			return err
		}

		l := ledger.Parse(h.Detalles, s.Capacity)
		out.Ledger = l.Redirect(ledger.RedirectInput{
			Fecha:         s.Clock.Today(),
			Destino:       dest.Nombre,
			Destinos:      in.Checkboxes,
			Instrucciones: notas,
			Desde:         origin,
		})

		redirected := "Redirigido a " + dest.Nombre
		if _, err := s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        h.ID,
			UbicacionAnterior: h.UbicacionActual,
			UbicacionActual:   redirected,
			Accion:            progreso.AccionRedirigido,
			ResponsableID:     userID,
			UnidadOrigenID:    e.UnidadDestinoID,
			UnidadDestinoID:   dest.ID,
			Notas:             notas,
		}); err != nil {
			return err
		}
		if _, err := s.Progress.Record(ctx, progreso.Entry{
			HojaRutaID:        h.ID,
			UbicacionAnterior: redirected,
			UbicacionActual:   "Enviado a " + dest.Nombre,
			Accion:            progreso.AccionEnviado,
			ResponsableID:     userID,
			UnidadOrigenID:    e.UnidadDestinoID,
			UnidadDestinoID:   dest.ID,
			Notas:             "Redirigido desde " + origin,
		}); err != nil {
			return err
		}

		estado := hojas.EstadoEnviada
		p := hojas.Patch{Estado: &estado, UnidadActualID: &dest.ID, UbicacionActual: &dest.Nombre}
		if out.Ledger.Seccion > 0 {
			p.Detalles = l.Apply(h.Detalles)
		}
		_, err = s.Hojas.Update(ctx, h.ID, p)
		return err
	})
	if err != nil {
		metrics.IncRoutingFailed("redirigir")
		return RedirectOutcome{}, err
	}
	s.finish("redirigir", current.HojaID, out.Nuevo.ID, out.Ledger, start)
	s.publish(ctx, out.Nuevo, requestID)
	return out, nil
}

// UpdateState moves a dispatch through the transition table without
// touching the ledger.
func (s *Service) UpdateState(ctx context.Context, id int64, raw string) (Envio, error) {
	to, ok := ParseEstado(raw)
	if !ok {
		return Envio{}, fmt.Errorf("estado inválido: %w", ErrInvalidInput)
	}
	var out Envio
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(e.Estado, to) {
			return fmt.Errorf("%s → %s: %w", e.Estado, to, ErrInvalidTransition)
		}
		out, err = s.Repo.Transition(ctx, id, Transition{To: to, At: s.Clock.Time().UTC()})
		return err
	})
	if err != nil {
		return Envio{}, err
	}
	metrics.IncRoutingAction("estado")
	return out, nil
}

// List returns dispatches matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Envio, error) {
	return s.Repo.List(ctx, f)
}

// ForUserUnit lists the dispatches addressed to the caller's unit.
func (s *Service) ForUserUnit(ctx context.Context, userID int64, limit, offset int) ([]Envio, error) {
	if userID <= 0 {
		return nil, ErrNoUnit
	}
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, usuarios.ErrNotFound) {
			return nil, ErrNoUnit
		}
		return nil, err
	}
	if u.UnidadID <= 0 {
		return nil, ErrNoUnit
	}
	return s.Repo.List(ctx, Filter{UnidadDestinoID: u.UnidadID, Limit: limit, Offset: offset})
}

// Destino is a unit offered as a dispatch target.
type Destino struct {
	ID          int64  `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion,omitempty"`
}

// Destinations lists the active units.
func (s *Service) Destinations(ctx context.Context) ([]Destino, error) {
	list, err := s.Units.List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Destino, 0, len(list))
	for _, u := range list {
		out = append(out, Destino{ID: u.ID, Nombre: u.Nombre, Descripcion: u.Descripcion})
	}
	return out, nil
}

func (s *Service) requireUnit(ctx context.Context, id int64) (unidades.Unidad, error) {
	u, err := s.Units.RequireActive(ctx, id)
	if err != nil {
		if errors.Is(err, unidades.ErrNotFound) {
			return unidades.Unidad{}, ErrUnitNotFound
		}
		return unidades.Unidad{}, err
	}
	return u, nil
}

func (s *Service) lockDocument(ctx context.Context, id int64) (hojas.Hoja, error) {
	h, err := s.Hojas.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, hojas.ErrNotFound) {
			return hojas.Hoja{}, ErrDocumentNotFound
		}
		return hojas.Hoja{}, err
	}
	return h, nil
}

// lockPair locks the document before the dispatch, the same order every
// workflow uses, and checks that the dispatch may move to target.
func (s *Service) lockPair(ctx context.Context, hojaID, envioID int64, target Estado) (hojas.Hoja, Envio, error) {
	h, err := s.lockDocument(ctx, hojaID)
	if err != nil {
		return hojas.Hoja{}, Envio{}, err
	}
	e, err := s.Repo.GetForUpdate(ctx, envioID)
	if err != nil {
		return hojas.Hoja{}, Envio{}, err
	}
	if !CanTransition(e.Estado, target) {
		return hojas.Hoja{}, Envio{}, fmt.Errorf("%s → %s: %w", e.Estado, target, ErrInvalidTransition)
	}
	return h, e, nil
}

// unitName returns the destination unit's current name, or the recipient
// stored on the dispatch when the unit is gone.
func (s *Service) unitName(ctx context.Context, e Envio) (string, error) {
	if e.UnidadDestinoID <= 0 {
		return e.DestinatarioNombre, nil
	}
	u, err := s.Units.Get(ctx, e.UnidadDestinoID)
	if err != nil {
		if errors.Is(err, unidades.ErrNotFound) {
			return e.DestinatarioNombre, nil
		}
		return "", err
	}
	return u.Nombre, nil
}

func (s *Service) finish(action string, hojaID, envioID int64, res ledger.Result, start time.Time) {
	metrics.IncRoutingAction(action)
	metrics.ObserveRoutingDurationMs(metrics.Since(start))
	fields := map[string]any{"hoja_id": hojaID, "envio_id": envioID, "seccion": res.Seccion}
	if res.Full {
		metrics.IncLedgerFull()
		telemetry.Warn("ledger.full", map[string]any{"hoja_id": hojaID, "envio_id": envioID, "action": action})
	}
	if res.NoMatch {
		metrics.IncLedgerNoMatch()
		telemetry.Warn("ledger.no_match", map[string]any{"hoja_id": hojaID, "envio_id": envioID, "action": action})
	}
	telemetry.Info("envios."+action, fields)
}

// publish announces a sent dispatch. Failures are logged and never undo
// the committed workflow.
func (s *Service) recordSent(ctx context.Context, h hojas.Hoja, unidad string, userID int64) {
	if s.Activity == nil {
		return
	}
	s.Activity.Record(ctx, historial.Actividad{
		Tipo:         historial.TipoEnviado,
		HojaID:       h.ID,
		NumeroHR:     h.NumeroHR,
		Referencia:   h.Referencia,
		Procedencia:  h.Procedencia,
		Destinatario: unidad,
		Descripcion:  fmt.Sprintf("Hoja de ruta %s enviada a %s", h.NumeroHR, unidad),
		UsuarioID:    userID,
	})
}

func (s *Service) publish(ctx context.Context, e Envio, requestID string) {
	if s.Queue == nil || e.UnidadDestinoID <= 0 {
		return
	}
	msg := queue.NewMessage(queue.EventEnvioEnviado, requestID)
	msg.EnvioID = e.ID
	msg.HojaID = e.HojaID
	msg.UnidadID = e.UnidadDestinoID
	if err := s.Queue.Send(ctx, msg); err != nil {
		metrics.IncEventsPublishFailed()
		telemetry.Warn("envios.publish_failed", map[string]any{"envio_id": e.ID, "hoja_id": e.HojaID, "error": err})
		return
	}
	metrics.IncEventsPublished()
}
