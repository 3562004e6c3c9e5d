package envios

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/hojas"
	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/queue"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/unidades"
	"hojaruta-backend/internal/usuarios"
)

type capturedQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *capturedQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

type capturedActivity struct {
	entries []historial.Actividad
}

func (a *capturedActivity) Record(_ context.Context, e historial.Actividad) {
	a.entries = append(a.entries, e)
}

type scenario struct {
	svc      *Service
	envios   *MemoryRepo
	hojas    *hojas.MemoryRepo
	progress *progreso.Service
	queue    *capturedQueue
	legal    unidades.Unidad
	archivo  unidades.Unidad
	cerrada  unidades.Unidad
	hojaID   int64
	userID   int64
}

// newScenario wires every routing collaborator in memory with a clock fixed
// at 2025-03-10 23:30 in La Paz, which is already the 11th in UTC.
func newScenario(t *testing.T) scenario {
	t.Helper()
	ctx := context.Background()
	loc := time.FixedZone("BOT", -4*3600)
	clock := ledger.Clock{
		Now:      func() time.Time { return time.Date(2025, 3, 10, 23, 30, 0, 0, loc) },
		Location: loc,
	}

	unitRepo := unidades.NewMemoryRepo()
	units := unidades.NewService(unitRepo)
	legal, err := units.Create(ctx, unidades.Unidad{Nombre: "Unidad Legal"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	archivo, _ := units.Create(ctx, unidades.Unidad{Nombre: "Archivo Central"})
	cerrada, _ := units.Create(ctx, unidades.Unidad{Nombre: "Unidad Cerrada"})
	if err := units.Deactivate(ctx, cerrada.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	userRepo := usuarios.NewMemoryRepo(nil)
	user, err := userRepo.Create(ctx, usuarios.Usuario{Username: "secretaria", NombreCompleto: "Sec", UnidadID: legal.ID})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	hojaRepo := hojas.NewMemoryRepo()
	h, err := hojaRepo.Create(ctx, hojas.Hoja{
		NumeroHR:           "HR-2025-001",
		Referencia:         "Solicitud",
		Procedencia:        "UAF",
		Estado:             hojas.EstadoPendiente,
		EstadoCumplimiento: hojas.CumplimientoPendiente,
		UbicacionActual:    hojas.DefaultUbicacion,
		Detalles:           map[string]any{"destino_principal": "Legal"},
	})
	if err != nil {
		t.Fatalf("create hoja: %v", err)
	}

	tx := &db.MemoryTx{}
	progress := progreso.NewService(progreso.NewMemoryRepo(), hojaRepo, tx)
	q := &capturedQueue{}
	enviosRepo := NewMemoryRepo()
	svc := NewService(Deps{
		Repo:     enviosRepo,
		Hojas:    hojaRepo,
		Units:    units,
		Users:    usuarios.NewService(userRepo),
		Progress: progress,
		Queue:    q,
		Tx:       tx,
		Clock:    clock,
		Capacity: ledger.DefaultCapacity,
	})
	return scenario{
		svc: svc, envios: enviosRepo, hojas: hojaRepo, progress: progress, queue: q,
		legal: legal, archivo: archivo, cerrada: cerrada, hojaID: h.ID, userID: user.ID,
	}
}

func (sc scenario) sections(t *testing.T) *ledger.Ledger {
	t.Helper()
	h, err := sc.hojas.Get(context.Background(), sc.hojaID)
	if err != nil {
		t.Fatalf("get hoja: %v", err)
	}
	return ledger.Parse(h.Detalles, ledger.DefaultCapacity)
}

func (sc scenario) send(t *testing.T, unit unidades.Unidad) Outcome {
	t.Helper()
	out, err := sc.svc.SendToUnit(context.Background(), SendInput{HojaID: sc.hojaID, UnidadID: unit.ID, Observaciones: "Revisar"}, sc.userID, "req-1")
	if err != nil {
		t.Fatalf("SendToUnit: %v", err)
	}
	return out
}

func TestSendToUnitUpdatesAllRecords(t *testing.T) {
	sc := newScenario(t)
	out := sc.send(t, sc.legal)

	if out.Ledger.Seccion != 1 || out.Ledger.Full {
		t.Fatalf("ledger result = %+v", out.Ledger)
	}
	if out.Envio.Estado != EstadoEnviado || out.Envio.DestinatarioNombre != "Unidad Legal" || out.Envio.FechaEnvio == nil {
		t.Fatalf("dispatch = %+v", out.Envio)
	}
	if string(out.Envio.Instrucciones) != "[]" {
		t.Fatalf("instrucciones = %s", out.Envio.Instrucciones)
	}

	s, ok := sc.sections(t).Section(1)
	if !ok || s.Destino != "Unidad Legal" || s.Instrucciones != "Revisar" {
		t.Fatalf("section 1 = %+v", s)
	}
	if s.FechaEnviado != "2025-03-10" {
		t.Fatalf("send date = %q, want the local date 2025-03-10", s.FechaEnviado)
	}

	h, _ := sc.hojas.Get(context.Background(), sc.hojaID)
	if h.Estado != hojas.EstadoEnviada || h.UnidadActualID != sc.legal.ID || h.UbicacionActual != "Unidad Legal" {
		t.Fatalf("document = %+v", h)
	}
	if h.EstadoCumplimiento != hojas.CumplimientoEnProceso {
		t.Fatalf("estado_cumplimiento = %q", h.EstadoCumplimiento)
	}
	if h.Detalles["destino_principal"] != "Legal" {
		t.Fatalf("unrelated details lost: %v", h.Detalles)
	}

	last, err := sc.progress.Latest(context.Background(), sc.hojaID)
	if err != nil || last.Accion != progreso.AccionEnviado || last.UbicacionActual != "Enviado a Unidad Legal" || last.Notas != "Revisar" {
		t.Fatalf("progress = %+v, %v", last, err)
	}

	if len(sc.queue.msgs) != 1 {
		t.Fatalf("expected one event, got %d", len(sc.queue.msgs))
	}
	msg := sc.queue.msgs[0]
	if msg.Event != queue.EventEnvioEnviado || msg.EnvioID != out.Envio.ID || msg.UnidadID != sc.legal.ID || msg.RequestID != "req-1" {
		t.Fatalf("event = %+v", msg)
	}
}

func TestSendToUnitValidatesBeforeWriting(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   SendInput
		want error
	}{
		{"missing unit", SendInput{HojaID: sc.hojaID}, ErrInvalidInput},
		{"inactive unit", SendInput{HojaID: sc.hojaID, UnidadID: sc.cerrada.ID}, ErrUnitNotFound},
		{"unknown unit", SendInput{HojaID: sc.hojaID, UnidadID: 99}, ErrUnitNotFound},
		{"unknown document", SendInput{HojaID: 99, UnidadID: sc.legal.ID}, ErrDocumentNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := sc.svc.SendToUnit(ctx, tc.in, sc.userID, ""); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	list, _ := sc.envios.List(ctx, Filter{})
	if len(list) != 0 {
		t.Fatalf("no dispatch should exist, got %d", len(list))
	}
}

func TestEleventhSendReportsFullLedger(t *testing.T) {
	sc := newScenario(t)
	for i := 1; i <= ledger.DefaultCapacity; i++ {
		out := sc.send(t, sc.legal)
		if out.Ledger.Seccion != i {
			t.Fatalf("send %d wrote section %d", i, out.Ledger.Seccion)
		}
	}
	out := sc.send(t, sc.legal)
	if !out.Ledger.Full || out.Ledger.SeccionValue() != nil {
		t.Fatalf("eleventh send = %+v", out.Ledger)
	}
	if out.Envio.ID == 0 {
		t.Fatal("eleventh dispatch not stored")
	}
	history, err := sc.progress.History(context.Background(), sc.hojaID)
	if err != nil || len(history) != 11 {
		t.Fatalf("history has %d entries, %v", len(history), err)
	}
	if got := len(sc.sections(t).Sections()); got != ledger.DefaultCapacity {
		t.Fatalf("ledger holds %d sections", got)
	}
}

func TestSendReceiveRespond(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	sent := sc.send(t, sc.legal)

	got, err := sc.svc.Receive(ctx, sent.Envio.ID, sc.userID)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Envio.Estado != EstadoRecibido || got.Envio.FechaRecepcion == nil || got.Ledger.Seccion != 1 || got.Ledger.NoMatch {
		t.Fatalf("receive = %+v", got)
	}

	if _, err := sc.svc.Respond(ctx, sent.Envio.ID, "   ", sc.userID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank response, got %v", err)
	}
	answered, err := sc.svc.Respond(ctx, sent.Envio.ID, "Aprobado", sc.userID)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answered.Envio.Estado != EstadoRespondido || answered.Envio.Respuesta != "Aprobado" || answered.Ledger.Seccion != 2 {
		t.Fatalf("respond = %+v", answered)
	}

	l := sc.sections(t)
	first, _ := l.Section(1)
	second, _ := l.Section(2)
	if first.FechaRecepcion != "2025-03-10" {
		t.Fatalf("section 1 = %+v", first)
	}
	if second.Destino != "RESPUESTA de Unidad Legal" || second.Respuesta != "Aprobado" {
		t.Fatalf("section 2 = %+v", second)
	}

	h, _ := sc.hojas.Get(ctx, sc.hojaID)
	if h.Estado != hojas.EstadoRespondida {
		t.Fatalf("document state = %q", h.Estado)
	}
	last, _ := sc.progress.Latest(ctx, sc.hojaID)
	if last.Accion != progreso.AccionRespondido || last.Respuesta != "Aprobado" {
		t.Fatalf("progress = %+v", last)
	}

	if _, err := sc.svc.Redirect(ctx, sent.Envio.ID, RedirectInput{UnidadDestinoID: sc.archivo.ID}, sc.userID, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from a terminal state, got %v", err)
	}
}

func TestReceiveTwice(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	first := sc.send(t, sc.legal)
	second := sc.send(t, sc.legal)

	got, err := sc.svc.Receive(ctx, second.Envio.ID, sc.userID)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Ledger.Seccion != 2 {
		t.Fatalf("latest matching section should be stamped first, got %d", got.Ledger.Seccion)
	}
	got, err = sc.svc.Receive(ctx, first.Envio.ID, sc.userID)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Ledger.Seccion != 1 {
		t.Fatalf("second receive stamped section %d", got.Ledger.Seccion)
	}

	if _, err := sc.svc.Receive(ctx, first.Envio.ID, sc.userID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := sc.svc.Receive(ctx, 404, sc.userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReceiveWithoutMatchingSection(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	sent, err := sc.svc.SendToUnit(ctx, SendInput{HojaID: sc.hojaID, UnidadID: sc.legal.ID, Destino: "Asesoría"}, sc.userID, "")
	if err != nil {
		t.Fatalf("SendToUnit: %v", err)
	}
	got, err := sc.svc.Receive(ctx, sent.Envio.ID, sc.userID)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !got.Ledger.NoMatch || got.Ledger.SeccionValue() != nil || got.Envio.Estado != EstadoRecibido {
		t.Fatalf("receive = %+v", got)
	}
}

func TestRedirect(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	sent := sc.send(t, sc.legal)

	if _, err := sc.svc.Redirect(ctx, sent.Envio.ID, RedirectInput{}, sc.userID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := sc.svc.Redirect(ctx, sent.Envio.ID, RedirectInput{UnidadDestinoID: sc.cerrada.ID}, sc.userID, ""); !errors.Is(err, ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}

	out, err := sc.svc.Redirect(ctx, sent.Envio.ID, RedirectInput{UnidadDestinoID: sc.archivo.ID, Checkboxes: []string{"Archivar"}}, sc.userID, "req-2")
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if out.Original.Estado != EstadoRedirigido || out.Original.RedirigidoAUnidadID != sc.archivo.ID || out.Original.RedirigidoPor != sc.userID {
		t.Fatalf("original = %+v", out.Original)
	}
	if out.Nuevo.Estado != EstadoEnviado || out.Nuevo.UnidadDestinoID != sc.archivo.ID || out.Nuevo.Observaciones != "Redirigido desde Unidad Legal" {
		t.Fatalf("new dispatch = %+v", out.Nuevo)
	}
	if string(out.Nuevo.Instrucciones) != `["Archivar"]` {
		t.Fatalf("instrucciones = %s", out.Nuevo.Instrucciones)
	}

	redirected, _ := sc.envios.List(ctx, Filter{Estado: EstadoRedirigido})
	sentList, _ := sc.envios.List(ctx, Filter{Estado: EstadoEnviado})
	if len(redirected) != 1 || len(sentList) != 1 || sentList[0].ID != out.Nuevo.ID {
		t.Fatalf("redirigido=%d enviado=%d", len(redirected), len(sentList))
	}

	s, ok := sc.sections(t).Section(out.Ledger.Seccion)
	if !ok || out.Ledger.Seccion != 2 || s.Destino != "Archivo Central" || s.RedirigidoDesde != "Unidad Legal" {
		t.Fatalf("section = %+v (%d)", s, out.Ledger.Seccion)
	}

	h, _ := sc.hojas.Get(ctx, sc.hojaID)
	if h.UnidadActualID != sc.archivo.ID || h.UbicacionActual != "Archivo Central" || h.Estado != hojas.EstadoEnviada {
		t.Fatalf("document = %+v", h)
	}

	history, _ := sc.progress.History(ctx, sc.hojaID)
	tail := history[len(history)-2:]
	if tail[0].Accion != progreso.AccionRedirigido || tail[1].Accion != progreso.AccionEnviado {
		t.Fatalf("progress tail = %s, %s", tail[0].Accion, tail[1].Accion)
	}
	if tail[0].UnidadOrigenID != sc.legal.ID || tail[0].UnidadDestinoID != sc.archivo.ID {
		t.Fatalf("redirect entry = %+v", tail[0])
	}

	if len(sc.queue.msgs) != 2 || sc.queue.msgs[1].EnvioID != out.Nuevo.ID {
		t.Fatalf("events = %+v", sc.queue.msgs)
	}
}

func TestPublishFailureDoesNotFailWorkflow(t *testing.T) {
	sc := newScenario(t)
	sc.queue.err = errors.New("queue down")
	out := sc.send(t, sc.legal)
	if out.Envio.ID == 0 {
		t.Fatal("dispatch not stored")
	}
}

func TestSendToUnitRecordsActivity(t *testing.T) {
	sc := newScenario(t)
	log := &capturedActivity{}
	sc.svc.Activity = log

	if _, err := sc.svc.SendToUnit(context.Background(), SendInput{HojaID: sc.hojaID, UnidadID: sc.cerrada.ID}, sc.userID, ""); err == nil {
		t.Fatal("expected an error for an inactive unit")
	}
	if len(log.entries) != 0 {
		t.Fatalf("failed send recorded: %+v", log.entries)
	}

	sc.send(t, sc.legal)
	if len(log.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(log.entries))
	}
	e := log.entries[0]
	if e.Tipo != historial.TipoEnviado || e.HojaID != sc.hojaID || e.NumeroHR != "HR-2025-001" || e.Destinatario != "Unidad Legal" || e.UsuarioID != sc.userID {
		t.Fatalf("entry = %+v", e)
	}
}

func TestGenericCreateAndStateUpdate(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()

	if _, err := sc.svc.Create(ctx, CreateInput{HojaID: sc.hojaID}, sc.userID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := sc.svc.Create(ctx, CreateInput{HojaID: 77, DestinatarioNombre: "X"}, sc.userID, ""); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if _, err := sc.svc.Create(ctx, CreateInput{HojaID: sc.hojaID, DestinatarioNombre: "X", UnidadDestinoID: 77}, sc.userID, ""); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference for unit, got %v", err)
	}

	pending, err := sc.svc.Create(ctx, CreateInput{HojaID: sc.hojaID, DestinatarioNombre: " Dr. Pérez "}, sc.userID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pending.Estado != EstadoPendiente || pending.FechaEnvio != nil || pending.DestinatarioNombre != "Dr. Pérez" {
		t.Fatalf("pending = %+v", pending)
	}
	if len(sc.queue.msgs) != 0 {
		t.Fatal("pending dispatch should not publish")
	}

	if _, err := sc.svc.UpdateState(ctx, pending.ID, "extraviado"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := sc.svc.UpdateState(ctx, pending.ID, "recibido"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	moved, err := sc.svc.UpdateState(ctx, pending.ID, "enviado")
	if err != nil || moved.Estado != EstadoEnviado || moved.FechaEnvio == nil {
		t.Fatalf("UpdateState = %+v, %v", moved, err)
	}

	sent, err := sc.svc.Create(ctx, CreateInput{HojaID: sc.hojaID, DestinatarioNombre: "Legal", UnidadDestinoID: sc.legal.ID}, sc.userID, "")
	if err != nil || sent.Estado != EstadoEnviado {
		t.Fatalf("Create with unit = %+v, %v", sent, err)
	}
	if len(sc.queue.msgs) != 1 {
		t.Fatalf("expected one event, got %d", len(sc.queue.msgs))
	}
}

func TestForUserUnitAndDestinations(t *testing.T) {
	sc := newScenario(t)
	ctx := context.Background()
	sc.send(t, sc.legal)
	sc.send(t, sc.archivo)

	list, err := sc.svc.ForUserUnit(ctx, sc.userID, 50, 0)
	if err != nil {
		t.Fatalf("ForUserUnit: %v", err)
	}
	if len(list) != 1 || list[0].UnidadDestinoID != sc.legal.ID {
		t.Fatalf("my unit = %+v", list)
	}
	if _, err := sc.svc.ForUserUnit(ctx, 0, 50, 0); !errors.Is(err, ErrNoUnit) {
		t.Fatalf("expected ErrNoUnit, got %v", err)
	}

	dest, err := sc.svc.Destinations(ctx)
	if err != nil {
		t.Fatalf("Destinations: %v", err)
	}
	if len(dest) != 2 {
		t.Fatalf("expected the two active units, got %+v", dest)
	}
}
