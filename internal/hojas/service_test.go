package hojas

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/notificaciones"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/shared/storage/db"
)

type testEnv struct {
	svc      *Service
	repo     *MemoryRepo
	progress *progreso.Service
	notes    *notificaciones.Service
}

func fixedClock(date string) ledger.Clock {
	t, err := time.Parse(ledger.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return ledger.Clock{Now: func() time.Time { return t.Add(15 * time.Hour) }, Location: time.UTC}
}

func newTestEnv(today string) testEnv {
	repo := NewMemoryRepo()
	tx := &db.MemoryTx{}
	progress := progreso.NewService(progreso.NewMemoryRepo(), repo, tx)
	notes := notificaciones.NewService(notificaciones.NewMemoryRepo(), nil, nil)
	svc := NewService(repo, progress, notes, tx, fixedClock(today), ledger.DefaultCapacity)
	notes.Due = svc
	return testEnv{svc: svc, repo: repo, progress: progress, notes: notes}
}

func mustCreate(t *testing.T, svc *Service, body map[string]any) Hoja {
	t.Helper()
	h, err := svc.Create(context.Background(), body, 9)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return h
}

func TestCreateAppliesDefaultsAndDetails(t *testing.T) {
	env := newTestEnv("2025-03-10")
	h := mustCreate(t, env.svc, map[string]any{
		"numero_hr":         "HR-001",
		"referencia":        "Solicitud de material",
		"procedencia":       "Dirección Jurídica",
		"numero_fojas":      "12",
		"fecha_limite":      "2025-03-12T00:00:00.000Z",
		"estado":            "enviada",
		"destino_principal": "Archivo",
		"destino_1":         "Legal",
		"fecha_enviado_1":   "2025-03-01",
	})
	if h.UbicacionActual != DefaultUbicacion || h.ResponsableActual != DefaultResponsable {
		t.Fatalf("defaults not applied: %+v", h)
	}
	if h.EstadoCumplimiento != CumplimientoEnProceso {
		t.Fatalf("estado_cumplimiento = %q, want en_proceso", h.EstadoCumplimiento)
	}
	if h.NumeroFojas != 12 || h.FechaLimite != "2025-03-12" || h.UsuarioCreadorID != 9 {
		t.Fatalf("fields not parsed: %+v", h)
	}
	if h.DiasParaVencimiento == nil || *h.DiasParaVencimiento != 2 || h.AlertaVencimiento != "Crítica" {
		t.Fatalf("deadline fields = %v %q", h.DiasParaVencimiento, h.AlertaVencimiento)
	}
	if h.Detalles["destino_principal"] != "Archivo" {
		t.Fatalf("destino_principal not stored in detalles: %v", h.Detalles)
	}
	if _, legacy := h.Detalles["destino_1"]; legacy {
		t.Fatalf("legacy key kept: %v", h.Detalles)
	}
	l := ledger.Parse(h.Detalles, ledger.DefaultCapacity)
	if s, ok := l.Section(1); !ok || s.Destino != "Legal" {
		t.Fatalf("section 1 = %+v, %v", s, ok)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv("2025-03-10")
	cases := []struct {
		name string
		body map[string]any
		want error
	}{
		{"missing referencia", map[string]any{"numero_hr": "A", "procedencia": "B"}, ErrInvalidInput},
		{"bad estado", map[string]any{"numero_hr": "A", "referencia": "R", "procedencia": "B", "estado": "perdida"}, ErrInvalidInput},
		{"bad date", map[string]any{"numero_hr": "A", "referencia": "R", "procedencia": "B", "fecha_limite": "12/03/2025"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Create(context.Background(), tc.body, 1); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-1", "referencia": "R", "procedencia": "P"})
	if _, err := env.svc.Create(context.Background(), map[string]any{"numero_hr": "HR-1", "referencia": "R", "procedencia": "P"}, 1); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListOrdersByUrgency(t *testing.T) {
	env := newTestEnv("2025-03-10")
	mustCreate(t, env.svc, map[string]any{"numero_hr": "normal", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-30"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "urgente", "referencia": "R", "procedencia": "P", "prioridad": "urgente", "fecha_limite": "2025-03-20"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "vencida", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-01"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "cercana", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-11"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "hecha", "referencia": "R", "procedencia": "P", "estado": "finalizada"})

	list, total, err := env.svc.List(context.Background(), Filter{IncluirCompletadas: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	want := []string{"vencida", "urgente", "cercana", "normal", "hecha"}
	for i, w := range want {
		if list[i].NumeroHR != w {
			t.Fatalf("position %d = %q, want %q", i, list[i].NumeroHR, w)
		}
	}
	if list[0].AlertaVencimiento != "Vencida" || list[3].AlertaVencimiento != "Normal" {
		t.Fatalf("alerts = %q, %q", list[0].AlertaVencimiento, list[3].AlertaVencimiento)
	}

	open, total, err := env.svc.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 || len(open) != 4 {
		t.Fatalf("incluir_completadas=false returned %d", total)
	}

	found, _, err := env.svc.List(context.Background(), Filter{Query: "URGEN", IncluirCompletadas: true})
	if err != nil || len(found) != 1 || found[0].NumeroHR != "urgente" {
		t.Fatalf("query search = %v, %v", found, err)
	}
}

func TestUpdateReplacesDetails(t *testing.T) {
	env := newTestEnv("2025-03-10")
	h := mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-9", "referencia": "R", "procedencia": "P", "destino_principal": "Legal"})

	updated, err := env.svc.Update(context.Background(), h.ID, map[string]any{"referencia": "Nueva", "estado": "archivada", "nota": "x"}, 1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Referencia != "Nueva" || updated.EstadoCumplimiento != CumplimientoCompletado || updated.FechaCompletado == nil {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, ok := updated.Detalles["destino_principal"]; ok {
		t.Fatalf("detalles not replaced: %v", updated.Detalles)
	}
	if updated.Detalles["nota"] != "x" {
		t.Fatalf("detalles = %v", updated.Detalles)
	}

	if _, err := env.svc.Update(context.Background(), h.ID, map[string]any{"id": 4}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty update, got %v", err)
	}
	if _, err := env.svc.Update(context.Background(), 999, map[string]any{"referencia": "x"}, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteNotifiesCreator(t *testing.T) {
	env := newTestEnv("2025-03-10")
	h := mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-5", "referencia": "R", "procedencia": "P"})

	done, err := env.svc.Complete(context.Background(), h.ID, 3)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.EstadoCumplimiento != CumplimientoCompletado || done.FechaCompletado == nil {
		t.Fatalf("not completed: %+v", done)
	}
	notes, err := env.notes.List(context.Background(), 9, true, 10, 0)
	if err != nil {
		t.Fatalf("List notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Tipo != notificaciones.TipoCompletado || notes[0].HojaRutaID != h.ID {
		t.Fatalf("notifications = %+v", notes)
	}
	last, err := env.progress.Latest(context.Background(), h.ID)
	if err != nil || last.Accion != progreso.AccionCompletado {
		t.Fatalf("latest progress = %+v, %v", last, err)
	}
}

func TestStateChanges(t *testing.T) {
	env := newTestEnv("2025-03-10")
	h := mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-6", "referencia": "R", "procedencia": "P"})

	if _, err := env.svc.SetCumplimiento(context.Background(), h.ID, "archivado"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	got, err := env.svc.SetCumplimiento(context.Background(), h.ID, "VENCIDO")
	if err != nil || got.EstadoCumplimiento != CumplimientoVencido {
		t.Fatalf("SetCumplimiento = %+v, %v", got, err)
	}

	if _, err := env.svc.SetEstado(context.Background(), h.ID, "extraviada", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	got, err = env.svc.SetEstado(context.Background(), h.ID, "recibida", "")
	if err != nil || got.Estado != EstadoRecibida || got.EstadoCumplimiento != CumplimientoVencido {
		t.Fatalf("SetEstado recibida = %+v, %v", got, err)
	}
	got, err = env.svc.SetEstado(context.Background(), h.ID, "en_proceso", "")
	if err != nil || got.EstadoCumplimiento != CumplimientoEnProceso {
		t.Fatalf("SetEstado en_proceso = %+v, %v", got, err)
	}
}

func TestMoveRecordsProgress(t *testing.T) {
	env := newTestEnv("2025-03-10")
	h := mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-7", "referencia": "R", "procedencia": "P"})

	if _, err := env.svc.Move(context.Background(), h.ID, MoveInput{}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	moved, err := env.svc.Move(context.Background(), h.ID, MoveInput{UbicacionActual: "Archivo Central", ResponsableActual: "Ana"}, 4)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.UbicacionActual != "Archivo Central" || moved.ResponsableActual != "Ana" {
		t.Fatalf("unexpected move %+v", moved)
	}
	history, err := env.progress.History(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	e := history[len(history)-1]
	if e.Accion != progreso.AccionUbicacionCambiada || e.UbicacionAnterior != DefaultUbicacion || e.ResponsableID != 4 {
		t.Fatalf("progress entry = %+v", e)
	}
}

func TestStatsAndDeadlineSweep(t *testing.T) {
	env := newTestEnv("2025-03-10")
	mustCreate(t, env.svc, map[string]any{"numero_hr": "a", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-08"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "b", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-12"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "c", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-16"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "d", "referencia": "R", "procedencia": "P", "estado": "en_proceso"})

	s, err := env.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Total: 4, Pendientes: 3, EnProceso: 1, Atrasadas: 1, Criticas: 1, PorVencer: 1}
	if s != want {
		t.Fatalf("stats = %+v, want %+v", s, want)
	}

	due, err := env.svc.DueSoon(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("DueSoon: %v", err)
	}
	if len(due) != 3 || due[0].NumeroHR != "a" {
		t.Fatalf("due soon = %+v", due)
	}

	created, err := env.notes.SweepDeadlines(context.Background(), 3)
	if err != nil || created != 1 {
		t.Fatalf("first sweep created %d, %v", created, err)
	}
	created, err = env.notes.SweepDeadlines(context.Background(), 3)
	if err != nil || created != 0 {
		t.Fatalf("second sweep created %d, %v", created, err)
	}
}

func TestRealtimeDashboard(t *testing.T) {
	env := newTestEnv("2025-03-10")
	env.svc.Inbox = env.notes
	ctx := context.Background()
	mustCreate(t, env.svc, map[string]any{"numero_hr": "sin-fecha", "referencia": "R", "procedencia": "P"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "mes", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-25"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "lejana", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-05-30"})
	mustCreate(t, env.svc, map[string]any{"numero_hr": "atrasada", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-05"})
	done := mustCreate(t, env.svc, map[string]any{"numero_hr": "cerrada", "referencia": "R", "procedencia": "P", "fecha_limite": "2025-03-11"})
	if _, err := env.svc.Complete(ctx, done.ID, 9); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	rt, err := env.svc.Realtime(ctx, 9)
	if err != nil {
		t.Fatalf("Realtime: %v", err)
	}
	if len(rt.HojasRecientes) != 4 || rt.HojasRecientes[0].NumeroHR != "atrasada" {
		t.Fatalf("recent = %+v", rt.HojasRecientes)
	}
	var pending []string
	for _, h := range rt.TareasPendientes {
		pending = append(pending, h.NumeroHR)
	}
	if strings.Join(pending, ",") != "atrasada,mes,sin-fecha" {
		t.Fatalf("pending order = %v", pending)
	}
	if rt.TareasPendientes[0].DiasParaVencimiento == nil || *rt.TareasPendientes[0].DiasParaVencimiento != -5 {
		t.Fatalf("pending not annotated: %+v", rt.TareasPendientes[0])
	}
	if rt.Estadisticas.Total != 5 || rt.Estadisticas.Completadas != 1 {
		t.Fatalf("stats = %+v", rt.Estadisticas)
	}
	if len(rt.Notificaciones) != 1 || rt.Notificaciones[0].Tipo != notificaciones.TipoCompletado {
		t.Fatalf("notifications = %+v", rt.Notificaciones)
	}

	rt, err = env.svc.Realtime(ctx, 4)
	if err != nil || len(rt.Notificaciones) != 0 {
		t.Fatalf("other user sees notifications: %+v, %v", rt.Notificaciones, err)
	}
}

func TestCreateAndUpdateRecordActivity(t *testing.T) {
	env := newTestEnv("2025-03-10")
	log := historial.NewService(historial.NewMemoryRepo(), fixedClock("2025-03-10"))
	env.svc.Activity = log
	ctx := context.Background()

	h := mustCreate(t, env.svc, map[string]any{"numero_hr": "HR-7", "referencia": "R", "procedencia": "P"})
	if _, err := env.svc.Update(ctx, h.ID, map[string]any{"referencia": "Nueva"}, 4); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := env.svc.Update(ctx, h.ID, map[string]any{}, 4); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	cats, err := log.Categorias(ctx)
	if err != nil {
		t.Fatalf("Categorias: %v", err)
	}
	if len(cats.Anadidos) != 1 || cats.Anadidos[0].HojaID != h.ID || cats.Anadidos[0].UsuarioID != 9 {
		t.Fatalf("additions = %+v", cats.Anadidos)
	}
	if len(cats.Editados) != 1 || cats.Editados[0].UsuarioID != 4 || string(cats.Editados[0].DatosNuevos) != `{"referencia":"Nueva"}` {
		t.Fatalf("edits = %+v", cats.Editados)
	}
}
