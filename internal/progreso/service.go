package progreso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hojaruta-backend/internal/shared/metrics"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/shared/telemetry"
)

// DocumentStore is the view of hojas_ruta the recorder needs.
type DocumentStore interface {
	ActiveExists(ctx context.Context, id int64) (bool, error)
	SetUbicacion(ctx context.Context, id int64, ubicacion string) error
}

// Service records and reads progress entries.
type Service struct {
	Repo Repo
	Docs DocumentStore
	Tx   db.TxRunner
}

// NewService constructs a Service.
func NewService(repo Repo, docs DocumentStore, tx db.TxRunner) *Service {
	return &Service{Repo: repo, Docs: docs, Tx: tx}
}

// AddInput is a manual progress entry.
type AddInput struct {
	HojaRutaID        int64  `json:"hoja_ruta_id"`
	UbicacionAnterior string `json:"ubicacion_anterior"`
	UbicacionActual   string `json:"ubicacion_actual"`
	Notas             string `json:"notas"`
}

// BulkError names an item of a batch that could not be recorded.
type BulkError struct {
	HojaRutaID int64  `json:"hoja_ruta_id"`
	Error      string `json:"error"`
}

// BulkResult is the outcome of AddMany.
type BulkResult struct {
	Registrados []Entry
	Errores     []BulkError
}

// Record appends an entry. Workflows call it inside their own transaction.
func (s *Service) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.HojaRutaID <= 0 || strings.TrimSpace(e.UbicacionActual) == "" || e.Accion == "" {
		return Entry{}, ErrInvalidInput
	}
	return s.Repo.Insert(ctx, e)
}

// Add validates in, appends it and moves the document to the new location
// in one transaction.
func (s *Service) Add(ctx context.Context, in AddInput, responsableID int64) (Entry, error) {
	in.UbicacionActual = strings.TrimSpace(in.UbicacionActual)
	if in.HojaRutaID <= 0 {
		return Entry{}, fmt.Errorf("hoja_ruta_id es requerido: %w", ErrInvalidInput)
	}
	if in.UbicacionActual == "" {
		return Entry{}, fmt.Errorf("ubicacion_actual es requerida: %w", ErrInvalidInput)
	}

	var out Entry
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.Docs.ActiveExists(ctx, in.HojaRutaID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDocumentNotFound
		}
		out, err = s.Repo.Insert(ctx, Entry{
			HojaRutaID:        in.HojaRutaID,
			UbicacionAnterior: strings.TrimSpace(in.UbicacionAnterior),
			UbicacionActual:   in.UbicacionActual,
			Accion:            AccionActualizado,
			ResponsableID:     responsableID,
			Notas:             strings.TrimSpace(in.Notas),
		})
		if err != nil {
			return err
		}
		return s.Docs.SetUbicacion(ctx, in.HojaRutaID, in.UbicacionActual)
	})
	if err != nil {
		return Entry{}, err
	}
	telemetry.Info("progreso.added", map[string]any{"hoja_id": in.HojaRutaID, "progreso_id": out.ID})
	return out, nil
}

// AddMany records each item independently. A failing item does not undo the
// others.
func (s *Service) AddMany(ctx context.Context, items []AddInput, responsableID int64) (BulkResult, error) {
	if len(items) == 0 {
		return BulkResult{}, fmt.Errorf("hojas no puede estar vacío: %w", ErrInvalidInput)
	}
	res := BulkResult{Registrados: []Entry{}, Errores: []BulkError{}}
	for _, item := range items {
		e, err := s.Add(ctx, item, responsableID)
		if err != nil {
			if !errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrDocumentNotFound) {
				telemetry.Warn("progreso.bulk_item_failed", map[string]any{"hoja_id": item.HojaRutaID, "error": err})
			}
			res.Errores = append(res.Errores, BulkError{HojaRutaID: item.HojaRutaID, Error: err.Error()})
			continue
		}
		res.Registrados = append(res.Registrados, e)
	}
	metrics.AddProgressBulk(len(items), len(res.Errores))
	return res, nil
}

// History returns the entries of a document, oldest first.
func (s *Service) History(ctx context.Context, hojaID int64) ([]Entry, error) {
	list, err := s.Repo.History(ctx, hojaID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list, nil
}

// Latest returns a document's newest entry.
func (s *Service) Latest(ctx context.Context, hojaID int64) (Entry, error) {
	return s.Repo.Latest(ctx, hojaID)
}

// Dashboard lists the newest entry of each document.
func (s *Service) Dashboard(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	return s.Repo.LatestPerDocument(ctx, limit, offset)
}

// Update corrects an entry.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (Entry, error) {
	if p.empty() {
		return Entry{}, fmt.Errorf("no hay campos para actualizar: %w", ErrInvalidInput)
	}
	if p.UbicacionActual != nil && strings.TrimSpace(*p.UbicacionActual) == "" {
		return Entry{}, fmt.Errorf("ubicacion_actual no puede estar vacía: %w", ErrInvalidInput)
	}
	return s.Repo.Update(ctx, id, p)
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.Repo.Delete(ctx, id)
}

// Responses numbers the routing hops of a document for the print preview.
func (s *Service) Responses(ctx context.Context, hojaID int64) ([]Respuesta, error) {
	history, err := s.Repo.History(ctx, hojaID)
	if err != nil {
		return nil, err
	}
	out := []Respuesta{}
	for _, e := range history {
		if !responseActions[strings.ToLower(e.Accion)] {
			continue
		}
		destino := e.UnidadDestinoNombre
		if destino == "" {
			destino = e.UbicacionActual
		}
		out = append(out, Respuesta{
			Seccion:        len(out) + 1,
			Destino:        destino,
			FechaRecepcion: e.FechaRegistro,
			Instrucciones:  e.Notas,
			Respuesta:      e.Respuesta,
			Accion:         e.Accion,
			Responsable:    e.ResponsableNombre,
		})
	}
	return out, nil
}
