package hojas

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Hoja
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: map[int64]Hoja{}, now: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, h Hoja) (Hoja, error) {
	if err := ctx.Err(); err != nil {
		return Hoja{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.NumeroHR == h.NumeroHR {
			return Hoja{}, ErrDuplicate
		}
	}
	r.nextID++
	now := r.now().UTC()
	h.ID = r.nextID
	h.Activo = true
	h.FechaIngreso = now
	h.CreatedAt = now
	h.UpdatedAt = now
	h.Detalles = cloneMap(h.Detalles)
	r.items[h.ID] = h
	return clone(h), nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Hoja, error) {
	if err := ctx.Err(); err != nil {
		return Hoja{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.items[id]
	if !ok || !h.Activo {
		return Hoja{}, ErrNotFound
	}
	return clone(h), nil
}

// GetForUpdate behaves like Get. Callers serialize through db.MemoryTx.
func (r *MemoryRepo) GetForUpdate(ctx context.Context, id int64) (Hoja, error) {
	return r.Get(ctx, id)
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Hoja, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	r.mu.RLock()
	matched := []Hoja{}
	for _, h := range r.items {
		if !h.Activo {
			continue
		}
		if !f.IncluirCompletadas && closed(h) {
			continue
		}
		if f.EstadoCumplimiento != "" && h.EstadoCumplimiento != f.EstadoCumplimiento {
			continue
		}
		if q != "" && !matchesQuery(h, q) {
			continue
		}
		matched = append(matched, clone(h))
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if ra, rb := rank(a, f.Today), rank(b, f.Today); ra != rb {
			return ra < rb
		}
		da, okA := daysUntil(a.FechaLimite, f.Today)
		db, okB := daysUntil(b.FechaLimite, f.Today)
		if okA != okB {
			return okA
		}
		if okA && da != db {
			return da < db
		}
		if !a.FechaIngreso.Equal(b.FechaIngreso) {
			return a.FechaIngreso.After(b.FechaIngreso)
		}
		return a.ID > b.ID
	})
	total := len(matched)
	return page(matched, f.Limit, f.Offset), total, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id int64, p Patch) (Hoja, error) {
	if err := ctx.Err(); err != nil {
		return Hoja{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok || !h.Activo {
		return Hoja{}, ErrNotFound
	}
	if p.NumeroHR != nil && *p.NumeroHR != h.NumeroHR {
		for otherID, other := range r.items {
			if otherID != id && other.NumeroHR == *p.NumeroHR {
				return Hoja{}, ErrDuplicate
			}
		}
	}
	applyPatch(&h, p)
	if p.Detalles != nil {
		h.Detalles = cloneMap(p.Detalles)
	}
	if p.FechaCompletado != nil {
		t := *p.FechaCompletado
		h.FechaCompletado = &t
	}
	h.UpdatedAt = r.now().UTC()
	r.items[id] = h
	return clone(h), nil
}

func (r *MemoryRepo) Stats(ctx context.Context, today string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, h := range r.items {
		if !h.Activo {
			continue
		}
		s.Total++
		switch h.EstadoCumplimiento {
		case CumplimientoPendiente:
			s.Pendientes++
		case CumplimientoEnProceso:
			s.EnProceso++
		case CumplimientoCompletado:
			s.Completadas++
		case CumplimientoVencido:
			s.Vencidas++
		}
		if h.EstadoCumplimiento == CumplimientoCompletado {
			continue
		}
		d, ok := daysUntil(h.FechaLimite, today)
		switch {
		case !ok:
		case d < 0:
			s.Atrasadas++
		case d <= 3:
			s.Criticas++
		case d <= 7:
			s.PorVencer++
		}
	}
	return s, nil
}

func (r *MemoryRepo) DueWithin(ctx context.Context, today string, dias, limit int) ([]Hoja, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Hoja{}
	for _, h := range r.items {
		if !h.Activo || h.EstadoCumplimiento == CumplimientoCompletado {
			continue
		}
		if d, ok := daysUntil(h.FechaLimite, today); ok && d <= dias {
			out = append(out, clone(h))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FechaLimite != out[j].FechaLimite {
			return out[i].FechaLimite < out[j].FechaLimite
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

func (r *MemoryRepo) Recent(ctx context.Context, limit int) ([]Hoja, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Hoja{}
	for _, h := range r.items {
		if h.Activo && h.EstadoCumplimiento != CumplimientoCompletado {
			out = append(out, clone(h))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, 0), nil
}

func (r *MemoryRepo) Pending(ctx context.Context, today string, dias, limit int) ([]Hoja, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Hoja{}
	for _, h := range r.items {
		if !h.Activo || h.EstadoCumplimiento == CumplimientoCompletado {
			continue
		}
		if d, ok := daysUntil(h.FechaLimite, today); !ok || d <= dias {
			out = append(out, clone(h))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ui, uj := urgency(out[i], today), urgency(out[j], today)
		if ui != uj {
			return ui < uj
		}
		if out[i].FechaLimite != out[j].FechaLimite {
			return out[i].FechaLimite < out[j].FechaLimite
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

func (r *MemoryRepo) ActiveExists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.items[id]
	return ok && h.Activo, nil
}

func (r *MemoryRepo) SetUbicacion(ctx context.Context, id int64, ubicacion string) error {
	_, err := r.Update(ctx, id, Patch{UbicacionActual: &ubicacion})
	return err
}

func closed(h Hoja) bool {
	return h.EstadoCumplimiento == CumplimientoCompletado || h.Estado == EstadoFinalizada || h.Estado == EstadoArchivada
}

func rank(h Hoja, today string) int {
	if h.EstadoCumplimiento == CumplimientoVencido {
		return 1
	}
	if d, ok := daysUntil(h.FechaLimite, today); ok && d < 0 && h.EstadoCumplimiento != CumplimientoCompletado {
		return 1
	}
	switch h.Prioridad {
	case "urgente":
		return 2
	case "prioritario":
		return 3
	}
	return 4
}

// urgency buckets a document by days to its deadline: overdue, 3 days,
// 7 days, later, none.
func urgency(h Hoja, today string) int {
	d, ok := daysUntil(h.FechaLimite, today)
	switch {
	case !ok:
		return 5
	case d < 0:
		return 1
	case d <= 3:
		return 2
	case d <= 7:
		return 3
	}
	return 4
}

func matchesQuery(h Hoja, q string) bool {
	for _, field := range []string{h.NumeroHR, h.Referencia, h.Procedencia, h.UbicacionActual, h.NombreSolicitante, h.TelefonoCelular} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func page(list []Hoja, limit, offset int) []Hoja {
	if offset >= len(list) {
		return []Hoja{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func clone(h Hoja) Hoja {
	h.Detalles = cloneMap(h.Detalles)
	if h.FechaCompletado != nil {
		t := *h.FechaCompletado
		h.FechaCompletado = &t
	}
	return h
}

// cloneMap copies the top level only. Nested values are replaced wholesale
// on update and never mutated in place.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
