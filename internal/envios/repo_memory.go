package envios

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Envio
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: map[int64]Envio{}, now: time.Now}
}

func (r *MemoryRepo) Insert(ctx context.Context, e Envio) (Envio, error) {
	if err := ctx.Err(); err != nil {
		return Envio{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now().UTC()
	e.ID = r.nextID
	e.Instrucciones = normalizeInstrucciones(e.Instrucciones)
	e.CreatedAt = now
	e.UpdatedAt = now
	r.items[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Envio, error) {
	if err := ctx.Err(); err != nil {
		return Envio{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return Envio{}, ErrNotFound
	}
	return e, nil
}

// GetForUpdate behaves like Get. Callers serialize through db.MemoryTx.
func (r *MemoryRepo) GetForUpdate(ctx context.Context, id int64) (Envio, error) {
	return r.Get(ctx, id)
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Envio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Envio{}
	for _, e := range r.items {
		if f.HojaID > 0 && e.HojaID != f.HojaID {
			continue
		}
		if f.UnidadDestinoID > 0 && e.UnidadDestinoID != f.UnidadDestinoID {
			continue
		}
		if f.Estado != "" && e.Estado != f.Estado {
			continue
		}
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset >= len(out) {
		return []Envio{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id int64, t Transition) (Envio, error) {
	if err := ctx.Err(); err != nil {
		return Envio{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return Envio{}, ErrNotFound
	}
	at := t.At
	e.Estado = t.To
	e.UpdatedAt = at
	switch t.To {
	case EstadoEnviado:
		if e.FechaEnvio == nil {
			e.FechaEnvio = &at
		}
	case EstadoRecibido:
		e.FechaRecepcion = &at
	case EstadoRespondido:
		e.Respuesta = t.Respuesta
		e.FechaRespuesta = &at
	case EstadoRedirigido:
		e.RedirigidoAUnidadID = t.RedirigidoA
		e.RedirigidoPor = t.RedirigidoPor
		e.FechaRedireccion = &at
	}
	r.items[id] = e
	return e, nil
}

var _ Repo = (*MemoryRepo)(nil)
