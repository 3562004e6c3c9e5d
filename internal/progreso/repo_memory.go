package progreso

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	entries []Entry
	now     func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: time.Now}
}

func (r *MemoryRepo) Insert(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	e.FechaRegistro = r.now().UTC()
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (r *MemoryRepo) History(ctx context.Context, hojaID int64) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Entry{}
	for _, e := range r.entries {
		if e.HojaRutaID == hojaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Latest(ctx context.Context, hojaID int64) (Entry, error) {
	history, err := r.History(ctx, hojaID)
	if err != nil {
		return Entry{}, err
	}
	if len(history) == 0 {
		return Entry{}, ErrNotFound
	}
	return history[len(history)-1], nil
}

func (r *MemoryRepo) LatestPerDocument(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	latest := map[int64]Entry{}
	for _, e := range r.entries {
		latest[e.HojaRutaID] = e
	}
	r.mu.RUnlock()

	out := make([]Entry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset >= len(out) {
		return []Entry{}, total, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], total, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id int64, p Patch) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if p.empty() {
		return Entry{}, ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID != id {
			continue
		}
		if p.UbicacionActual != nil {
			r.entries[i].UbicacionActual = *p.UbicacionActual
		}
		if p.Notas != nil {
			r.entries[i].Notas = *p.Notas
		}
		if p.Respuesta != nil {
			r.entries[i].Respuesta = *p.Respuesta
		}
		return r.entries[i], nil
	}
	return Entry{}, ErrNotFound
}

func (r *MemoryRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
