package historial

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
	entries []Actividad
	now     func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: time.Now}
}

func (r *MemoryRepo) Insert(ctx context.Context, a Actividad) (Actividad, error) {
	if err := ctx.Err(); err != nil {
		return Actividad{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.FechaActividad = r.now().UTC()
	r.entries = append(r.entries, a)
	return a, nil
}

func (r *MemoryRepo) List(ctx context.Context, tipo string, limit, offset int) ([]Actividad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := []Actividad{}
	for _, a := range r.entries {
		if tipo == "" || a.Tipo == tipo {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].FechaActividad.Equal(matched[j].FechaActividad) {
			return matched[i].FechaActividad.After(matched[j].FechaActividad)
		}
		return matched[i].ID > matched[j].ID
	})
	if offset >= len(matched) {
		return []Actividad{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepo) Counts(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]int{}
	for _, a := range r.entries {
		if !a.FechaActividad.Before(since) {
			out[a.Tipo]++
		}
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
