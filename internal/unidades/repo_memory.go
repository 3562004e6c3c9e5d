package unidades

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
	data   map[int64]Unidad
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[int64]Unidad)}
}

func (r *MemoryRepo) List(ctx context.Context, includeInactive bool) ([]Unidad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Unidad{}
	for _, u := range r.data {
		if includeInactive || u.Activo {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Unidad, error) {
	if err := ctx.Err(); err != nil {
		return Unidad{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.data[id]
	if !ok {
		return Unidad{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) Create(ctx context.Context, u Unidad) (Unidad, error) {
	if err := ctx.Err(); err != nil {
		return Unidad{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(u.Nombre, 0) {
		return Unidad{}, ErrDuplicate
	}
	r.nextID++
	now := time.Now().UTC()
	u.ID = r.nextID
	u.Activo = true
	u.CreatedAt = now
	u.UpdatedAt = now
	r.data[u.ID] = u
	return u, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id int64, upd Update) (Unidad, error) {
	if err := ctx.Err(); err != nil {
		return Unidad{}, err
	}
	if upd.empty() {
		return Unidad{}, ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return Unidad{}, ErrNotFound
	}
	if upd.Nombre != nil {
		if r.nameTaken(*upd.Nombre, id) {
			return Unidad{}, ErrDuplicate
		}
		u.Nombre = *upd.Nombre
	}
	if upd.Descripcion != nil {
		u.Descripcion = *upd.Descripcion
	}
	if upd.Responsable != nil {
		u.Responsable = *upd.Responsable
	}
	if upd.Activo != nil {
		u.Activo = *upd.Activo
	}
	u.UpdatedAt = time.Now().UTC()
	r.data[id] = u
	return u, nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, id int64) error {
	f := false
	_, err := r.Update(ctx, id, Update{Activo: &f})
	return err
}

func (r *MemoryRepo) nameTaken(name string, except int64) bool {
	for id, u := range r.data {
		if id != except && strings.EqualFold(u.Nombre, name) {
			return true
		}
	}
	return false
}

var _ Repo = (*MemoryRepo)(nil)
