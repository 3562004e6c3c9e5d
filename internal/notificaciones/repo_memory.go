package notificaciones

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
	data   []Notificacion
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, n Notificacion) (Notificacion, error) {
	if err := ctx.Err(); err != nil {
		return Notificacion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	n.Leida = false
	n.CreatedAt = time.Now().UTC()
	r.data = append(r.data, n)
	return n, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]Notificacion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Notificacion{}
	for _, n := range r.data {
		if n.UsuarioID != userID || (onlyUnread && n.Leida) {
			continue
		}
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []Notificacion{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (r *MemoryRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	list, err := r.ListByUser(ctx, userID, true, 0, 0)
	return len(list), err
}

func (r *MemoryRepo) MarkRead(ctx context.Context, id, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		if r.data[i].ID == id && r.data[i].UsuarioID == userID {
			now := time.Now().UTC()
			r.data[i].Leida = true
			r.data[i].LeidaEn = &now
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for i := range r.data {
		if r.data[i].UsuarioID == userID && !r.data[i].Leida {
			r.data[i].Leida = true
			r.data[i].LeidaEn = &now
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) HasUnread(ctx context.Context, hojaID, userID int64, tipo string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.data {
		if n.HojaRutaID == hojaID && n.UsuarioID == userID && n.Tipo == tipo && !n.Leida {
			return true, nil
		}
	}
	return false, nil
}

var _ Repo = (*MemoryRepo)(nil)
