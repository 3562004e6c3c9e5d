package locaciones

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
	items  []Locacion
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Locacion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Locacion{}
	for _, l := range r.items {
		if l.Activo {
			out = append(out, l)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tipo != out[j].Tipo {
			return out[i].Tipo < out[j].Tipo
		}
		return out[i].Nombre < out[j].Nombre
	})
	return out, nil
}

func (r *MemoryRepo) Create(ctx context.Context, l Locacion) (Locacion, error) {
	if err := ctx.Err(); err != nil {
		return Locacion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Nombre, l.Nombre) {
			return Locacion{}, ErrDuplicate
		}
	}
	r.nextID++
	l.ID = r.nextID
	if l.Tipo == "" {
		l.Tipo = TipoCentroAcogida
	}
	l.CreatedAt = time.Now().UTC()
	r.items = append(r.items, l)
	return l, nil
}

var _ Repo = (*MemoryRepo)(nil)
