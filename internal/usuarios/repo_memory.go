package usuarios

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// UnitNamer resolves unit names for the in-memory repo.
type UnitNamer func(ctx context.Context, id int64) (string, bool)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu        sync.RWMutex
	nextID    int64
	data      map[int64]Usuario
	roles     []Rol
	unitNames UnitNamer
}

// NewMemoryRepo constructs a MemoryRepo seeded with the default roles.
// unitNames may be nil.
func NewMemoryRepo(unitNames UnitNamer) *MemoryRepo {
	return &MemoryRepo{
		data:      make(map[int64]Usuario),
		roles:     append([]Rol(nil), DefaultRoles...),
		unitNames: unitNames,
	}
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Usuario, error) {
	if err := ctx.Err(); err != nil {
		return Usuario{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.data[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return r.decorate(ctx, u), nil
}

func (r *MemoryRepo) GetByUsername(ctx context.Context, username string) (Usuario, error) {
	if err := ctx.Err(); err != nil {
		return Usuario{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.data {
		if u.Activo && strings.EqualFold(u.Username, username) {
			return r.decorate(ctx, u), nil
		}
	}
	return Usuario{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Usuario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Usuario{}
	for _, u := range r.data {
		if !f.IncludeInactive && !u.Activo {
			continue
		}
		if f.UnidadID > 0 && u.UnidadID != f.UnidadID {
			continue
		}
		out = append(out, r.decorate(ctx, u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NombreCompleto < out[j].NombreCompleto })
	return out, nil
}

func (r *MemoryRepo) Create(ctx context.Context, u Usuario) (Usuario, error) {
	if err := ctx.Err(); err != nil {
		return Usuario{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if strings.EqualFold(existing.Username, u.Username) {
			return Usuario{}, ErrDuplicate
		}
	}
	if u.RolID > 0 && r.roleName(u.RolID) == "" {
		return Usuario{}, ErrInvalidReference
	}
	r.nextID++
	now := time.Now().UTC()
	u.ID = r.nextID
	u.Activo = true
	u.CreatedAt = now
	u.UpdatedAt = now
	r.data[u.ID] = u
	return r.decorate(ctx, u), nil
}

func (r *MemoryRepo) Update(ctx context.Context, id int64, upd Update) (Usuario, error) {
	if err := ctx.Err(); err != nil {
		return Usuario{}, err
	}
	if upd.empty() {
		return Usuario{}, ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	if upd.NombreCompleto != nil {
		u.NombreCompleto = *upd.NombreCompleto
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Cargo != nil {
		u.Cargo = *upd.Cargo
	}
	if upd.RolID != nil {
		if *upd.RolID > 0 && r.roleName(*upd.RolID) == "" {
			return Usuario{}, ErrInvalidReference
		}
		u.RolID = *upd.RolID
	}
	if upd.UnidadID != nil {
		u.UnidadID = *upd.UnidadID
	}
	if upd.Activo != nil {
		u.Activo = *upd.Activo
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()
	r.data[id] = u
	return r.decorate(ctx, u), nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, id int64) error {
	f := false
	_, err := r.Update(ctx, id, Update{Activo: &f})
	return err
}

func (r *MemoryRepo) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	u.UltimoAcceso = &at
	r.data[id] = u
	return nil
}

func (r *MemoryRepo) Roles(ctx context.Context) ([]Rol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Rol(nil), r.roles...), nil
}

func (r *MemoryRepo) roleName(id int64) string {
	for _, rol := range r.roles {
		if rol.ID == id {
			return rol.Nombre
		}
	}
	return ""
}

func (r *MemoryRepo) decorate(ctx context.Context, u Usuario) Usuario {
	u.Rol = r.roleName(u.RolID)
	if u.UnidadID > 0 && r.unitNames != nil {
		if name, ok := r.unitNames(ctx, u.UnidadID); ok {
			u.UnidadNombre = name
		}
	}
	return u
}

var _ Repo = (*MemoryRepo)(nil)
