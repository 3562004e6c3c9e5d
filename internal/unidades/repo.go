package unidades

import "context"

// Repo persists units.
type Repo interface {
	List(ctx context.Context, includeInactive bool) ([]Unidad, error)
	Get(ctx context.Context, id int64) (Unidad, error)
	Create(ctx context.Context, u Unidad) (Unidad, error)
	Update(ctx context.Context, id int64, upd Update) (Unidad, error)
	Deactivate(ctx context.Context, id int64) error
}
