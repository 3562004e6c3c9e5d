package envios

import "context"

// Repo persists dispatches.
type Repo interface {
	Insert(ctx context.Context, e Envio) (Envio, error)
	Get(ctx context.Context, id int64) (Envio, error)
	// GetForUpdate reads a dispatch and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (Envio, error)
	List(ctx context.Context, f Filter) ([]Envio, error)
	Transition(ctx context.Context, id int64, t Transition) (Envio, error)
}
