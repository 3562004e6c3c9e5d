package locaciones

import "context"

// Repo persists the locations catalog.
type Repo interface {
	// ListActive returns active locations ordered by tipo and name.
	ListActive(ctx context.Context) ([]Locacion, error)
	// Create stores l. A name already taken, ignoring case, is ErrDuplicate.
	Create(ctx context.Context, l Locacion) (Locacion, error)
}
