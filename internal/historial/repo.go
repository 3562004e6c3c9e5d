package historial

import (
	"context"
	"time"
)

// Repo persists the activity log.
type Repo interface {
	Insert(ctx context.Context, a Actividad) (Actividad, error)
	// List returns entries newest first. An empty tipo matches every kind.
	List(ctx context.Context, tipo string, limit, offset int) ([]Actividad, error)
	// Counts returns the number of entries per kind recorded at or after since.
	Counts(ctx context.Context, since time.Time) (map[string]int, error)
}
