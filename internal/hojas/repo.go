package hojas

import "context"

// Repo persists documents.
type Repo interface {
	Create(ctx context.Context, h Hoja) (Hoja, error)
	Get(ctx context.Context, id int64) (Hoja, error)
	// GetForUpdate reads an active document and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (Hoja, error)
	List(ctx context.Context, f Filter) ([]Hoja, int, error)
	Update(ctx context.Context, id int64, p Patch) (Hoja, error)
	Stats(ctx context.Context, today string) (Stats, error)
	// DueWithin lists open documents whose deadline is at most dias days
	// after today, overdue ones included, nearest deadline first.
	DueWithin(ctx context.Context, today string, dias, limit int) ([]Hoja, error)
	// Recent lists open documents, newest first.
	Recent(ctx context.Context, limit int) ([]Hoja, error)
	// Pending lists open documents due within dias days or without a
	// deadline, most urgent first.
	Pending(ctx context.Context, today string, dias, limit int) ([]Hoja, error)
	ActiveExists(ctx context.Context, id int64) (bool, error)
	SetUbicacion(ctx context.Context, id int64, ubicacion string) error
}
