package progreso

import "context"

// Repo persists progress entries.
type Repo interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	// History returns the entries of a document, oldest first.
	History(ctx context.Context, hojaID int64) ([]Entry, error)
	Latest(ctx context.Context, hojaID int64) (Entry, error)
	// LatestPerDocument returns the newest entry of each document and the
	// number of documents with progress.
	LatestPerDocument(ctx context.Context, limit, offset int) ([]Entry, int, error)
	Update(ctx context.Context, id int64, p Patch) (Entry, error)
	Delete(ctx context.Context, id int64) error
}
