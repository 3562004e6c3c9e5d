package notificaciones

import "context"

// Repo persists notifications.
type Repo interface {
	Create(ctx context.Context, n Notificacion) (Notificacion, error)
	ListByUser(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]Notificacion, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int, error)
	HasUnread(ctx context.Context, hojaID, userID int64, tipo string) (bool, error)
}
