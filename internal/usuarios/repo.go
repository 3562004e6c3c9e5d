package usuarios

import (
	"context"
	"time"
)

// Repo persists users and reads roles.
type Repo interface {
	GetByID(ctx context.Context, id int64) (Usuario, error)
	// GetByUsername matches case-insensitively among active users.
	GetByUsername(ctx context.Context, username string) (Usuario, error)
	List(ctx context.Context, f Filter) ([]Usuario, error)
	Create(ctx context.Context, u Usuario) (Usuario, error)
	Update(ctx context.Context, id int64, upd Update) (Usuario, error)
	Deactivate(ctx context.Context, id int64) error
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
	Roles(ctx context.Context) ([]Rol, error)
}
