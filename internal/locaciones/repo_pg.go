package locaciones

import (
	"context"
	"database/sql"

	"hojaruta-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const locacionColumns = `id, nombre, COALESCE(descripcion, ''), COALESCE(NULLIF(tipo, ''), 'centro_acogida'), activo, created_at`

func scanLocacion(row interface{ Scan(...any) error }) (Locacion, error) {
	var l Locacion
	err := row.Scan(&l.ID, &l.Nombre, &l.Descripcion, &l.Tipo, &l.Activo, &l.CreatedAt)
	return l, err
}

// ListActive returns active locations ordered by tipo and name.
func (r *PGRepo) ListActive(ctx context.Context) ([]Locacion, error) {
	query := `SELECT ` + locacionColumns + `
FROM locaciones
WHERE activo = TRUE
ORDER BY 4, nombre`
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Locacion{}
	for rows.Next() {
		l, err := scanLocacion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Create inserts a location. The unique index on LOWER(nombre) reports
// duplicates.
func (r *PGRepo) Create(ctx context.Context, l Locacion) (Locacion, error) {
	query := `
INSERT INTO locaciones (nombre, descripcion, tipo, activo)
VALUES ($1, NULLIF($2, ''), $3, $4)
RETURNING ` + locacionColumns
	created, err := scanLocacion(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, l.Nombre, l.Descripcion, l.Tipo, l.Activo))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Locacion{}, ErrDuplicate
		}
		return Locacion{}, err
	}
	return created, nil
}

var _ Repo = (*PGRepo)(nil)
