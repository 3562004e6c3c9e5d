package unidades

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hojaruta-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const unidadColumns = `id, nombre, COALESCE(descripcion, ''), COALESCE(responsable, ''), activo, created_at, updated_at`

func scanUnidad(row interface{ Scan(...any) error }) (Unidad, error) {
	var u Unidad
	err := row.Scan(&u.ID, &u.Nombre, &u.Descripcion, &u.Responsable, &u.Activo, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns units ordered by name.
func (r *PGRepo) List(ctx context.Context, includeInactive bool) ([]Unidad, error) {
	query := `SELECT ` + unidadColumns + ` FROM unidades`
	if !includeInactive {
		query += ` WHERE activo = TRUE`
	}
	query += ` ORDER BY nombre`

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Unidad{}
	for rows.Next() {
		u, err := scanUnidad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a unit by id.
func (r *PGRepo) Get(ctx context.Context, id int64) (Unidad, error) {
	query := `SELECT ` + unidadColumns + ` FROM unidades WHERE id = $1`
	u, err := scanUnidad(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Unidad{}, ErrNotFound
		}
		return Unidad{}, err
	}
	return u, nil
}

// Create inserts a unit.
func (r *PGRepo) Create(ctx context.Context, u Unidad) (Unidad, error) {
	query := `
INSERT INTO unidades (nombre, descripcion, responsable, activo)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), TRUE)
RETURNING ` + unidadColumns
	created, err := scanUnidad(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, u.Nombre, u.Descripcion, u.Responsable))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Unidad{}, ErrDuplicate
		}
		return Unidad{}, err
	}
	return created, nil
}

// Update applies the non-nil fields of upd.
func (r *PGRepo) Update(ctx context.Context, id int64, upd Update) (Unidad, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Nombre != nil {
		add("nombre", *upd.Nombre)
	}
	if upd.Descripcion != nil {
		add("descripcion", *upd.Descripcion)
	}
	if upd.Responsable != nil {
		add("responsable", *upd.Responsable)
	}
	if upd.Activo != nil {
		add("activo", *upd.Activo)
	}
	if len(sets) == 0 {
		return Unidad{}, ErrInvalidInput
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE unidades SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), unidadColumns)

	u, err := scanUnidad(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return Unidad{}, ErrNotFound
		case db.IsUniqueViolation(err):
			return Unidad{}, ErrDuplicate
		}
		return Unidad{}, err
	}
	return u, nil
}

// Deactivate soft-deletes a unit.
func (r *PGRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, `UPDATE unidades SET activo = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
