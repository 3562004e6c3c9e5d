package usuarios

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hojaruta-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectUsuario = `
SELECT u.id, u.username, u.password_hash, u.nombre_completo, COALESCE(u.email, ''), COALESCE(u.cargo, ''),
       u.rol_id, COALESCE(r.nombre, ''), u.unidad_id, COALESCE(un.nombre, ''),
       u.activo, u.ultimo_acceso, u.created_at, u.updated_at
FROM usuarios u
LEFT JOIN roles r ON r.id = u.rol_id
LEFT JOIN unidades un ON un.id = u.unidad_id`

func scanUsuario(row interface{ Scan(...any) error }) (Usuario, error) {
	var u Usuario
	var rolID, unidadID sql.NullInt64
	var ultimo sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.NombreCompleto,
		&u.Email,
		&u.Cargo,
		&rolID,
		&u.Rol,
		&unidadID,
		&u.UnidadNombre,
		&u.Activo,
		&ultimo,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return Usuario{}, err
	}
	u.RolID = rolID.Int64
	u.UnidadID = unidadID.Int64
	if ultimo.Valid {
		u.UltimoAcceso = &ultimo.Time
	}
	return u, nil
}

func (r *PGRepo) getOne(ctx context.Context, where string, arg any) (Usuario, error) {
	u, err := scanUsuario(db.Conn(ctx, r.DB).QueryRowContext(ctx, selectUsuario+"\nWHERE "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *PGRepo) GetByID(ctx context.Context, id int64) (Usuario, error) {
	return r.getOne(ctx, "u.id = $1", id)
}

// GetByUsername fetches an active user by username, ignoring case.
func (r *PGRepo) GetByUsername(ctx context.Context, username string) (Usuario, error) {
	return r.getOne(ctx, "LOWER(u.username) = LOWER($1) AND u.activo = TRUE", username)
}

// List returns users ordered by full name.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Usuario, error) {
	var conds []string
	var args []any
	if !f.IncludeInactive {
		conds = append(conds, "u.activo = TRUE")
	}
	if f.UnidadID > 0 {
		args = append(args, f.UnidadID)
		conds = append(conds, fmt.Sprintf("u.unidad_id = $%d", len(args)))
	}
	query := selectUsuario
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += "\nORDER BY u.nombre_completo"

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Usuario{}
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts a user with an already hashed password.
func (r *PGRepo) Create(ctx context.Context, u Usuario) (Usuario, error) {
	const query = `
INSERT INTO usuarios (username, password_hash, nombre_completo, email, cargo, rol_id, unidad_id, activo)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, TRUE)
RETURNING id`
	var id int64
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query,
		u.Username,
		u.PasswordHash,
		u.NombreCompleto,
		u.Email,
		u.Cargo,
		nullID(u.RolID),
		nullID(u.UnidadID),
	).Scan(&id)
	if err != nil {
		return Usuario{}, mapWriteErr(err)
	}
	return r.GetByID(ctx, id)
}

// Update applies the non-nil fields of upd.
func (r *PGRepo) Update(ctx context.Context, id int64, upd Update) (Usuario, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.NombreCompleto != nil {
		add("nombre_completo", *upd.NombreCompleto)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Cargo != nil {
		add("cargo", *upd.Cargo)
	}
	if upd.RolID != nil {
		add("rol_id", nullID(*upd.RolID))
	}
	if upd.UnidadID != nil {
		add("unidad_id", nullID(*upd.UnidadID))
	}
	if upd.Activo != nil {
		add("activo", *upd.Activo)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if len(sets) == 0 {
		return Usuario{}, ErrInvalidInput
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE usuarios SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		return Usuario{}, mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Usuario{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes a user.
func (r *PGRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, `UPDATE usuarios SET activo = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastAccess records a successful login.
func (r *PGRepo) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := db.Conn(ctx, r.DB).ExecContext(ctx, `UPDATE usuarios SET ultimo_acceso = $1 WHERE id = $2`, at, id)
	return err
}

// Roles lists the available roles.
func (r *PGRepo) Roles(ctx context.Context) ([]Rol, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, `SELECT id, nombre, COALESCE(descripcion, '') FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Rol{}
	for rows.Next() {
		var rol Rol
		if err := rows.Scan(&rol.ID, &rol.Nombre, &rol.Descripcion); err != nil {
			return nil, err
		}
		out = append(out, rol)
	}
	return out, rows.Err()
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func mapWriteErr(err error) error {
	v, ok := db.Classify(err)
	if !ok {
		return err
	}
	switch v.Kind {
	case db.KindUnique:
		return ErrDuplicate
	case db.KindForeignKey:
		return fmt.Errorf("%s: %w", v.Constraint, ErrInvalidReference)
	}
	return err
}

var _ Repo = (*PGRepo)(nil)
