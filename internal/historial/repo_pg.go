package historial

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hojaruta-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectActividad = `
SELECT id, tipo, hoja_id, COALESCE(numero_hr, ''), COALESCE(referencia, ''), COALESCE(procedencia, ''),
       COALESCE(destinatario, ''), descripcion, usuario_id, COALESCE(usuario_nombre, ''),
       fecha_actividad, datos_anteriores, datos_nuevos
FROM historial_actividades`

func scanActividad(row interface{ Scan(...any) error }) (Actividad, error) {
	var a Actividad
	var hojaID, usuarioID sql.NullInt64
	var antes, despues []byte
	err := row.Scan(
		&a.ID,
		&a.Tipo,
		&hojaID,
		&a.NumeroHR,
		&a.Referencia,
		&a.Procedencia,
		&a.Destinatario,
		&a.Descripcion,
		&usuarioID,
		&a.UsuarioNombre,
		&a.FechaActividad,
		&antes,
		&despues,
	)
	if err != nil {
		return Actividad{}, err
	}
	a.HojaID = hojaID.Int64
	a.UsuarioID = usuarioID.Int64
	a.DatosAnteriores = antes
	a.DatosNuevos = despues
	return a, nil
}

// Insert appends an entry. A missing user name is taken from usuarios.
func (r *PGRepo) Insert(ctx context.Context, a Actividad) (Actividad, error) {
	const query = `
INSERT INTO historial_actividades
    (tipo, hoja_id, numero_hr, referencia, procedencia, destinatario, descripcion, usuario_id, usuario_nombre, datos_anteriores, datos_nuevos)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8,
        COALESCE(NULLIF($9, ''), (SELECT nombre_completo FROM usuarios WHERE id = $8)), $10, $11)
RETURNING id, COALESCE(usuario_nombre, ''), fecha_actividad`
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query,
		a.Tipo,
		nullID(a.HojaID),
		a.NumeroHR,
		a.Referencia,
		a.Procedencia,
		a.Destinatario,
		a.Descripcion,
		nullID(a.UsuarioID),
		a.UsuarioNombre,
		nullJSON(a.DatosAnteriores),
		nullJSON(a.DatosNuevos),
	).Scan(&a.ID, &a.UsuarioNombre, &a.FechaActividad)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Actividad{}, fmt.Errorf("insert historial: %w", ErrInvalidInput)
		}
		return Actividad{}, err
	}
	return a, nil
}

// List returns entries newest first.
func (r *PGRepo) List(ctx context.Context, tipo string, limit, offset int) ([]Actividad, error) {
	var b strings.Builder
	b.WriteString(selectActividad)
	args := []any{}
	if tipo != "" {
		args = append(args, tipo)
		b.WriteString("\nWHERE tipo = $1")
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, "\nORDER BY fecha_actividad DESC, id DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Actividad{}
	for rows.Next() {
		a, err := scanActividad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Counts groups entries since the given instant by kind.
func (r *PGRepo) Counts(ctx context.Context, since time.Time) (map[string]int, error) {
	const query = `
SELECT tipo, COUNT(*)
FROM historial_actividades
WHERE fecha_actividad >= $1
GROUP BY tipo`
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var tipo string
		var n int
		if err := rows.Scan(&tipo, &n); err != nil {
			return nil, err
		}
		out[tipo] = n
	}
	return out, rows.Err()
}

func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var _ Repo = (*PGRepo)(nil)
