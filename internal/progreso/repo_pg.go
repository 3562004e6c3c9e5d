package progreso

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

const selectEntry = `
SELECT p.id, p.hoja_ruta_id, COALESCE(p.ubicacion_anterior, ''), p.ubicacion_actual, p.accion,
       p.responsable_id, p.unidad_origen_id, p.unidad_destino_id,
       COALESCE(p.notas, ''), COALESCE(p.respuesta, ''), p.fecha_registro,
       COALESCE(u.nombre_completo, ''), COALESCE(un.nombre, ''), COALESCE(h.numero_hr, '')
FROM progreso_hojas_ruta p
LEFT JOIN usuarios u ON u.id = p.responsable_id
LEFT JOIN unidades un ON un.id = p.unidad_destino_id
LEFT JOIN hojas_ruta h ON h.id = p.hoja_ruta_id`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var responsable, origen, destino sql.NullInt64
	err := row.Scan(
		&e.ID,
		&e.HojaRutaID,
		&e.UbicacionAnterior,
		&e.UbicacionActual,
		&e.Accion,
		&responsable,
		&origen,
		&destino,
		&e.Notas,
		&e.Respuesta,
		&e.FechaRegistro,
		&e.ResponsableNombre,
		&e.UnidadDestinoNombre,
		&e.NumeroHR,
	)
	if err != nil {
		return Entry{}, err
	}
	e.ResponsableID = responsable.Int64
	e.UnidadOrigenID = origen.Int64
	e.UnidadDestinoID = destino.Int64
	return e, nil
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert appends an entry.
func (r *PGRepo) Insert(ctx context.Context, e Entry) (Entry, error) {
	const query = `
INSERT INTO progreso_hojas_ruta
    (hoja_ruta_id, ubicacion_anterior, ubicacion_actual, accion, responsable_id, unidad_origen_id, unidad_destino_id, notas, respuesta)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
RETURNING id, fecha_registro`
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query,
		e.HojaRutaID,
		e.UbicacionAnterior,
		e.UbicacionActual,
		e.Accion,
		nullID(e.ResponsableID),
		nullID(e.UnidadOrigenID),
		nullID(e.UnidadDestinoID),
		e.Notas,
		e.Respuesta,
	).Scan(&e.ID, &e.FechaRegistro)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Entry{}, fmt.Errorf("insert progreso: %w", ErrDocumentNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

// Get fetches one entry.
func (r *PGRepo) Get(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(db.Conn(ctx, r.DB).QueryRowContext(ctx, selectEntry+"\nWHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// History returns a document's entries oldest first.
func (r *PGRepo) History(ctx context.Context, hojaID int64) ([]Entry, error) {
	return r.query(ctx, selectEntry+"\nWHERE p.hoja_ruta_id = $1\nORDER BY p.fecha_registro ASC, p.id ASC", hojaID)
}

// Latest returns a document's newest entry.
func (r *PGRepo) Latest(ctx context.Context, hojaID int64) (Entry, error) {
	query := selectEntry + "\nWHERE p.hoja_ruta_id = $1\nORDER BY p.fecha_registro DESC, p.id DESC\nLIMIT 1"
	e, err := scanEntry(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, hojaID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// LatestPerDocument lists the newest entry of every document.
func (r *PGRepo) LatestPerDocument(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	query := `
SELECT * FROM (
    SELECT DISTINCT ON (p.hoja_ruta_id) p.id, p.hoja_ruta_id, COALESCE(p.ubicacion_anterior, ''), p.ubicacion_actual, p.accion,
           p.responsable_id, p.unidad_origen_id, p.unidad_destino_id,
           COALESCE(p.notas, ''), COALESCE(p.respuesta, ''), p.fecha_registro,
           COALESCE(u.nombre_completo, ''), COALESCE(un.nombre, ''), COALESCE(h.numero_hr, '')
    FROM progreso_hojas_ruta p
    LEFT JOIN usuarios u ON u.id = p.responsable_id
    LEFT JOIN unidades un ON un.id = p.unidad_destino_id
    LEFT JOIN hojas_ruta h ON h.id = p.hoja_ruta_id
    ORDER BY p.hoja_ruta_id, p.fecha_registro DESC, p.id DESC
) latest
ORDER BY fecha_registro DESC
LIMIT $1 OFFSET $2`
	list, err := r.query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := db.Conn(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(DISTINCT hoja_ruta_id) FROM progreso_hojas_ruta`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Update applies an administrative correction.
func (r *PGRepo) Update(ctx context.Context, id int64, p Patch) (Entry, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.UbicacionActual != nil {
		add("ubicacion_actual", *p.UbicacionActual)
	}
	if p.Notas != nil {
		add("notas", *p.Notas)
	}
	if p.Respuesta != nil {
		add("respuesta", *p.Respuesta)
	}
	if len(sets) == 0 {
		return Entry{}, ErrInvalidInput
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE progreso_hojas_ruta SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		return Entry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Entry{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes an entry.
func (r *PGRepo) Delete(ctx context.Context, id int64) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM progreso_hojas_ruta WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

var _ Repo = (*PGRepo)(nil)
