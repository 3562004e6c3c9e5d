package hojas

import (
	"context"
	"database/sql"
	"encoding/json"
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

const hojaColumns = `
h.id, h.numero_hr, h.referencia, h.procedencia,
COALESCE(h.nombre_solicitante, ''), COALESCE(h.telefono_celular, ''),
COALESCE(to_char(h.fecha_documento, 'YYYY-MM-DD'), ''), h.fecha_ingreso,
COALESCE(to_char(h.fecha_limite, 'YYYY-MM-DD'), ''), COALESCE(h.cite, ''), COALESCE(h.numero_fojas, 0),
h.prioridad, h.estado, h.estado_cumplimiento, COALESCE(h.observaciones, ''),
COALESCE(h.ubicacion_actual, ''), COALESCE(h.responsable_actual, ''),
h.unidad_actual_id, h.usuario_creador_id, h.detalles, h.fecha_completado,
h.activo, h.created_at, h.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHoja(row scanner, extra ...any) (Hoja, error) {
	var h Hoja
	var unidad, creador sql.NullInt64
	var detalles []byte
	var completado sql.NullTime
	dest := []any{
		&h.ID, &h.NumeroHR, &h.Referencia, &h.Procedencia,
		&h.NombreSolicitante, &h.TelefonoCelular,
		&h.FechaDocumento, &h.FechaIngreso,
		&h.FechaLimite, &h.Cite, &h.NumeroFojas,
		&h.Prioridad, &h.Estado, &h.EstadoCumplimiento, &h.Observaciones,
		&h.UbicacionActual, &h.ResponsableActual,
		&unidad, &creador, &detalles, &completado,
		&h.Activo, &h.CreatedAt, &h.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Hoja{}, err
	}
	h.UnidadActualID = unidad.Int64
	h.UsuarioCreadorID = creador.Int64
	if completado.Valid {
		t := completado.Time
		h.FechaCompletado = &t
	}
	h.Detalles = map[string]any{}
	if len(detalles) > 0 {
		if err := json.Unmarshal(detalles, &h.Detalles); err != nil {
			return Hoja{}, fmt.Errorf("decode detalles: %w", err)
		}
	}
	return h, nil
}

func encodeDetalles(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode detalles: %w", err)
	}
	return string(b), nil
}

// Create inserts a document.
func (r *PGRepo) Create(ctx context.Context, h Hoja) (Hoja, error) {
	detalles, err := encodeDetalles(h.Detalles)
	if err != nil {
		return Hoja{}, err
	}
	query := `
INSERT INTO hojas_ruta AS h
    (numero_hr, referencia, procedencia, nombre_solicitante, telefono_celular, fecha_documento, fecha_limite,
     cite, numero_fojas, prioridad, estado, estado_cumplimiento, observaciones, ubicacion_actual,
     responsable_actual, unidad_actual_id, usuario_creador_id, detalles)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, '')::date, NULLIF($7, '')::date,
        NULLIF($8, ''), $9, $10, $11, $12, NULLIF($13, ''), $14, $15, $16, $17, $18::jsonb)
RETURNING` + hojaColumns
	row := db.Conn(ctx, r.DB).QueryRowContext(ctx, query,
		h.NumeroHR,
		h.Referencia,
		h.Procedencia,
		h.NombreSolicitante,
		h.TelefonoCelular,
		h.FechaDocumento,
		h.FechaLimite,
		h.Cite,
		h.NumeroFojas,
		h.Prioridad,
		string(h.Estado),
		h.EstadoCumplimiento,
		h.Observaciones,
		h.UbicacionActual,
		h.ResponsableActual,
		nullID(h.UnidadActualID),
		nullID(h.UsuarioCreadorID),
		detalles,
	)
	created, err := scanHoja(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Hoja{}, ErrDuplicate
		}
		return Hoja{}, err
	}
	return created, nil
}

// Get fetches an active document.
func (r *PGRepo) Get(ctx context.Context, id int64) (Hoja, error) {
	return r.getOne(ctx, "SELECT"+hojaColumns+"\nFROM hojas_ruta h\nWHERE h.id = $1 AND h.activo = TRUE", id)
}

// GetForUpdate fetches an active document and locks its row.
func (r *PGRepo) GetForUpdate(ctx context.Context, id int64) (Hoja, error) {
	return r.getOne(ctx, "SELECT"+hojaColumns+"\nFROM hojas_ruta h\nWHERE h.id = $1 AND h.activo = TRUE\nFOR UPDATE", id)
}

func (r *PGRepo) getOne(ctx context.Context, query string, id int64) (Hoja, error) {
	h, err := scanHoja(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Hoja{}, ErrNotFound
		}
		return Hoja{}, err
	}
	return h, nil
}

// List returns one page of documents and the total match count. Overdue
// documents sort first, then urgent and priority ones, then the nearest
// deadline.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Hoja, int, error) {
	args := []any{f.Today}
	where := []string{"h.activo = TRUE"}
	if !f.IncluirCompletadas {
		where = append(where, "h.estado_cumplimiento <> 'completado'", "h.estado NOT IN ('finalizada', 'archivada')")
	}
	if f.EstadoCumplimiento != "" {
		args = append(args, f.EstadoCumplimiento)
		where = append(where, fmt.Sprintf("h.estado_cumplimiento = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		cols := []string{"h.numero_hr", "h.referencia", "h.procedencia", "h.ubicacion_actual", "h.nombre_solicitante", "h.telefono_celular"}
		conds := make([]string, len(cols))
		for i, col := range cols {
			conds[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
		}
		where = append(where, "("+strings.Join(conds, " OR ")+")")
	}
	args = append(args, f.Limit, f.Offset)
	query := "SELECT" + hojaColumns + ", COUNT(*) OVER()\nFROM hojas_ruta h\nWHERE " + strings.Join(where, " AND ") + `
ORDER BY
    CASE
        WHEN h.estado_cumplimiento = 'vencido'
          OR (h.fecha_limite < $1::date AND h.estado_cumplimiento <> 'completado') THEN 1
        WHEN h.prioridad = 'urgente' THEN 2
        WHEN h.prioridad = 'prioritario' THEN 3
        ELSE 4
    END,
    (h.fecha_limite - $1::date) ASC NULLS LAST,
    h.fecha_ingreso DESC,
    h.id DESC` + fmt.Sprintf("\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Hoja{}
	total := 0
	for rows.Next() {
		h, err := scanHoja(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

// Update applies a partial update and returns the stored row.
func (r *PGRepo) Update(ctx context.Context, id int64, p Patch) (Hoja, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.NumeroHR != nil {
		add("numero_hr", *p.NumeroHR)
	}
	if p.Referencia != nil {
		add("referencia", *p.Referencia)
	}
	if p.Procedencia != nil {
		add("procedencia", *p.Procedencia)
	}
	if p.NombreSolicitante != nil {
		add("nombre_solicitante", *p.NombreSolicitante)
	}
	if p.TelefonoCelular != nil {
		add("telefono_celular", *p.TelefonoCelular)
	}
	if p.FechaDocumento != nil {
		args = append(args, *p.FechaDocumento)
		sets = append(sets, fmt.Sprintf("fecha_documento = NULLIF($%d, '')::date", len(args)))
	}
	if p.FechaLimite != nil {
		args = append(args, *p.FechaLimite)
		sets = append(sets, fmt.Sprintf("fecha_limite = NULLIF($%d, '')::date", len(args)))
	}
	if p.Cite != nil {
		add("cite", *p.Cite)
	}
	if p.NumeroFojas != nil {
		add("numero_fojas", *p.NumeroFojas)
	}
	if p.Prioridad != nil {
		add("prioridad", *p.Prioridad)
	}
	if p.Estado != nil {
		add("estado", string(*p.Estado))
	}
	if p.EstadoCumplimiento != nil {
		add("estado_cumplimiento", *p.EstadoCumplimiento)
	}
	if p.Observaciones != nil {
		add("observaciones", *p.Observaciones)
	}
	if p.UbicacionActual != nil {
		add("ubicacion_actual", *p.UbicacionActual)
	}
	if p.ResponsableActual != nil {
		add("responsable_actual", *p.ResponsableActual)
	}
	if p.UnidadActualID != nil {
		add("unidad_actual_id", nullID(*p.UnidadActualID))
	}
	if p.Detalles != nil {
		detalles, err := encodeDetalles(p.Detalles)
		if err != nil {
			return Hoja{}, err
		}
		args = append(args, detalles)
		sets = append(sets, fmt.Sprintf("detalles = $%d::jsonb", len(args)))
	}
	if p.FechaCompletado != nil {
		add("fecha_completado", *p.FechaCompletado)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE hojas_ruta AS h SET %s\nWHERE h.id = $%d AND h.activo = TRUE\nRETURNING", strings.Join(sets, ", "), len(args)) + hojaColumns
	h, err := scanHoja(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Hoja{}, ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Hoja{}, ErrDuplicate
		}
		return Hoja{}, err
	}
	return h, nil
}

// Stats counts active documents by compliance state and deadline.
func (r *PGRepo) Stats(ctx context.Context, today string) (Stats, error) {
	const query = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE estado_cumplimiento = 'pendiente'),
       COUNT(*) FILTER (WHERE estado_cumplimiento = 'en_proceso'),
       COUNT(*) FILTER (WHERE estado_cumplimiento = 'completado'),
       COUNT(*) FILTER (WHERE estado_cumplimiento = 'vencido'),
       COUNT(*) FILTER (WHERE estado_cumplimiento <> 'completado' AND fecha_limite < $1::date),
       COUNT(*) FILTER (WHERE estado_cumplimiento <> 'completado' AND fecha_limite BETWEEN $1::date AND $1::date + 3),
       COUNT(*) FILTER (WHERE estado_cumplimiento <> 'completado' AND fecha_limite BETWEEN $1::date + 4 AND $1::date + 7)
FROM hojas_ruta
WHERE activo = TRUE`
	var s Stats
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query, today).Scan(
		&s.Total, &s.Pendientes, &s.EnProceso, &s.Completadas, &s.Vencidas, &s.Atrasadas, &s.Criticas, &s.PorVencer,
	)
	return s, err
}

// DueWithin lists open documents with a deadline up to dias days away.
func (r *PGRepo) DueWithin(ctx context.Context, today string, dias, limit int) ([]Hoja, error) {
	query := "SELECT" + hojaColumns + `
FROM hojas_ruta h
WHERE h.activo = TRUE
  AND h.estado_cumplimiento <> 'completado'
  AND h.fecha_limite IS NOT NULL
  AND h.fecha_limite <= $1::date + $2::int
ORDER BY h.fecha_limite ASC, h.id ASC
LIMIT $3`
	return r.queryList(ctx, query, today, dias, limit)
}

// Recent lists open documents by creation time, newest first.
func (r *PGRepo) Recent(ctx context.Context, limit int) ([]Hoja, error) {
	query := "SELECT" + hojaColumns + `
FROM hojas_ruta h
WHERE h.activo = TRUE
  AND h.estado_cumplimiento <> 'completado'
ORDER BY h.created_at DESC, h.id DESC
LIMIT $1`
	return r.queryList(ctx, query, limit)
}

// Pending lists open documents due within dias days or without a deadline.
// Overdue ones come first, then those due in 3, 7 and dias days, then the
// ones with no deadline.
func (r *PGRepo) Pending(ctx context.Context, today string, dias, limit int) ([]Hoja, error) {
	query := "SELECT" + hojaColumns + `
FROM hojas_ruta h
WHERE h.activo = TRUE
  AND h.estado_cumplimiento <> 'completado'
  AND (h.fecha_limite IS NULL OR h.fecha_limite <= $1::date + $2::int)
ORDER BY
    CASE
        WHEN h.fecha_limite IS NULL THEN 5
        WHEN h.fecha_limite < $1::date THEN 1
        WHEN h.fecha_limite <= $1::date + 3 THEN 2
        WHEN h.fecha_limite <= $1::date + 7 THEN 3
        ELSE 4
    END,
    h.fecha_limite ASC NULLS LAST,
    h.id ASC
LIMIT $3`
	return r.queryList(ctx, query, today, dias, limit)
}

func (r *PGRepo) queryList(ctx context.Context, query string, args ...any) ([]Hoja, error) {
	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Hoja{}
	for rows.Next() {
		h, err := scanHoja(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ActiveExists reports whether an active document has the id.
func (r *PGRepo) ActiveExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM hojas_ruta WHERE id = $1 AND activo = TRUE)", id).Scan(&ok)
	return ok, err
}

// SetUbicacion moves a document to a new location.
func (r *PGRepo) SetUbicacion(ctx context.Context, id int64, ubicacion string) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE hojas_ruta SET ubicacion_actual = $1, updated_at = $2 WHERE id = $3 AND activo = TRUE",
		ubicacion, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

var _ Repo = (*PGRepo)(nil)
