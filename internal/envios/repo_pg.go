package envios

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

const envioColumns = `
e.id, e.hoja_id, e.usuario_id, e.unidad_destino_id, COALESCE(e.destinatario_nombre, ''),
COALESCE(e.observaciones, ''), e.instrucciones, e.estado, COALESCE(e.respuesta, ''),
e.redirigido_a_unidad_id, e.redirigido_por,
e.fecha_envio, e.fecha_recepcion, e.fecha_respuesta, e.fecha_redireccion,
e.created_at, e.updated_at`

const joinedColumns = `,
       COALESCE(h.numero_hr, ''), COALESCE(h.referencia, ''), COALESCE(h.procedencia, ''), COALESCE(h.prioridad, ''),
       COALESCE(un.nombre, ''), COALESCE(u.nombre_completo, '')`

const envioJoins = `
LEFT JOIN hojas_ruta h ON h.id = e.hoja_id
LEFT JOIN unidades un ON un.id = e.unidad_destino_id
LEFT JOIN usuarios u ON u.id = e.usuario_id`

const selectEnvio = "\nSELECT" + envioColumns + joinedColumns + "\nFROM envios e" + envioJoins

// selectWritten reads back the row returned by the write in CTE e with the
// same joined names Get returns.
const selectWritten = "\nSELECT" + envioColumns + joinedColumns + "\nFROM e" + envioJoins

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvio(row scanner, joined bool) (Envio, error) {
	var e Envio
	var usuario, unidad, redirA, redirPor sql.NullInt64
	var envio, recepcion, respuesta, redireccion sql.NullTime
	var instrucciones []byte
	var estado string
	dest := []any{
		&e.ID, &e.HojaID, &usuario, &unidad, &e.DestinatarioNombre,
		&e.Observaciones, &instrucciones, &estado, &e.Respuesta,
		&redirA, &redirPor,
		&envio, &recepcion, &respuesta, &redireccion,
		&e.CreatedAt, &e.UpdatedAt,
	}
	if joined {
		dest = append(dest, &e.NumeroHR, &e.Referencia, &e.Procedencia, &e.Prioridad, &e.UnidadDestinoNombre, &e.UsuarioNombre)
	}
	if err := row.Scan(dest...); err != nil {
		return Envio{}, err
	}
	e.Estado = Estado(estado)
	e.UsuarioID = usuario.Int64
	e.UnidadDestinoID = unidad.Int64
	e.RedirigidoAUnidadID = redirA.Int64
	e.RedirigidoPor = redirPor.Int64
	e.Instrucciones = normalizeInstrucciones(instrucciones)
	e.FechaEnvio = timePtr(envio)
	e.FechaRecepcion = timePtr(recepcion)
	e.FechaRespuesta = timePtr(respuesta)
	e.FechaRedireccion = timePtr(redireccion)
	return e, nil
}

// Insert stores a dispatch and returns it with its joined names.
func (r *PGRepo) Insert(ctx context.Context, e Envio) (Envio, error) {
	query := `
WITH e AS (
    INSERT INTO envios
        (hoja_id, usuario_id, unidad_destino_id, destinatario_nombre, observaciones, instrucciones, estado, fecha_envio)
    VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::jsonb, $7, $8)
    RETURNING *
)` + selectWritten
	var fechaEnvio any
	if e.FechaEnvio != nil {
		fechaEnvio = *e.FechaEnvio
	}
	created, err := scanEnvio(db.Conn(ctx, r.DB).QueryRowContext(ctx, query,
		e.HojaID,
		nullID(e.UsuarioID),
		nullID(e.UnidadDestinoID),
		e.DestinatarioNombre,
		e.Observaciones,
		string(normalizeInstrucciones(e.Instrucciones)),
		string(e.Estado),
		fechaEnvio,
	), true)
	if err != nil {
		return Envio{}, mapWriteError(err)
	}
	return created, nil
}

// Get fetches a dispatch with its document and unit names.
func (r *PGRepo) Get(ctx context.Context, id int64) (Envio, error) {
	return r.getOne(ctx, selectEnvio+"\nWHERE e.id = $1", id, true)
}

// GetForUpdate fetches and locks a dispatch row.
func (r *PGRepo) GetForUpdate(ctx context.Context, id int64) (Envio, error) {
	return r.getOne(ctx, "SELECT"+envioColumns+"\nFROM envios e\nWHERE e.id = $1\nFOR UPDATE", id, false)
}

func (r *PGRepo) getOne(ctx context.Context, query string, id int64, joined bool) (Envio, error) {
	e, err := scanEnvio(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, id), joined)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Envio{}, ErrNotFound
		}
		return Envio{}, err
	}
	return e, nil
}

// List returns dispatches newest first.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Envio, error) {
	where := []string{}
	args := []any{}
	if f.HojaID > 0 {
		args = append(args, f.HojaID)
		where = append(where, fmt.Sprintf("e.hoja_id = $%d", len(args)))
	}
	if f.UnidadDestinoID > 0 {
		args = append(args, f.UnidadDestinoID)
		where = append(where, fmt.Sprintf("e.unidad_destino_id = $%d", len(args)))
	}
	if f.Estado != "" {
		args = append(args, string(f.Estado))
		where = append(where, fmt.Sprintf("e.estado = $%d", len(args)))
	}
	query := selectEnvio
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf("\nORDER BY COALESCE(e.fecha_envio, e.created_at) DESC, e.id DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Envio{}
	for rows.Next() {
		e, err := scanEnvio(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Transition writes a state change and the timestamp that goes with it and
// returns the row with its joined names.
func (r *PGRepo) Transition(ctx context.Context, id int64, t Transition) (Envio, error) {
	args := []any{string(t.To), t.At}
	sets := []string{"estado = $1", "updated_at = $2"}
	switch t.To {
	case EstadoEnviado:
		sets = append(sets, "fecha_envio = COALESCE(fecha_envio, $2)")
	case EstadoRecibido:
		sets = append(sets, "fecha_recepcion = $2")
	case EstadoRespondido:
		args = append(args, t.Respuesta)
		sets = append(sets, fmt.Sprintf("respuesta = $%d", len(args)), "fecha_respuesta = $2")
	case EstadoRedirigido:
		args = append(args, nullID(t.RedirigidoA), nullID(t.RedirigidoPor))
		sets = append(sets,
			fmt.Sprintf("redirigido_a_unidad_id = $%d", len(args)-1),
			fmt.Sprintf("redirigido_por = $%d", len(args)),
			"fecha_redireccion = $2")
	}
	args = append(args, id)
	query := fmt.Sprintf("WITH e AS (\n    UPDATE envios SET %s\n    WHERE id = $%d\n    RETURNING *\n)", strings.Join(sets, ", "), len(args)) + selectWritten
	e, err := scanEnvio(db.Conn(ctx, r.DB).QueryRowContext(ctx, query, args...), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Envio{}, ErrNotFound
		}
		return Envio{}, mapWriteError(err)
	}
	return e, nil
}

// mapWriteError turns a foreign key failure into ErrInvalidReference naming
// the offending field.
func mapWriteError(err error) error {
	v, ok := db.Classify(err)
	if !ok || v.Kind != db.KindForeignKey {
		return err
	}
	field := v.Column
	for _, col := range []string{"unidad_destino_id", "redirigido_a_unidad_id", "hoja_id", "usuario_id", "redirigido_por"} {
		if strings.Contains(v.Constraint, col) || strings.Contains(v.Detail, col) {
			field = col
			break
		}
	}
	return fmt.Errorf("%s: %w", field, ErrInvalidReference)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

var _ Repo = (*PGRepo)(nil)
