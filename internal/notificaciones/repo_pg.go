package notificaciones

import (
	"context"
	"database/sql"

	"hojaruta-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a notification.
func (r *PGRepo) Create(ctx context.Context, n Notificacion) (Notificacion, error) {
	const query = `
INSERT INTO notificaciones (hoja_ruta_id, usuario_id, tipo, mensaje)
VALUES ($1, $2, $3, $4)
RETURNING id, leida, created_at`
	var hoja sql.NullInt64
	if n.HojaRutaID > 0 {
		hoja = sql.NullInt64{Int64: n.HojaRutaID, Valid: true}
	}
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, query, hoja, n.UsuarioID, n.Tipo, n.Mensaje).
		Scan(&n.ID, &n.Leida, &n.CreatedAt)
	if err != nil {
		return Notificacion{}, err
	}
	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID int64, onlyUnread bool, limit, offset int) ([]Notificacion, error) {
	query := `
SELECT n.id, n.hoja_ruta_id, n.usuario_id, n.tipo, n.mensaje, n.leida, n.leida_en, n.created_at, COALESCE(h.numero_hr, '')
FROM notificaciones n
LEFT JOIN hojas_ruta h ON h.id = n.hoja_ruta_id
WHERE n.usuario_id = $1`
	if onlyUnread {
		query += ` AND n.leida = FALSE`
	}
	query += `
ORDER BY n.created_at DESC, n.id DESC
LIMIT $2 OFFSET $3`

	rows, err := db.Conn(ctx, r.DB).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notificacion{}
	for rows.Next() {
		var n Notificacion
		var hoja sql.NullInt64
		var leidaEn sql.NullTime
		if err := rows.Scan(&n.ID, &hoja, &n.UsuarioID, &n.Tipo, &n.Mensaje, &n.Leida, &leidaEn, &n.CreatedAt, &n.NumeroHR); err != nil {
			return nil, err
		}
		n.HojaRutaID = hoja.Int64
		if leidaEn.Valid {
			n.LeidaEn = &leidaEn.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread counts a user's unread notifications.
func (r *PGRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notificaciones WHERE usuario_id = $1 AND leida = FALSE`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one of the user's notifications as read.
func (r *PGRepo) MarkRead(ctx context.Context, id, userID int64) error {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE notificaciones SET leida = TRUE, leida_en = NOW() WHERE id = $1 AND usuario_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (r *PGRepo) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	res, err := db.Conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE notificaciones SET leida = TRUE, leida_en = NOW() WHERE usuario_id = $1 AND leida = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// HasUnread reports whether the user already has an unread notification of
// tipo for the document.
func (r *PGRepo) HasUnread(ctx context.Context, hojaID, userID int64, tipo string) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.DB).QueryRowContext(ctx, `
SELECT EXISTS (
    SELECT 1 FROM notificaciones
    WHERE hoja_ruta_id = $1 AND usuario_id = $2 AND tipo = $3 AND leida = FALSE
)`, hojaID, userID, tipo).Scan(&exists)
	return exists, err
}

var _ Repo = (*PGRepo)(nil)
