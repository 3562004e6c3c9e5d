package envios

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var envioCols = []string{
	"id", "hoja_id", "usuario_id", "unidad_destino_id", "destinatario_nombre",
	"observaciones", "instrucciones", "estado", "respuesta",
	"redirigido_a_unidad_id", "redirigido_por",
	"fecha_envio", "fecha_recepcion", "fecha_respuesta", "fecha_redireccion",
	"created_at", "updated_at",
}

var joinedCols = append(append([]string(nil), envioCols...),
	"numero_hr", "referencia", "procedencia", "prioridad", "unidad_nombre", "usuario_nombre")

var fixedAt = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func envioRow(id int64, estado string) []driver.Value {
	return []driver.Value{
		id, int64(1), int64(9), int64(3), "Unidad Legal",
		"", []byte(`["Archivar"]`), estado, "",
		nil, nil,
		fixedAt, nil, nil, nil,
		fixedAt, fixedAt,
	}
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &PGRepo{DB: sqlDB}, mock
}

func TestPGInsert(t *testing.T) {
	repo, mock := newMock(t)
	row := append(envioRow(7, "enviado"), "HR-1", "Nota", "UAF", "rutina", "Unidad Legal", "Ana")
	mock.ExpectQuery(`(?s)WITH e AS \(\s+INSERT INTO envios.*RETURNING \*\s+\)\s+SELECT.*FROM e\s+LEFT JOIN hojas_ruta h`).
		WithArgs(int64(1), int64(9), int64(3), "Unidad Legal", "", "[]", "enviado", fixedAt).
		WillReturnRows(sqlmock.NewRows(joinedCols).AddRow(row...))

	e, err := repo.Insert(context.Background(), Envio{
		HojaID: 1, UsuarioID: 9, UnidadDestinoID: 3, DestinatarioNombre: "Unidad Legal",
		Estado: EstadoEnviado, FechaEnvio: &fixedAt,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.ID != 7 || e.Estado != EstadoEnviado || e.FechaEnvio == nil || e.FechaRecepcion != nil {
		t.Fatalf("unexpected dispatch %+v", e)
	}
	if e.NumeroHR != "HR-1" || e.UnidadDestinoNombre != "Unidad Legal" {
		t.Fatalf("joined fields missing: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGInsertForeignKeyNamesField(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO envios`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "envios_unidad_destino_id_fkey"})

	_, err := repo.Insert(context.Background(), Envio{HojaID: 1, UnidadDestinoID: 99, DestinatarioNombre: "X", Estado: EstadoEnviado})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if err.Error() != "unidad_destino_id: "+ErrInvalidReference.Error() {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPGGetJoinsNames(t *testing.T) {
	repo, mock := newMock(t)
	row := append(envioRow(7, "recibido"), "HR-1", "Nota", "UAF", "rutina", "Unidad Legal", "Ana")
	mock.ExpectQuery(`(?s)FROM envios e.*LEFT JOIN hojas_ruta h.*WHERE e.id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(joinedCols).AddRow(row...))

	e, err := repo.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.NumeroHR != "HR-1" || e.UnidadDestinoNombre != "Unidad Legal" || e.UsuarioNombre != "Ana" {
		t.Fatalf("joined fields missing: %+v", e)
	}
	if string(e.Instrucciones) != `["Archivar"]` {
		t.Fatalf("instrucciones = %s", e.Instrucciones)
	}

	mock.ExpectQuery(`FROM envios e`).WithArgs(int64(8)).WillReturnRows(sqlmock.NewRows(joinedCols))
	if _, err := repo.Get(context.Background(), 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGGetForUpdateLocks(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`(?s)FROM envios e.*FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(envioCols).AddRow(envioRow(7, "enviado")...))
	if _, err := repo.GetForUpdate(context.Background(), 7); err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGListFilters(t *testing.T) {
	repo, mock := newMock(t)
	row := append(envioRow(7, "enviado"), "HR-1", "Nota", "UAF", "rutina", "Unidad Legal", "Ana")
	mock.ExpectQuery(`(?s)WHERE e.unidad_destino_id = \$1 AND e.estado = \$2.*LIMIT \$3 OFFSET \$4`).
		WithArgs(int64(3), "enviado", int64(50), int64(0)).
		WillReturnRows(sqlmock.NewRows(joinedCols).AddRow(row...))

	list, err := repo.List(context.Background(), Filter{UnidadDestinoID: 3, Estado: EstadoEnviado, Limit: 50})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != 7 {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGTransitionRedirect(t *testing.T) {
	repo, mock := newMock(t)
	row := append(envioRow(7, "redirigido"), "HR-1", "Nota", "UAF", "rutina", "Unidad Legal", "Ana")
	row[9], row[10], row[14] = int64(4), int64(9), fixedAt
	mock.ExpectQuery(`(?s)WITH e AS \(\s+UPDATE envios SET estado = \$1, updated_at = \$2, redirigido_a_unidad_id = \$3, redirigido_por = \$4, fecha_redireccion = \$2\s+WHERE id = \$5.*FROM e\s+LEFT JOIN hojas_ruta h`).
		WithArgs("redirigido", fixedAt, int64(4), int64(9), int64(7)).
		WillReturnRows(sqlmock.NewRows(joinedCols).AddRow(row...))

	e, err := repo.Transition(context.Background(), 7, Transition{To: EstadoRedirigido, At: fixedAt, RedirigidoA: 4, RedirigidoPor: 9})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if e.RedirigidoAUnidadID != 4 || e.RedirigidoPor != 9 || e.FechaRedireccion == nil {
		t.Fatalf("unexpected dispatch %+v", e)
	}
	if e.NumeroHR != "HR-1" || e.UnidadDestinoNombre != "Unidad Legal" || e.UsuarioNombre != "Ana" {
		t.Fatalf("joined fields missing after transition: %+v", e)
	}

	mock.ExpectQuery(`UPDATE envios`).WillReturnRows(sqlmock.NewRows(joinedCols))
	if _, err := repo.Transition(context.Background(), 8, Transition{To: EstadoRecibido, At: fixedAt}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
