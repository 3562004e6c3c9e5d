package hojas

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var hojaCols = []string{
	"id", "numero_hr", "referencia", "procedencia", "nombre_solicitante", "telefono_celular",
	"fecha_documento", "fecha_ingreso", "fecha_limite", "cite", "numero_fojas",
	"prioridad", "estado", "estado_cumplimiento", "observaciones",
	"ubicacion_actual", "responsable_actual", "unidad_actual_id", "usuario_creador_id",
	"detalles", "fecha_completado", "activo", "created_at", "updated_at",
}

func hojaRow(id int64, numero string, detalles string) []driver.Value {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, numero, "Nota", "UAF", "", "",
		"", now, "2025-03-20", "", int64(3),
		"rutina", "pendiente", "pendiente", "",
		DefaultUbicacion, DefaultResponsable, nil, int64(9),
		[]byte(detalles), nil, true, now, now,
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

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO hojas_ruta").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "hojas_ruta_numero_hr_key"})

	_, err := repo.Create(context.Background(), Hoja{NumeroHR: "HR-1", Referencia: "R", Procedencia: "P"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetForUpdateLocksRow(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM hojas_ruta h\s+WHERE h.id = \$1 AND h.activo = TRUE\s+FOR UPDATE`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(hojaCols).AddRow(hojaRow(4, "HR-4", `{"secciones_adicionales":[{"seccion":1,"destino":"Legal"}]}`)...))

	h, err := repo.GetForUpdate(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if h.NumeroHR != "HR-4" || h.UsuarioCreadorID != 9 || h.UnidadActualID != 0 {
		t.Fatalf("unexpected hoja %+v", h)
	}
	if _, ok := h.Detalles["secciones_adicionales"].([]any); !ok {
		t.Fatalf("detalles not decoded: %v", h.Detalles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListFiltersAndCounts(t *testing.T) {
	repo, mock := newMock(t)
	cols := append(append([]string{}, hojaCols...), "count")
	mock.ExpectQuery(`(?s)h.estado_cumplimiento <> 'completado'.*h.estado_cumplimiento = \$2.*ILIKE \$3.*LIMIT \$4 OFFSET \$5`).
		WithArgs("2025-03-10", "pendiente", "%HR%", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(append(hojaRow(1, "HR-1", `{}`), int64(2))...).
			AddRow(append(hojaRow(2, "HR-2", `{}`), int64(2))...))

	list, total, err := repo.List(context.Background(), Filter{
		Query:              "HR",
		EstadoCumplimiento: "pendiente",
		Today:              "2025-03-10",
		Limit:              20,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(list) != 2 || list[1].NumeroHR != "HR-2" {
		t.Fatalf("list = %+v total %d", list, total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateBuildsPartialSet(t *testing.T) {
	repo, mock := newMock(t)
	estado := EstadoEnviada
	ubicacion := "Legal"
	mock.ExpectQuery(`UPDATE hojas_ruta AS h SET estado = \$1, ubicacion_actual = \$2, detalles = \$3::jsonb, updated_at = NOW\(\)\s+WHERE h.id = \$4`).
		WithArgs("enviada", "Legal", `{"a":1}`, int64(3)).
		WillReturnRows(sqlmock.NewRows(hojaCols).AddRow(hojaRow(3, "HR-3", `{"a":1}`)...))

	if _, err := repo.Update(context.Background(), 3, Patch{Estado: &estado, UbicacionActual: &ubicacion, Detalles: map[string]any{"a": 1}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetUbicacionMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("UPDATE hojas_ruta SET ubicacion_actual").
		WithArgs("Archivo", sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetUbicacion(context.Background(), 8, "Archivo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoPendingIncludesUndated(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`h.fecha_limite IS NULL OR h.fecha_limite <= \$1::date \+ \$2::int[\s\S]+WHEN h.fecha_limite IS NULL THEN 5[\s\S]+LIMIT \$3`).
		WithArgs("2025-03-10", 30, 20).
		WillReturnRows(sqlmock.NewRows(hojaCols).AddRow(hojaRow(2, "HR-2", `{}`)...))

	list, err := repo.Pending(context.Background(), "2025-03-10", 30, 20)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(list) != 1 || list[0].NumeroHR != "HR-2" {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecentNewestFirst(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`estado_cumplimiento <> 'completado'\s+ORDER BY h.created_at DESC, h.id DESC\s+LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(hojaCols))

	list, err := repo.Recent(context.Background(), 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("Recent = %+v, %v", list, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
