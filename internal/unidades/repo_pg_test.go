package unidades

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var unidadCols = []string{"id", "nombre", "descripcion", "responsable", "activo", "created_at", "updated_at"}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := &PGRepo{DB: sqlDB}

	mock.ExpectQuery("INSERT INTO unidades").
		WithArgs("Archivo", "", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "unidades_nombre_key"})

	_, err = repo.Create(context.Background(), Unidad{Nombre: "Archivo"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateBuildsPartialSet(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := &PGRepo{DB: sqlDB}

	now := time.Now()
	desc := "Archivo central"
	mock.ExpectQuery(`UPDATE unidades SET descripcion = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(desc, int64(4)).
		WillReturnRows(sqlmock.NewRows(unidadCols).AddRow(4, "Archivo", desc, "", true, now, now))

	u, err := repo.Update(context.Background(), 4, Update{Descripcion: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Descripcion != desc {
		t.Fatalf("unexpected unit %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeactivateMissing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := &PGRepo{DB: sqlDB}

	mock.ExpectExec("UPDATE unidades SET activo = FALSE").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Deactivate(context.Background(), 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
