package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the handlers map to HTTP responses.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeUndefinedTable      = "42P01"
)

// Kind classifies a database error.
type Kind int

const (
	KindOther Kind = iota
	KindUnique
	KindForeignKey
	KindNotNull
	KindUndefinedTable
)

// Violation describes a classified Postgres error.
type Violation struct {
	Kind       Kind
	Constraint string
	Column     string
	Detail     string
}

// Classify inspects err for a *pgconn.PgError.
func Classify(err error) (Violation, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Violation{}, false
	}
	v := Violation{Constraint: pgErr.ConstraintName, Column: pgErr.ColumnName, Detail: pgErr.Detail}
	switch pgErr.Code {
	case CodeUniqueViolation:
		v.Kind = KindUnique
	case CodeForeignKeyViolation:
		v.Kind = KindForeignKey
	case CodeNotNullViolation:
		v.Kind = KindNotNull
	case CodeUndefinedTable:
		v.Kind = KindUndefinedTable
	default:
		v.Kind = KindOther
	}
	return v, true
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	v, ok := Classify(err)
	return ok && v.Kind == KindUnique
}

// IsForeignKeyViolation reports whether err is a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	v, ok := Classify(err)
	return ok && v.Kind == KindForeignKey
}
