package backup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Source reads the tables being exported.
type Source interface {
	Count(ctx context.Context, table string) (int64, error)
	Rows(ctx context.Context, table string, fn func(cols []Column, values []any) error) error
	Now(ctx context.Context) (time.Time, error)
}

// PGSource reads tables from Postgres.
type PGSource struct {
	DB *sql.DB
}

// Count returns the number of rows in table.
func (s *PGSource) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident(table)).Scan(&n)
	return n, err
}

// Rows calls fn for every row of table ordered by id.
func (s *PGSource) Rows(ctx context.Context, table string, fn func(cols []Column, values []any) error) error {
	rows, err := s.DB.QueryContext(ctx, "SELECT * FROM "+ident(table)+" ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	cols := make([]Column, len(types))
	for i, t := range types {
		cols[i] = Column{Name: t.Name(), Type: strings.ToUpper(t.DatabaseTypeName())}
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := fn(cols, values); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Now returns the database clock.
func (s *PGSource) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	err := s.DB.QueryRowContext(ctx, "SELECT NOW()").Scan(&now)
	return now, err
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

var _ Source = (*PGSource)(nil)
