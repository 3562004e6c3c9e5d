package backup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeTable struct {
	cols []Column
	rows [][]any
	err  error
}

type fakeSource struct {
	tables map[string]fakeTable
	now    time.Time
}

func (f fakeSource) Count(_ context.Context, table string) (int64, error) {
	t, ok := f.tables[table]
	if !ok {
		return 0, errors.New("relation does not exist")
	}
	return int64(len(t.rows)), t.err
}

func (f fakeSource) Rows(_ context.Context, table string, fn func([]Column, []any) error) error {
	t, ok := f.tables[table]
	if !ok {
		return nil
	}
	if t.err != nil {
		return t.err
	}
	for _, r := range t.rows {
		if err := fn(t.cols, r); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeSource) Now(context.Context) (time.Time, error) { return f.now, nil }

func TestLiteral(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 5, 0, 0, time.FixedZone("BOT", -4*3600))
	cases := []struct {
		name string
		v    any
		typ  string
		want string
	}{
		{"null", nil, "TEXT", "NULL"},
		{"bool", true, "BOOL", "TRUE"},
		{"int", int64(42), "INT4", "42"},
		{"float", 1.5, "NUMERIC", "1.5"},
		{"quote", "O'Brien", "VARCHAR", "'O''Brien'"},
		{"bytes", []byte("x"), "TEXT", "'x'"},
		{"jsonb", `{"a":"it's"}`, "JSONB", `'{"a":"it''s"}'::jsonb`},
		{"timestamp", at, "TIMESTAMPTZ", "'2025-03-10T18:05:00Z'"},
		{"date", at, "DATE", "'2025-03-10'"},
		{"map", map[string]any{"k": 1}, "", `'{"k":1}'::jsonb`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := literal(tc.v, tc.typ); got != tc.want {
				t.Fatalf("literal = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestWriteDump(t *testing.T) {
	src := fakeSource{tables: map[string]fakeTable{
		"roles": {
			cols: []Column{{Name: "id", Type: "INT4"}, {Name: "nombre", Type: "VARCHAR"}},
			rows: [][]any{{int64(1), "admin"}, {int64(2), "secretaria"}},
		},
		"envios": {err: errors.New("permission denied")},
	}}
	var buf bytes.Buffer
	if err := writeDump(context.Background(), &buf, src, header{Fecha: "2025-03-10", Hora: "10-00-00", UserID: 3}); err != nil {
		t.Fatalf("writeDump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"-- Usuario ID: 3",
		"-- Tabla: roles (2 registros)",
		`INSERT INTO "roles" ("id", "nombre") VALUES (1, 'admin') ON CONFLICT DO NOTHING;`,
		"-- Tabla envios: no encontrada o error",
		"SELECT setval(pg_get_serial_sequence('notificaciones', 'id'), COALESCE((SELECT MAX(id) FROM \"notificaciones\"), 1), true);",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "-- Tabla: usuarios") {
		t.Fatal("empty tables should not get a section")
	}
	if strings.Index(out, "roles") > strings.Index(out, "envios") {
		t.Fatal("tables out of foreign key order")
	}
}
