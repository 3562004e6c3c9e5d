package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hojaruta-backend/internal/shared/telemetry"
)

const rule = "-- =====================================================\n"

type header struct {
	Fecha  string
	Hora   string
	UserID int64
}

// writeDump writes a data-only dump of every table in Tables.
func writeDump(ctx context.Context, w io.Writer, src Source, h header) error {
	user := "Sistema"
	if h.UserID > 0 {
		user = strconv.FormatInt(h.UserID, 10)
	}
	fmt.Fprint(w, rule)
	fmt.Fprint(w, "-- BACKUP SISTEMA HOJAS DE RUTA\n")
	fmt.Fprintf(w, "-- Fecha: %s %s\n", h.Fecha, h.Hora)
	fmt.Fprintf(w, "-- Usuario ID: %s\n", user)
	fmt.Fprint(w, rule+"\n")
	fmt.Fprint(w, "-- Solo contiene datos (INSERT); la estructura debe existir previamente.\n\n")
	fmt.Fprint(w, "SET client_encoding = 'UTF8';\n\n")

	for _, table := range Tables {
		if err := writeTable(ctx, w, src, table); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.Warn("backup.table_failed", map[string]any{"table": table, "error": err})
			fmt.Fprintf(w, "-- Tabla %s: no encontrada o error\n\n", table)
		}
	}

	fmt.Fprint(w, rule)
	fmt.Fprint(w, "-- Actualizar secuencias (IDs)\n")
	fmt.Fprint(w, rule)
	for _, table := range Tables {
		fmt.Fprintf(w, "SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1), true);\n", table, ident(table))
	}
	return nil
}

func writeTable(ctx context.Context, w io.Writer, src Source, table string) error {
	var b strings.Builder
	count := 0
	err := src.Rows(ctx, table, func(cols []Column, values []any) error {
		names := make([]string, len(cols))
		literals := make([]string, len(cols))
		for i, c := range cols {
			names[i] = ident(c.Name)
			literals[i] = literal(values[i], c.Type)
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING;\n",
			ident(table), strings.Join(names, ", "), strings.Join(literals, ", "))
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	fmt.Fprint(w, rule)
	fmt.Fprintf(w, "-- Tabla: %s (%d registros)\n", table, count)
	fmt.Fprint(w, rule)
	fmt.Fprint(w, b.String())
	fmt.Fprint(w, "\n")
	return nil
}

// literal renders v as a SQL literal for a column of type typ.
func literal(v any, typ string) string {
	jsonCol := typ == "JSON" || typ == "JSONB"
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if typ == "DATE" {
			return quote(val.Format("2006-01-02"))
		}
		return quote(val.UTC().Format(time.RFC3339Nano))
	case []byte:
		return text(string(val), jsonCol)
	case string:
		return text(val, jsonCol)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return quote(fmt.Sprint(val))
		}
		return quote(string(b)) + "::jsonb"
	}
}

func text(s string, jsonCol bool) string {
	if jsonCol {
		return quote(s) + "::jsonb"
	}
	return quote(s)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
