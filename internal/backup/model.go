package backup

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when no database backs the process.
	ErrUnavailable = errors.New("backup requires a database")
	// ErrNoArchive is returned when no object store is configured.
	ErrNoArchive   = errors.New("backup archive not configured")
	ErrInvalidKey  = errors.New("invalid backup key")
	ErrNotFound    = errors.New("backup not found")
)

// ArchivePrefix is the key prefix of every archived dump.
const ArchivePrefix = "backups/"

// Tables lists the exported tables in foreign key order.
var Tables = []string{
	"roles",
	"unidades",
	"locaciones",
	"usuarios",
	"hojas_ruta",
	"envios",
	"progreso_hojas_ruta",
	"notificaciones",
	"historial_actividades",
}

// TableInfo is the row count of one table.
type TableInfo struct {
	Nombre    string `json:"nombre"`
	Registros int64  `json:"registros"`
	Error     bool   `json:"error,omitempty"`
}

// Info summarizes the database for the backup screen.
type Info struct {
	Tablas        []TableInfo `json:"tablas"`
	FechaServidor time.Time   `json:"fecha_servidor"`
}

// Column describes a result column of a table dump.
type Column struct {
	Name string
	Type string
}

// Dump is a generated SQL backup.
type Dump struct {
	FileName string
	Key      string
	Content  []byte
	Archived bool
}
