package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/shared/storage/object"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/shared/util"
)

// Service produces database summaries and SQL dumps.
type Service struct {
	Source Source
	Store  object.ObjectStore
	Clock  ledger.Clock
}

// NewService constructs a Service. src is nil in memory mode and store may
// be nil when dumps are not archived.
func NewService(src Source, store object.ObjectStore, clock ledger.Clock) *Service {
	return &Service{Source: src, Store: store, Clock: clock}
}

// Info counts the rows of every exported table.
func (s *Service) Info(ctx context.Context) (Info, error) {
	if s.Source == nil {
		return Info{}, ErrUnavailable
	}
	info := Info{Tablas: make([]TableInfo, 0, len(Tables))}
	for _, table := range Tables {
		n, err := s.Source.Count(ctx, table)
		if err != nil {
			if ctx.Err() != nil {
				return Info{}, ctx.Err()
			}
			telemetry.Warn("backup.count_failed", map[string]any{"table": table, "error": err})
			info.Tablas = append(info.Tablas, TableInfo{Nombre: table, Error: true})
			continue
		}
		info.Tablas = append(info.Tablas, TableInfo{Nombre: table, Registros: n})
	}
	now, err := s.Source.Now(ctx)
	if err != nil {
		return Info{}, err
	}
	info.FechaServidor = now
	return info, nil
}

// Create dumps every table and archives the file under backups/<date>/.
// An archive failure is logged and the dump is still returned.
func (s *Service) Create(ctx context.Context, userID int64) (Dump, error) {
	if s.Source == nil {
		return Dump{}, ErrUnavailable
	}
	now := s.Clock.Time()
	if s.Clock.Location != nil {
		now = now.In(s.Clock.Location)
	}
	fecha := now.Format(ledger.DateLayout)
	hora := now.Format("15-04-05")

	var buf bytes.Buffer
	if err := writeDump(ctx, &buf, s.Source, header{Fecha: fecha, Hora: hora, UserID: userID}); err != nil {
		return Dump{}, err
	}

	name, err := util.SanitizeFileName(fmt.Sprintf("backup_hojas_ruta_%s_%s_%s.sql", fecha, hora, uuid.NewString()[:8]))
	if err != nil {
		return Dump{}, err
	}
	d := Dump{FileName: name, Key: ArchivePrefix + fecha + "/" + name, Content: buf.Bytes()}
	if s.Store != nil {
		if _, err := s.Store.Put(ctx, d.Key, "application/sql", bytes.NewReader(d.Content)); err != nil {
			telemetry.Warn("backup.archive_failed", map[string]any{"key": d.Key, "error": err})
		} else {
			d.Archived = true
		}
	}
	telemetry.Info("backup.created", map[string]any{"file": d.FileName, "size": len(d.Content), "archived": d.Archived, "user_id": userID})
	return d, nil
}

// Archives lists archived dumps, newest first.
func (s *Service) Archives(ctx context.Context) ([]object.Info, error) {
	if s.Store == nil {
		return nil, ErrNoArchive
	}
	list, err := s.Store.List(ctx, ArchivePrefix)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []object.Info{}
	}
	return list, nil
}

// OpenArchive streams one archived dump. The caller closes the reader.
func (s *Service) OpenArchive(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, ErrNoArchive
	}
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	rc, err := s.Store.Open(ctx, key)
	if errors.Is(err, object.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}

func validKey(key string) bool {
	if !strings.HasPrefix(key, ArchivePrefix) || !strings.HasSuffix(key, ".sql") {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}
