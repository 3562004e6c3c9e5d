package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hojaruta-backend/internal/shared/storage/object"
)

func TestPutAndOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "backups/2026-03-01/backup.sql", "application/sql", strings.NewReader("INSERT INTO roles;"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("INSERT INTO roles;")) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := store.Open(ctx, "backups/2026-03-01/backup.sql")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "INSERT INTO roles;" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestOpenMissingKey(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "backups/none.sql"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/abs/path", ".", "backups/../../x"} {
		if _, err := store.Put(context.Background(), key, "", strings.NewReader("x")); err == nil {
			t.Fatalf("expected Put error for key %q", key)
		}
		if _, err := store.Open(context.Background(), key); err == nil {
			t.Fatalf("expected Open error for key %q", key)
		}
	}
}

func TestListFiltersByPrefixNewestFirst(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	ctx := context.Background()
	for _, key := range []string{"backups/2026-03-01/a.sql", "backups/2026-03-02/b.sql", "otros/c.txt"} {
		if _, err := store.Put(ctx, key, "application/sql", strings.NewReader(key)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(root, "backups", "2026-03-01", "a.sql"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	list, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 backups, got %+v", list)
	}
	if list[0].Key != "backups/2026-03-02/b.sql" || list[1].Key != "backups/2026-03-01/a.sql" {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].Size != int64(len("backups/2026-03-02/b.sql")) {
		t.Fatalf("unexpected size %d", list[0].Size)
	}
}

func TestListMissingRoot(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nunca-creado"))
	list, err := store.List(context.Background(), "backups/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}
