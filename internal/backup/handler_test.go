package backup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
	"hojaruta-backend/internal/shared/storage/object/local"
)

func newTestRouter(svc *Service, rol string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		middleware.SetIdentity(c, middleware.Identity{UserID: 1, Username: "admin", Rol: rol})
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestCreateStreamsAttachment(t *testing.T) {
	r := newTestRouter(NewService(sampleSource(), nil, fixedClock()), "administrador")
	resp := get(r, "/api/backup/crear")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/sql" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Disposition"), `attachment; filename="backup_hojas_ruta_`) {
		t.Fatalf("disposition = %q", resp.Header().Get("Content-Disposition"))
	}
	if resp.Header().Get("X-Backup-Key") != "" {
		t.Fatal("no archive key expected without a store")
	}
	if !strings.Contains(resp.Body.String(), `INSERT INTO "roles"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestBackupRoutesRequireAdmin(t *testing.T) {
	r := newTestRouter(NewService(sampleSource(), nil, fixedClock()), "secretaria")
	for _, path := range []string{"/api/backup/info", "/api/backup/crear", "/api/backup/archivos"} {
		if resp := get(r, path); resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, resp.Code)
		}
	}
}

func TestInfoWithoutDatabase(t *testing.T) {
	r := newTestRouter(NewService(nil, nil, fixedClock()), "desarrollador")
	resp := get(r, "/api/backup/info")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestArchiveRoutes(t *testing.T) {
	svc := NewService(sampleSource(), local.New(t.TempDir()), fixedClock())
	d, err := svc.Create(context.Background(), 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r := newTestRouter(svc, "desarrollador")

	resp := get(r, "/api/backup/archivos")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), d.Key) {
		t.Fatalf("list: %d %s", resp.Code, resp.Body.String())
	}

	resp = get(r, "/api/backup/archivos/"+d.Key)
	if resp.Code != http.StatusOK || resp.Body.String() != string(d.Content) {
		t.Fatalf("download: %d", resp.Code)
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), d.FileName) {
		t.Fatalf("disposition = %q", resp.Header().Get("Content-Disposition"))
	}

	if resp := get(r, "/api/backup/archivos/backups/2025-01-01/nada.sql"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := get(r, "/api/backup/archivos/config.sql"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
