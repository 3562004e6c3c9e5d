package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func TestStatus(t *testing.T) {
	svc := NewService(nil, "dev")
	svc.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body Status
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "OK" || body.Environment != "dev" || body.Timestamp.IsZero() {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestReadiness(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		status int
		want   string
	}{
		{"memory", nil, http.StatusOK, "memory"},
		{"healthy", fakePinger{}, http.StatusOK, "ok"},
		{"down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			newRouter(NewService(tc.db, "production")).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
			var body Readiness
			_ = json.Unmarshal(resp.Body.Bytes(), &body)
			if body.Database != tc.want {
				t.Fatalf("database = %q, want %q", body.Database, tc.want)
			}
		})
	}
}
