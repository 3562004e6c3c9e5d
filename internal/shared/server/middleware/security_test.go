package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, production := range []bool{false, true} {
		router := gin.New()
		router.Use(SecurityHeaders(production))
		router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		if resp.Header().Get("X-Frame-Options") != "DENY" {
			t.Fatalf("expected X-Frame-Options DENY")
		}
		if resp.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("expected nosniff")
		}
		hsts := resp.Header().Get("Strict-Transport-Security")
		if production && hsts == "" {
			t.Fatalf("expected HSTS in production")
		}
		if !production && hsts != "" {
			t.Fatalf("unexpected HSTS outside production")
		}
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BodyLimit(16))
	router.POST("/api/progreso/agregar", func(c *gin.Context) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/progreso/agregar", strings.NewReader(`{"a":1}`)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for small body, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/progreso/agregar", strings.NewReader(strings.Repeat("x", 64))))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}
