package envios

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T, userID int64) (*gin.Engine, scenario) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sc := newScenario(t)
	r := gin.New()
	h := NewHandler(sc.svc)
	h.RegisterPublicRoutes(r.Group("/api"))
	api := r.Group("/api", func(c *gin.Context) {
		middleware.SetIdentity(c, middleware.Identity{UserID: userID, Username: "tester", Rol: "secretaria"})
		c.Next()
	})
	h.RegisterRoutes(api)
	return r, sc
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestSendAndReceiveOverHTTP(t *testing.T) {
	r, sc := newTestRouter(t, 1)

	resp := doJSON(r, http.MethodPost, "/api/enviar/a-unidad", fmt.Sprintf(`{"hoja_id":%d,"unidad_id":%d,"observaciones":"Urgente"}`, sc.hojaID, sc.legal.ID))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var sent struct {
		Envio      Envio  `json:"envio"`
		Mensaje    string `json:"mensaje"`
		Seccion    *int   `json:"seccion"`
		LedgerFull bool   `json:"ledger_full"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sent.Seccion == nil || *sent.Seccion != 1 || sent.LedgerFull || sent.Mensaje != "Documento enviado a Unidad Legal" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	path := fmt.Sprintf("/api/enviar/%d/recibir", sent.Envio.ID)
	resp = doJSON(r, http.MethodPut, path, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(r, http.MethodPut, path, "")
	if resp.Code != http.StatusConflict || errorCode(t, resp) != "INVALID_TRANSITION" {
		t.Fatalf("expected 409 INVALID_TRANSITION, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(r, http.MethodPut, fmt.Sprintf("/api/enviar/%d/responder", sent.Envio.ID), `{"respuesta":""}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty response, got %d", resp.Code)
	}
}

func TestHandlerErrors(t *testing.T) {
	r, sc := newTestRouter(t, 1)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad id", http.MethodPut, "/api/enviar/abc/recibir", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown dispatch", http.MethodPut, "/api/enviar/404/recibir", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown unit", http.MethodPost, "/api/enviar/a-unidad", fmt.Sprintf(`{"hoja_id":%d,"unidad_id":99}`, sc.hojaID), http.StatusNotFound, "NOT_FOUND"},
		{"unknown document", http.MethodPost, "/api/enviar/a-unidad", fmt.Sprintf(`{"hoja_id":99,"unidad_id":%d}`, sc.legal.ID), http.StatusNotFound, "NOT_FOUND"},
		{"malformed body", http.MethodPost, "/api/enviar/a-unidad", `{"hoja_id":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad reference", http.MethodPost, "/api/enviar", `{"hoja_id":99,"destinatario_nombre":"X"}`, http.StatusBadRequest, "INVALID_REFERENCE"},
		{"bad state", http.MethodPut, "/api/enviar/1/estado", `{"estado":"perdido"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad filter", http.MethodGet, "/api/enviar?estado=perdido", "", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(r, tc.method, tc.path, tc.body)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if got := errorCode(t, resp); got != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestMyUnitRequiresUnit(t *testing.T) {
	r, _ := newTestRouter(t, 0)
	resp := doJSON(r, http.MethodGet, "/api/enviar/mi-unidad", "")
	if resp.Code != http.StatusBadRequest || errorCode(t, resp) != "NO_UNIT" {
		t.Fatalf("expected 400 NO_UNIT, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Cache-Control") == "" {
		t.Fatal("expected no-cache headers")
	}
}

func TestDestinationsArePublic(t *testing.T) {
	r, _ := newTestRouter(t, 0)
	resp := doJSON(r, http.MethodGet, "/api/enviar/destinos", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Destinos []Destino `json:"destinos"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Destinos) != 2 {
		t.Fatalf("expected 2 active units, got %+v", body.Destinos)
	}
}
