package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRecoveryKeepsQueryOutOfLogs(t *testing.T) {
	// Debug mode is where gin's own recovery dumps the request line.
	gin.SetMode(gin.DebugMode)
	defer gin.SetMode(gin.TestMode)

	var stderr bytes.Buffer
	prevErrWriter := gin.DefaultErrorWriter
	gin.DefaultErrorWriter = &stderr
	defer func() { gin.DefaultErrorWriter = prevErrWriter }()

	h := newHarness(stubOracle{}, &recordingPinner{}, 0, 1<<20)
	router := h.router.(*gin.Engine)
	router.POST("/explode", func(c *gin.Context) { panic("handler blew up") })

	phrase := "bottom drive obey lake"
	req := httptest.NewRequest(http.MethodPost, "/explode?address=x&mnemonic=bottom+drive+obey+lake", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(h.logs.String(), "handler blew up") {
		t.Fatalf("expected the panic to be logged, got %s", h.logs.String())
	}
	for _, out := range []string{h.logs.String(), stderr.String(), res.Body.String()} {
		if strings.Contains(out, phrase) || strings.Contains(out, "bottom+drive") {
			t.Fatalf("mnemonic leaked: %s", out)
		}
	}
}

func TestRequestIDHonoursHeader(t *testing.T) {
	h := newHarness(stubOracle{}, &recordingPinner{}, 0, 1<<20)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc")
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "abc" {
		t.Fatalf("expected request id abc, got %q", got)
	}
	if !strings.Contains(h.logs.String(), `"request_id":"abc"`) {
		t.Fatalf("expected access log to carry the request id, got %s", h.logs.String())
	}
}
