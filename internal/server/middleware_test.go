package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/app"
)

func newTestServer() *Server {
	return &Server{app: &app.App{Logger: arbor.NewLogger()}}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	s := newTestServer()
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/discovery", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, apiMethods, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestPanicRecoveredAsServerError(t *testing.T) {
	s := newTestServer()
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebSocketRouteBypassesChain(t *testing.T) {
	s := newTestServer()
	var sawStatusWriter bool
	h := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawStatusWriter = w.(*statusWriter)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.False(t, sawStatusWriter, "the upgrade path needs the raw response writer")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.True(t, sawStatusWriter, "API routes run through the logging wrapper")
}
