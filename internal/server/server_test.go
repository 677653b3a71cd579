package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/storage"
	"github.com/mesh-intelligence/vento/internal/textfile"
	"github.com/mesh-intelligence/vento/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T, reg *prometheus.Registry) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	b, err := textfile.Open(types.Config{Backend: types.BackendTextFile, DataDir: t.TempDir()}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	var store types.Backend = b
	if reg != nil {
		store = storage.Instrument(b, reg)
	}
	am, err := auth.NewManager(auth.Options{Secret: "test-secret"})
	require.NoError(t, err)
	s, err := New(Options{Registry: reg}, store, am, logger)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	s := newServer(t, nil)

	tests := []struct {
		path     string
		wantCode int
	}{
		{path: "/healthz", wantCode: http.StatusOK},
		{path: "/metrics", wantCode: http.StatusOK},
		{path: "/", wantCode: http.StatusOK},
		{path: "/login", wantCode: http.StatusOK},
		{path: "/static/style.css", wantCode: http.StatusOK},
		{path: "/app/", wantCode: http.StatusOK},
		{path: "/api/auth/session", wantCode: http.StatusUnauthorized},
		{path: "/api/products", wantCode: http.StatusUnauthorized},
		{path: "/menu", wantCode: http.StatusSeeOther},
		{path: "/nope", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, s.Handler(), tt.path, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	s := newServer(t, nil)

	w := get(t, s.Handler(), "/healthz", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	tests := []struct {
		name string
		key  string
	}{
		{name: "as declared", key: RequestIDHeader},
		{name: "canonical", key: "X-Request-Id"},
		{name: "lowercase", key: "x-request-id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s.Handler(), "/healthz", http.Header{tt.key: {"abc-123"}})
			assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		})
	}

	w = get(t, s.Handler(), "/healthz", http.Header{RequestIDHeader: {strings.Repeat("x", 200)}})
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestMetricsExposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newServer(t, reg)

	get(t, s.Handler(), "/api/products", nil)
	get(t, s.Handler(), "/healthz", nil)

	w := get(t, s.Handler(), "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `vento_http_requests_total{code="401",method="GET",route="/api/products"} 1`)
	assert.Contains(t, body, `vento_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	client.CloseIdleConnections()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"status":"ok"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
